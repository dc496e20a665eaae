// Package history persists per-provider aggregates and the spend ledger in a
// local SQLite database. Aggregates seed the dispatcher's metrics store at
// startup so health and adaptive routing decisions survive process restarts.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/llmrelay/relay/internal/dispatch"
)

const schema = `
CREATE TABLE IF NOT EXISTS provider_stats (
	provider_id      TEXT PRIMARY KEY,
	success_count    INTEGER NOT NULL DEFAULT 0,
	failure_count    INTEGER NOT NULL DEFAULT 0,
	total_latency_ms INTEGER NOT NULL DEFAULT 0,
	total_tokens     INTEGER NOT NULL DEFAULT 0,
	total_cost       REAL NOT NULL DEFAULT 0,
	last_success     INTEGER NOT NULL DEFAULT 0,
	last_failure     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS spend_ledger (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	caller_id     TEXT NOT NULL,
	provider_id   TEXT NOT NULL,
	model         TEXT NOT NULL,
	input_tokens  INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	description   TEXT NOT NULL,
	created_at    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_spend_caller ON spend_ledger(caller_id, created_at);
`

// Store is a SQLite-backed store for provider aggregates and spend records
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the history database at path
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}

	log.Debug().Str("path", path).Msg("History store opened")
	return &Store{db: db}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// LoadAggregates returns the persisted per-provider aggregates. Implements
// the LoadHistoricalMetrics collaborator contract; call once at startup.
func (s *Store) LoadAggregates(ctx context.Context) ([]dispatch.HistoricalAggregate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider_id, success_count, failure_count, total_latency_ms,
		       total_tokens, total_cost, last_success, last_failure
		FROM provider_stats`)
	if err != nil {
		return nil, fmt.Errorf("failed to load provider aggregates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var aggregates []dispatch.HistoricalAggregate
	for rows.Next() {
		var agg dispatch.HistoricalAggregate
		var latencyMs, lastSuccess, lastFailure int64
		if err := rows.Scan(&agg.ProviderID, &agg.SuccessCount, &agg.FailureCount,
			&latencyMs, &agg.TotalTokens, &agg.TotalCost, &lastSuccess, &lastFailure); err != nil {
			return nil, fmt.Errorf("failed to scan provider aggregate: %w", err)
		}
		agg.TotalLatency = time.Duration(latencyMs) * time.Millisecond
		if lastSuccess > 0 {
			agg.LastSuccess = time.Unix(lastSuccess, 0)
		}
		if lastFailure > 0 {
			agg.LastFailure = time.Unix(lastFailure, 0)
		}
		aggregates = append(aggregates, agg)
	}
	return aggregates, rows.Err()
}

// SaveAggregates upserts the current metrics snapshot. Intended to run at
// shutdown so the next process start seeds from fresh numbers.
func (s *Store) SaveAggregates(ctx context.Context, snapshot []dispatch.ProviderMetrics) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin aggregate save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, m := range snapshot {
		var lastSuccess, lastFailure int64
		if !m.LastSuccess.IsZero() {
			lastSuccess = m.LastSuccess.Unix()
		}
		if !m.LastFailure.IsZero() {
			lastFailure = m.LastFailure.Unix()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO provider_stats
				(provider_id, success_count, failure_count, total_latency_ms,
				 total_tokens, total_cost, last_success, last_failure)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(provider_id) DO UPDATE SET
				success_count = excluded.success_count,
				failure_count = excluded.failure_count,
				total_latency_ms = excluded.total_latency_ms,
				total_tokens = excluded.total_tokens,
				total_cost = excluded.total_cost,
				last_success = excluded.last_success,
				last_failure = excluded.last_failure`,
			m.ProviderID, m.SuccessCount, m.FailureCount, m.TotalLatency.Milliseconds(),
			m.TotalTokens, m.TotalCost, lastSuccess, lastFailure)
		if err != nil {
			return fmt.Errorf("failed to save aggregate for %s: %w", m.ProviderID, err)
		}
	}
	return tx.Commit()
}

// RecordSpend appends one successful attempt to the spend ledger. Implements
// the RecordSpend collaborator contract.
func (s *Store) RecordSpend(ctx context.Context, callerID string, spec dispatch.ProviderSpec, inputTokens, outputTokens int, description string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO spend_ledger
			(caller_id, provider_id, model, input_tokens, output_tokens, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		callerID, spec.ProviderID, spec.Model, inputTokens, outputTokens, description, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to record spend: %w", err)
	}
	return nil
}

// SpendTotal sums ledger tokens for a caller since the given time. Zero time
// sums all records.
func (s *Store) SpendTotal(ctx context.Context, callerID string, since time.Time) (inputTokens, outputTokens int64, err error) {
	var sinceUnix int64
	if !since.IsZero() {
		sinceUnix = since.Unix()
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0)
		FROM spend_ledger
		WHERE caller_id = ? AND created_at >= ?`, callerID, sinceUnix)
	if err := row.Scan(&inputTokens, &outputTokens); err != nil {
		return 0, 0, fmt.Errorf("failed to sum spend: %w", err)
	}
	return inputTokens, outputTokens, nil
}
