package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmrelay/relay/internal/dispatch"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_AggregatesRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	lastSuccess := time.Now().Add(-time.Hour).Truncate(time.Second)
	snapshot := []dispatch.ProviderMetrics{
		{
			ProviderID:   "openai",
			SuccessCount: 95,
			FailureCount: 5,
			TotalLatency: 190 * time.Second,
			TotalTokens:  100000,
			TotalCost:    1.5,
			LastSuccess:  lastSuccess,
		},
		{
			ProviderID:   "anthropic",
			SuccessCount: 10,
			FailureCount: 0,
			TotalLatency: 15 * time.Second,
		},
	}
	require.NoError(t, store.SaveAggregates(ctx, snapshot))

	aggregates, err := store.LoadAggregates(ctx)
	require.NoError(t, err)
	require.Len(t, aggregates, 2)

	byID := make(map[string]dispatch.HistoricalAggregate)
	for _, agg := range aggregates {
		byID[agg.ProviderID] = agg
	}

	openai := byID["openai"]
	assert.Equal(t, int64(95), openai.SuccessCount)
	assert.Equal(t, int64(5), openai.FailureCount)
	assert.Equal(t, 190*time.Second, openai.TotalLatency)
	assert.Equal(t, int64(100000), openai.TotalTokens)
	assert.InDelta(t, 1.5, openai.TotalCost, 1e-9)
	assert.True(t, openai.LastSuccess.Equal(lastSuccess))
	assert.True(t, openai.LastFailure.IsZero())

	// Upsert replaces rather than duplicates
	snapshot[0].SuccessCount = 100
	require.NoError(t, store.SaveAggregates(ctx, snapshot))
	aggregates, err = store.LoadAggregates(ctx)
	require.NoError(t, err)
	assert.Len(t, aggregates, 2)
}

func TestStore_LoadEmpty(t *testing.T) {
	store := openTestStore(t)
	aggregates, err := store.LoadAggregates(context.Background())
	require.NoError(t, err)
	assert.Empty(t, aggregates)
}

func TestStore_SpendLedger(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	spec := dispatch.ProviderSpec{ProviderID: "openai", Model: "gpt-4o"}

	require.NoError(t, store.RecordSpend(ctx, "team-a", spec, 100, 50, "completion via gpt-4o"))
	require.NoError(t, store.RecordSpend(ctx, "team-a", spec, 200, 80, "completion via gpt-4o"))
	require.NoError(t, store.RecordSpend(ctx, "team-b", spec, 10, 5, "completion via gpt-4o"))

	in, out, err := store.SpendTotal(ctx, "team-a", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(300), in)
	assert.Equal(t, int64(130), out)

	in, out, err = store.SpendTotal(ctx, "team-b", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(10), in)
	assert.Equal(t, int64(5), out)

	// Window excludes older records
	in, out, err = store.SpendTotal(ctx, "team-a", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, in)
	assert.Zero(t, out)
}

func TestStore_SeedsMetricsStore(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveAggregates(ctx, []dispatch.ProviderMetrics{
		{ProviderID: "openai", SuccessCount: 95, FailureCount: 5, TotalLatency: 190 * time.Second},
	}))

	aggregates, err := store.LoadAggregates(ctx)
	require.NoError(t, err)

	metrics := dispatch.NewMetricsStore()
	metrics.Seed(aggregates)

	m, ok := metrics.Get("openai")
	require.True(t, ok)
	assert.InDelta(t, 0.95, m.SuccessRate(), 1e-9)
	assert.Equal(t, 2*time.Second, m.AvgLatency())
}
