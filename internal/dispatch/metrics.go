package dispatch

import (
	"sort"
	"sync"
	"time"
)

// Health tuning constants. A provider is considered unhealthy after
// unhealthyAfterConsecutive consecutive failures, or when its most recent
// outcome is a failure within the recentFailureWindow.
const (
	unhealthyAfterConsecutive = 3
	recentFailureWindow       = 5 * time.Minute
)

// ProviderMetrics holds the long-lived counters for a single provider id.
// Instances are owned by the MetricsStore and mutated in place under its lock.
type ProviderMetrics struct {
	ProviderID          string
	SuccessCount        int64
	FailureCount        int64
	TotalLatency        time.Duration
	TotalTokens         int64
	TotalCost           float64
	FailureKinds        map[FailureKind]int64
	LastSuccess         time.Time
	LastFailure         time.Time
	ConsecutiveFailures int
}

// SuccessRate returns success/(success+failure), or zero with no history
func (m *ProviderMetrics) SuccessRate() float64 {
	total := m.SuccessCount + m.FailureCount
	if total == 0 {
		return 0
	}
	return float64(m.SuccessCount) / float64(total)
}

// AvgLatency returns the mean latency across successful attempts
func (m *ProviderMetrics) AvgLatency() time.Duration {
	if m.SuccessCount == 0 {
		return 0
	}
	return m.TotalLatency / time.Duration(m.SuccessCount)
}

// AvgCost returns the mean cost across successful attempts
func (m *ProviderMetrics) AvgCost() float64 {
	if m.SuccessCount == 0 {
		return 0
	}
	return m.TotalCost / float64(m.SuccessCount)
}

// healthyAt reports provider health at the given instant. A provider with no
// recorded activity is healthy.
func (m *ProviderMetrics) healthyAt(now time.Time) bool {
	if m.ConsecutiveFailures >= unhealthyAfterConsecutive {
		return false
	}
	if m.LastFailure.After(m.LastSuccess) && now.Sub(m.LastFailure) < recentFailureWindow {
		return false
	}
	return true
}

// clone returns a copy safe to hand out after the store's lock is released
func (m *ProviderMetrics) clone() ProviderMetrics {
	out := *m
	out.FailureKinds = make(map[FailureKind]int64, len(m.FailureKinds))
	for k, v := range m.FailureKinds {
		out.FailureKinds[k] = v
	}
	return out
}

// HistoricalAggregate seeds a provider's metrics from persisted history so
// health and adaptive routing decisions are not cold on process restart.
type HistoricalAggregate struct {
	ProviderID   string
	SuccessCount int64
	FailureCount int64
	TotalLatency time.Duration
	TotalTokens  int64
	TotalCost    float64
	LastSuccess  time.Time
	LastFailure  time.Time
}

// MetricsStore tracks per-provider counters for all in-flight requests.
// It is safe for concurrent use; updates are O(1) counter bumps.
type MetricsStore struct {
	mu      sync.RWMutex
	metrics map[string]*ProviderMetrics
	now     func() time.Time
}

// NewMetricsStore creates an empty metrics store
func NewMetricsStore() *MetricsStore {
	return &MetricsStore{
		metrics: make(map[string]*ProviderMetrics),
		now:     time.Now,
	}
}

// Seed loads historical aggregates into the store. Intended to be called once
// at startup, before any traffic.
func (s *MetricsStore) Seed(aggregates []HistoricalAggregate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, agg := range aggregates {
		s.metrics[agg.ProviderID] = &ProviderMetrics{
			ProviderID:   agg.ProviderID,
			SuccessCount: agg.SuccessCount,
			FailureCount: agg.FailureCount,
			TotalLatency: agg.TotalLatency,
			TotalTokens:  agg.TotalTokens,
			TotalCost:    agg.TotalCost,
			FailureKinds: make(map[FailureKind]int64),
			LastSuccess:  agg.LastSuccess,
			LastFailure:  agg.LastFailure,
		}
	}
}

// get returns the entry for a provider id, creating it if needed.
// Callers must hold the write lock.
func (s *MetricsStore) get(providerID string) *ProviderMetrics {
	m, exists := s.metrics[providerID]
	if !exists {
		m = &ProviderMetrics{
			ProviderID:   providerID,
			FailureKinds: make(map[FailureKind]int64),
		}
		s.metrics[providerID] = m
	}
	return m
}

// RecordSuccess records a successful attempt and resets the provider's
// consecutive-failure streak.
func (s *MetricsStore) RecordSuccess(providerID string, latency time.Duration, tokens int, cost float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.get(providerID)
	m.SuccessCount++
	m.TotalLatency += latency
	m.TotalTokens += int64(tokens)
	m.TotalCost += cost
	m.LastSuccess = s.now()
	m.ConsecutiveFailures = 0
}

// RecordFailure records a failed attempt and returns the provider's updated
// consecutive-failure count so the caller can decide whether to open the
// circuit breaker.
func (s *MetricsStore) RecordFailure(providerID string, kind FailureKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.get(providerID)
	m.FailureCount++
	m.FailureKinds[kind]++
	m.LastFailure = s.now()
	m.ConsecutiveFailures++
	return m.ConsecutiveFailures
}

// Healthy reports whether a provider is currently considered healthy.
// Providers with no recorded activity are healthy.
func (s *MetricsStore) Healthy(providerID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, exists := s.metrics[providerID]
	if !exists {
		return true
	}
	return m.healthyAt(s.now())
}

// Get returns a copy of the metrics for a provider id
func (s *MetricsStore) Get(providerID string) (ProviderMetrics, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, exists := s.metrics[providerID]
	if !exists {
		return ProviderMetrics{}, false
	}
	return m.clone(), true
}

// Snapshot returns a copy of all provider metrics, sorted by provider id.
// This is the queryable health report surface.
func (s *MetricsStore) Snapshot() []ProviderMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ProviderMetrics, 0, len(s.metrics))
	for _, m := range s.metrics {
		out = append(out, m.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ProviderID < out[j].ProviderID
	})
	return out
}
