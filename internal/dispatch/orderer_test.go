package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func specIDs(specs []ProviderSpec) []string {
	ids := make([]string, len(specs))
	for i, s := range specs {
		ids[i] = s.ProviderID
	}
	return ids
}

func TestOrderer_Priority(t *testing.T) {
	orderer := NewOrderer(NewMetricsStore(), nil)
	candidates := []ProviderSpec{
		{ProviderID: "openai"},
		{ProviderID: "anthropic"},
		{ProviderID: "google"},
		{ProviderID: "mistral"},
	}

	t.Run("no_preference_keeps_caller_order", func(t *testing.T) {
		ordered := orderer.Order(candidates, StrategyPriority, Request{})
		assert.Equal(t, []string{"openai", "anthropic", "google", "mistral"}, specIDs(ordered))
	})

	t.Run("preferred_moved_to_front_preserving_relative_order", func(t *testing.T) {
		req := Request{PreferredProviders: []string{"google", "anthropic"}}
		ordered := orderer.Order(candidates, StrategyPriority, req)
		assert.Equal(t, []string{"anthropic", "google", "openai", "mistral"}, specIDs(ordered))
	})

	t.Run("input_not_mutated", func(t *testing.T) {
		req := Request{PreferredProviders: []string{"mistral"}}
		_ = orderer.Order(candidates, StrategyPriority, req)
		assert.Equal(t, "openai", candidates[0].ProviderID)
	})
}

func TestOrderer_RoundRobin(t *testing.T) {
	orderer := NewOrderer(NewMetricsStore(), nil)

	t.Run("rotates_by_one", func(t *testing.T) {
		candidates := []ProviderSpec{
			{ProviderID: "a"}, {ProviderID: "b"}, {ProviderID: "c"},
		}
		ordered := orderer.Order(candidates, StrategyRoundRobin, Request{})
		assert.Equal(t, []string{"b", "c", "a"}, specIDs(ordered))
	})

	t.Run("single_candidate_unchanged", func(t *testing.T) {
		ordered := orderer.Order([]ProviderSpec{{ProviderID: "a"}}, StrategyRoundRobin, Request{})
		assert.Equal(t, []string{"a"}, specIDs(ordered))
	})
}

func TestOrderer_LeastCost(t *testing.T) {
	prices := map[string]float64{"mid": 0.03, "cheap": 0.002, "low": 0.008}
	estimate := func(spec ProviderSpec, in, out int) float64 {
		return prices[spec.ProviderID] * float64(in+out) / 1000
	}
	orderer := NewOrderer(NewMetricsStore(), estimate)

	// Ascending price order regardless of input order
	candidates := []ProviderSpec{
		{ProviderID: "mid"}, {ProviderID: "cheap"}, {ProviderID: "low"},
	}
	ordered := orderer.Order(candidates, StrategyLeastCost, Request{})
	assert.Equal(t, []string{"cheap", "low", "mid"}, specIDs(ordered))
}

func TestOrderer_Fastest(t *testing.T) {
	metrics := NewMetricsStore()
	metrics.RecordSuccess("slow", 4*time.Second, 10, 0)
	metrics.RecordSuccess("quick", time.Second, 10, 0)
	orderer := NewOrderer(metrics, nil)

	t.Run("ascending_by_avg_latency", func(t *testing.T) {
		candidates := []ProviderSpec{{ProviderID: "slow"}, {ProviderID: "quick"}}
		ordered := orderer.Order(candidates, StrategyFastest, Request{})
		assert.Equal(t, []string{"quick", "slow"}, specIDs(ordered))
	})

	t.Run("untested_providers_first", func(t *testing.T) {
		candidates := []ProviderSpec{{ProviderID: "slow"}, {ProviderID: "fresh"}}
		ordered := orderer.Order(candidates, StrategyFastest, Request{})
		assert.Equal(t, []string{"fresh", "slow"}, specIDs(ordered))
	})
}

func TestOrderer_Adaptive(t *testing.T) {
	t.Run("reliable_beats_fast_but_flaky", func(t *testing.T) {
		metrics := NewMetricsStore()
		// Provider A: success_rate 0.95, avg latency 2s, avg cost 0.03
		metrics.Seed([]HistoricalAggregate{
			{ProviderID: "a", SuccessCount: 95, FailureCount: 5, TotalLatency: 190 * time.Second, TotalCost: 95 * 0.03},
			{ProviderID: "b", SuccessCount: 50, FailureCount: 50, TotalLatency: 50 * time.Second, TotalCost: 50 * 0.03},
		})
		orderer := NewOrderer(metrics, nil)

		ordered := orderer.Order([]ProviderSpec{{ProviderID: "b"}, {ProviderID: "a"}}, StrategyAdaptive, Request{})
		assert.Equal(t, []string{"a", "b"}, specIDs(ordered))
	})

	t.Run("recent_success_boost", func(t *testing.T) {
		metrics := NewMetricsStore()
		now := time.Now()
		// Identical aggregates except "warm" succeeded moments ago
		metrics.Seed([]HistoricalAggregate{
			{ProviderID: "cold", SuccessCount: 80, FailureCount: 20, TotalLatency: 80 * time.Second, LastSuccess: now.Add(-time.Hour)},
			{ProviderID: "warm", SuccessCount: 80, FailureCount: 20, TotalLatency: 80 * time.Second, LastSuccess: now.Add(-time.Minute)},
		})
		orderer := NewOrderer(metrics, nil)
		orderer.now = func() time.Time { return now }

		ordered := orderer.Order([]ProviderSpec{{ProviderID: "cold"}, {ProviderID: "warm"}}, StrategyAdaptive, Request{})
		assert.Equal(t, []string{"warm", "cold"}, specIDs(ordered))
	})

	t.Run("score_weights", func(t *testing.T) {
		metrics := NewMetricsStore()
		metrics.Seed([]HistoricalAggregate{
			{ProviderID: "a", SuccessCount: 95, FailureCount: 5, TotalLatency: 190 * time.Second, TotalCost: 95 * 0.03},
		})
		orderer := NewOrderer(metrics, nil)
		orderer.now = func() time.Time { return time.Now().Add(time.Hour) } // outside recency window

		score := orderer.adaptiveScore(ProviderSpec{ProviderID: "a"})
		want := 0.4*0.95 + 0.3/(1+2.0) + 0.3/(1+0.03)
		require.InDelta(t, want, score, 1e-9)
	})
}
