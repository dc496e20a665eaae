package dispatch

import (
	"sort"
	"time"
)

// Adaptive scoring weights. The score balances reliability, speed, and cost,
// with a short-term boost for providers that succeeded recently.
const (
	adaptiveSuccessWeight = 0.4
	adaptiveLatencyWeight = 0.3
	adaptiveCostWeight    = 0.3
	adaptiveRecencyBoost  = 1.2
	adaptiveRecencyWindow = 5 * time.Minute
)

// CostFunc estimates the cost of a call against a provider spec for the given
// input/output token counts. Matches the EstimateCost collaborator contract.
type CostFunc func(spec ProviderSpec, inputTokens, outputTokens int) float64

// Orderer turns a filtered candidate list into an ordered attempt sequence
// according to a routing strategy.
type Orderer struct {
	metrics      *MetricsStore
	estimateCost CostFunc
	now          func() time.Time
}

// NewOrderer creates an orderer backed by the given metrics store and cost
// estimator. estimateCost may be nil when StrategyLeastCost is never used.
func NewOrderer(metrics *MetricsStore, estimateCost CostFunc) *Orderer {
	return &Orderer{
		metrics:      metrics,
		estimateCost: estimateCost,
		now:          time.Now,
	}
}

// Order returns the attempt sequence for the candidates under the strategy.
// The input slice is never mutated.
func (o *Orderer) Order(candidates []ProviderSpec, strategy RoutingStrategy, req Request) []ProviderSpec {
	ordered := make([]ProviderSpec, len(candidates))
	copy(ordered, candidates)

	switch strategy {
	case StrategyRoundRobin:
		return o.roundRobin(ordered)
	case StrategyLeastCost:
		return o.leastCost(ordered)
	case StrategyFastest:
		return o.fastest(ordered)
	case StrategyAdaptive:
		return o.adaptive(ordered)
	default:
		// StrategyPriority and anything unknown keep caller order,
		// with preferred providers moved to the front
		return o.priority(ordered, req)
	}
}

// priority keeps caller-supplied order, moving any candidate whose provider
// id is preferred to the front. Relative order is preserved within both groups.
func (o *Orderer) priority(candidates []ProviderSpec, req Request) []ProviderSpec {
	if len(req.PreferredProviders) == 0 {
		return candidates
	}

	preferred := make(map[string]bool, len(req.PreferredProviders))
	for _, id := range req.PreferredProviders {
		preferred[id] = true
	}

	front := make([]ProviderSpec, 0, len(candidates))
	rest := make([]ProviderSpec, 0, len(candidates))
	for _, spec := range candidates {
		if preferred[spec.ProviderID] {
			front = append(front, spec)
		} else {
			rest = append(rest, spec)
		}
	}
	return append(front, rest...)
}

// roundRobin rotates the list by one position, a stateless approximation of
// fairness across repeated calls.
func (o *Orderer) roundRobin(candidates []ProviderSpec) []ProviderSpec {
	if len(candidates) < 2 {
		return candidates
	}
	return append(candidates[1:], candidates[0])
}

// leastCost sorts ascending by the mean of estimated input and output cost
// per 1000 tokens.
func (o *Orderer) leastCost(candidates []ProviderSpec) []ProviderSpec {
	if o.estimateCost == nil {
		return candidates
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return o.specCost(candidates[i]) < o.specCost(candidates[j])
	})
	return candidates
}

func (o *Orderer) specCost(spec ProviderSpec) float64 {
	return (o.estimateCost(spec, 1000, 0) + o.estimateCost(spec, 0, 1000)) / 2
}

// fastest sorts ascending by current average latency. Providers with no
// latency history sort first, so untested providers are tried eagerly.
func (o *Orderer) fastest(candidates []ProviderSpec) []ProviderSpec {
	sort.SliceStable(candidates, func(i, j int) bool {
		return o.avgLatency(candidates[i]) < o.avgLatency(candidates[j])
	})
	return candidates
}

func (o *Orderer) avgLatency(spec ProviderSpec) time.Duration {
	m, ok := o.metrics.Get(spec.ProviderID)
	if !ok {
		return 0
	}
	return m.AvgLatency()
}

// adaptive sorts descending by a weighted score of success rate, latency, and
// cost, boosting providers that succeeded within the recency window.
func (o *Orderer) adaptive(candidates []ProviderSpec) []ProviderSpec {
	scores := make(map[string]float64, len(candidates))
	for _, spec := range candidates {
		scores[spec.ProviderID] = o.adaptiveScore(spec)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return scores[candidates[i].ProviderID] > scores[candidates[j].ProviderID]
	})
	return candidates
}

func (o *Orderer) adaptiveScore(spec ProviderSpec) float64 {
	m, ok := o.metrics.Get(spec.ProviderID)
	if !ok {
		// Untested providers get a neutral mid-range score
		return adaptiveSuccessWeight*0.5 + adaptiveLatencyWeight + adaptiveCostWeight
	}

	score := adaptiveSuccessWeight*m.SuccessRate() +
		adaptiveLatencyWeight/(1+m.AvgLatency().Seconds()) +
		adaptiveCostWeight/(1+m.AvgCost())

	if !m.LastSuccess.IsZero() && o.now().Sub(m.LastSuccess) < adaptiveRecencyWindow {
		score *= adaptiveRecencyBoost
	}
	return score
}
