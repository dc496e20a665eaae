// Package dispatch implements a resilient multi-provider request dispatcher.
// It executes a logical completion request against a prioritized list of
// interchangeable providers, failing over on error while tracking per-provider
// health, circuit-breaker and rate-limit state, and caching recent responses.
package dispatch

import (
	"time"
)

// RoutingStrategy selects how candidate providers are ordered before attempts
type RoutingStrategy string

// Routing strategy constants
const (
	StrategyPriority   RoutingStrategy = "priority"
	StrategyRoundRobin RoutingStrategy = "round_robin"
	StrategyLeastCost  RoutingStrategy = "least_cost"
	StrategyFastest    RoutingStrategy = "fastest"
	StrategyAdaptive   RoutingStrategy = "adaptive"
)

// ValidStrategy reports whether s names a known routing strategy
func ValidStrategy(s RoutingStrategy) bool {
	switch s {
	case StrategyPriority, StrategyRoundRobin, StrategyLeastCost, StrategyFastest, StrategyAdaptive:
		return true
	default:
		return false
	}
}

// FailureKind classifies a provider failure
type FailureKind string

// Failure kind constants
const (
	FailureRateLimit          FailureKind = "rate_limit"
	FailureTimeout            FailureKind = "timeout"
	FailureAuthentication     FailureKind = "authentication"
	FailureNetwork            FailureKind = "network_error"
	FailureServiceUnavailable FailureKind = "service_unavailable"
	FailureInvalidResponse    FailureKind = "invalid_response"
	FailureAPIError           FailureKind = "api_error"
)

// Request represents one logical completion request. It is immutable once
// submitted except that a failed attempt may grow ExcludedProviders for the
// remainder of the request's lifetime.
type Request struct {
	CallerID           string          // Caller or session identifier
	Prompt             string          // The prompt to send
	SystemMessage      string          // Optional system/context message
	MaxTokens          int             // Maximum tokens in the response
	Temperature        float64         // Sampling temperature
	Timeout            time.Duration   // Per-attempt timeout
	RetryCount         int             // Retries so far for this logical request
	PreferredProviders []string        // Provider IDs moved to the front under StrategyPriority
	ExcludedProviders  map[string]bool // Provider IDs never attempted for this request
}

// Exclude marks a provider id as excluded for the remainder of this request
func (r *Request) Exclude(providerID string) {
	if r.ExcludedProviders == nil {
		r.ExcludedProviders = make(map[string]bool)
	}
	r.ExcludedProviders[providerID] = true
}

// Excluded reports whether a provider id is excluded for this request
func (r *Request) Excluded(providerID string) bool {
	return r.ExcludedProviders[providerID]
}

// ProviderSpec identifies a concrete provider+model pairing under
// consideration for a request. Multiple specs may share a ProviderID
// (two models from the same vendor).
type ProviderSpec struct {
	ProviderID  string  // Stable provider identifier, used for all state keyed by provider
	Model       string  // Model name at that provider
	MaxTokens   int     // Provider-side generation cap
	Temperature float64 // Provider-side default temperature
	APIKeyEnv   string  // Environment variable holding the credential
	BaseURL     string  // Optional API base URL override (OpenAI-compatible endpoints)
}

// Response represents a successful completion
type Response struct {
	ID           string        // Opaque response identifier
	Content      string        // Produced text
	Provider     ProviderSpec  // The spec that served the request
	InputTokens  int           // Tokens consumed by the prompt
	OutputTokens int           // Tokens produced
	Latency      time.Duration // Wall time of the serving attempt
	Cost         float64       // Estimated cost of the attempt
	FallbackUsed bool          // True when a non-first candidate served the request
	RetryCount   int           // Carried over unchanged from the request
}
