package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// CallFunc performs the literal outbound provider call. Any error it returns
// is handed to the failure classifier unmodified.
type CallFunc func(ctx context.Context, spec ProviderSpec, req Request) (text string, inputTokens, outputTokens int, err error)

// CredentialFunc reports whether a provider spec's credential is usable
type CredentialFunc func(spec ProviderSpec) bool

// SpendFunc records a successful attempt in an external spend ledger. Errors
// are logged and never affect the dispatch result, but the call completes
// before Execute returns so downstream spend-limit checks see it.
type SpendFunc func(ctx context.Context, callerID string, spec ProviderSpec, inputTokens, outputTokens int, description string) error

// Collaborators are the external contracts the dispatcher consumes.
// CallProvider is required; the rest may be nil.
type Collaborators struct {
	CallProvider       CallFunc
	EstimateCost       CostFunc
	ValidateCredential CredentialFunc
	RecordSpend        SpendFunc
}

// Dispatcher executes logical requests against an ordered candidate list with
// automatic failover. All injected state registries are process-lifetime and
// shared across concurrent Execute calls; the Dispatcher itself holds no
// per-request state.
type Dispatcher struct {
	collab   Collaborators
	metrics  *MetricsStore
	circuits *CircuitBreakerRegistry
	limits   *RateLimiterRegistry
	cache    *ResponseCache
	orderer  *Orderer
}

// NewDispatcher wires a dispatcher from its collaborators and state
// registries. Registries must not be nil; a fresh set per test is the
// intended way to isolate state.
func NewDispatcher(collab Collaborators, metrics *MetricsStore, circuits *CircuitBreakerRegistry, limits *RateLimiterRegistry, cache *ResponseCache) *Dispatcher {
	return &Dispatcher{
		collab:   collab,
		metrics:  metrics,
		circuits: circuits,
		limits:   limits,
		cache:    cache,
		orderer:  NewOrderer(metrics, collab.EstimateCost),
	}
}

// Metrics exposes the health report surface
func (d *Dispatcher) Metrics() *MetricsStore {
	return d.metrics
}

// Cache exposes the response cache, mainly for stats reporting
func (d *Dispatcher) Cache() *ResponseCache {
	return d.cache
}

// Execute runs one logical request. It returns the first successful response,
// annotated with FallbackUsed when a non-first candidate served it. It fails
// only when no candidate is reachable or every reachable candidate was tried,
// returning an error matching ErrAllProvidersUnavailable that wraps the last
// underlying provider error. Attempts are strictly sequential; cancelling ctx
// abandons the in-flight attempt and starts no further ones.
func (d *Dispatcher) Execute(ctx context.Context, req Request, candidates []ProviderSpec, strategy RoutingStrategy) (Response, error) {
	fingerprint := Fingerprint(req)
	if cached, ok := d.cache.Get(fingerprint); ok {
		return cached, nil
	}

	filtered := d.filter(req, candidates)
	if len(filtered) == 0 {
		log.Warn().
			Str("caller", req.CallerID).
			Int("candidates", len(candidates)).
			Msg("All candidates filtered out")
		return Response{}, ErrNoCandidatesAvailable
	}

	ordered := d.orderer.Order(filtered, strategy, req)

	var lastErr error
	attempted := 0
	for idx, spec := range ordered {
		if ctx.Err() != nil {
			if lastErr == nil {
				return Response{}, ctx.Err()
			}
			return Response{}, exhaustedError(attempted, lastErr)
		}
		// An authentication failure earlier in this call may have excluded
		// this provider after ordering
		if req.Excluded(spec.ProviderID) {
			continue
		}

		attempted++
		resp, err := d.attempt(ctx, spec, req)
		if err == nil {
			resp.FallbackUsed = idx > 0
			d.cache.Set(fingerprint, resp)
			d.recordSpend(ctx, req, resp)

			log.Info().
				Str("caller", req.CallerID).
				Str("provider", spec.ProviderID).
				Str("model", spec.Model).
				Bool("fallback", resp.FallbackUsed).
				Dur("latency", resp.Latency).
				Msg("Request dispatched")
			return resp, nil
		}

		lastErr = d.recordFailure(&req, spec, err)
	}

	return Response{}, exhaustedError(attempted, lastErr)
}

// filter drops candidates that are excluded by the request, circuit-open,
// rate-limited, unhealthy, or missing a usable credential.
func (d *Dispatcher) filter(req Request, candidates []ProviderSpec) []ProviderSpec {
	kept := make([]ProviderSpec, 0, len(candidates))
	for _, spec := range candidates {
		switch {
		case req.Excluded(spec.ProviderID):
			log.Debug().Str("provider", spec.ProviderID).Msg("Candidate skipped: excluded by request")
		case d.circuits.IsOpen(spec.ProviderID):
			log.Debug().Str("provider", spec.ProviderID).Msg("Candidate skipped: circuit open")
		case d.limits.IsLimited(spec.ProviderID):
			log.Debug().Str("provider", spec.ProviderID).Msg("Candidate skipped: rate limited")
		case !d.metrics.Healthy(spec.ProviderID):
			log.Debug().Str("provider", spec.ProviderID).Msg("Candidate skipped: unhealthy")
		case d.collab.ValidateCredential != nil && !d.collab.ValidateCredential(spec):
			log.Debug().Str("provider", spec.ProviderID).Msg("Candidate skipped: credential invalid")
		default:
			kept = append(kept, spec)
		}
	}
	return kept
}

// attempt performs one bounded provider call and records success metrics
func (d *Dispatcher) attempt(ctx context.Context, spec ProviderSpec, req Request) (Response, error) {
	attemptCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	start := time.Now()
	text, inTokens, outTokens, err := d.collab.CallProvider(attemptCtx, spec, req)
	latency := time.Since(start)
	if err != nil {
		return Response{}, err
	}

	cost := 0.0
	if d.collab.EstimateCost != nil {
		cost = d.collab.EstimateCost(spec, inTokens, outTokens)
	}
	d.metrics.RecordSuccess(spec.ProviderID, latency, inTokens+outTokens, cost)

	return Response{
		ID:           uuid.NewString(),
		Content:      text,
		Provider:     spec,
		InputTokens:  inTokens,
		OutputTokens: outTokens,
		Latency:      latency,
		Cost:         cost,
		RetryCount:   req.RetryCount,
	}, nil
}

// recordFailure classifies a failed attempt, updates rate-limit and circuit
// state, and excludes the provider for the rest of the call on auth failures.
// It returns the classified error for exhaustion reporting.
func (d *Dispatcher) recordFailure(req *Request, spec ProviderSpec, err error) error {
	kind := ClassifyFailure(err)

	if kind == FailureRateLimit {
		d.limits.Limit(spec.ProviderID)
	}
	if kind == FailureAuthentication {
		req.Exclude(spec.ProviderID)
	}

	consecutive := d.metrics.RecordFailure(spec.ProviderID, kind)
	if consecutive >= d.circuits.Threshold() {
		d.circuits.Open(spec.ProviderID)
	}

	log.Warn().
		Err(err).
		Str("provider", spec.ProviderID).
		Str("model", spec.Model).
		Str("kind", string(kind)).
		Int("consecutive_failures", consecutive).
		Msg("Provider attempt failed")

	return &ProviderError{ProviderID: spec.ProviderID, Kind: kind, Cause: err}
}

// recordSpend invokes the external spend ledger, logging but swallowing errors
func (d *Dispatcher) recordSpend(ctx context.Context, req Request, resp Response) {
	if d.collab.RecordSpend == nil {
		return
	}
	desc := "completion via " + resp.Provider.Model
	if err := d.collab.RecordSpend(ctx, req.CallerID, resp.Provider, resp.InputTokens, resp.OutputTokens, desc); err != nil {
		log.Error().
			Err(err).
			Str("caller", req.CallerID).
			Str("provider", resp.Provider.ProviderID).
			Msg("Failed to record spend")
	}
}
