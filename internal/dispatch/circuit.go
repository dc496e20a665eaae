package dispatch

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Circuit breaker defaults. The failure threshold is configurable per
// deployment; the default of 5 consecutive failures is preserved for
// behavioral compatibility with historical deployments.
const (
	DefaultCircuitThreshold = 5
	DefaultCircuitTimeout   = 10 * time.Minute
)

// CircuitBreakerRegistry tracks per-provider circuit state. A circuit opens
// once a provider accumulates Threshold consecutive failures and stays open
// for Timeout, after which it clears automatically.
type CircuitBreakerRegistry struct {
	mu        sync.RWMutex
	openedAt  map[string]time.Time
	threshold int
	timeout   time.Duration
	now       func() time.Time
}

// NewCircuitBreakerRegistry creates a registry with the given trip threshold
// and open duration. Non-positive arguments fall back to the defaults.
func NewCircuitBreakerRegistry(threshold int, timeout time.Duration) *CircuitBreakerRegistry {
	if threshold <= 0 {
		threshold = DefaultCircuitThreshold
	}
	if timeout <= 0 {
		timeout = DefaultCircuitTimeout
	}
	return &CircuitBreakerRegistry{
		openedAt:  make(map[string]time.Time),
		threshold: threshold,
		timeout:   timeout,
		now:       time.Now,
	}
}

// Threshold returns the consecutive-failure count that trips the circuit
func (r *CircuitBreakerRegistry) Threshold() int {
	return r.threshold
}

// Open opens the circuit for a provider as of now
func (r *CircuitBreakerRegistry) Open(providerID string) {
	r.mu.Lock()
	r.openedAt[providerID] = r.now()
	r.mu.Unlock()

	log.Warn().
		Str("provider", providerID).
		Dur("timeout", r.timeout).
		Msg("Circuit breaker opened")
}

// IsOpen reports whether the provider's circuit is currently open.
// Expired entries are cleared as a side effect.
func (r *CircuitBreakerRegistry) IsOpen(providerID string) bool {
	r.mu.RLock()
	openedAt, exists := r.openedAt[providerID]
	r.mu.RUnlock()

	if !exists {
		return false
	}
	if r.now().Sub(openedAt) < r.timeout {
		return true
	}

	r.mu.Lock()
	// Re-check under the write lock: another goroutine may have re-opened
	if at, ok := r.openedAt[providerID]; ok && r.now().Sub(at) >= r.timeout {
		delete(r.openedAt, providerID)
	}
	r.mu.Unlock()
	return false
}

// Reset clears the circuit for a provider regardless of expiry
func (r *CircuitBreakerRegistry) Reset(providerID string) {
	r.mu.Lock()
	delete(r.openedAt, providerID)
	r.mu.Unlock()
}
