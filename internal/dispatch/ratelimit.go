package dispatch

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultRateLimitBackoff is how long a provider is skipped after a
// rate-limit classified failure.
const DefaultRateLimitBackoff = 5 * time.Minute

// RateLimiterRegistry tracks per-provider rate-limit backoff windows,
// independent of circuit-breaker state. A provider that returned a rate-limit
// error is skipped for a fixed backoff window and then cleared automatically.
type RateLimiterRegistry struct {
	mu        sync.RWMutex
	limitedAt map[string]time.Time
	backoff   time.Duration
	now       func() time.Time
}

// NewRateLimiterRegistry creates a registry with the given backoff window.
// A non-positive backoff falls back to the default.
func NewRateLimiterRegistry(backoff time.Duration) *RateLimiterRegistry {
	if backoff <= 0 {
		backoff = DefaultRateLimitBackoff
	}
	return &RateLimiterRegistry{
		limitedAt: make(map[string]time.Time),
		backoff:   backoff,
		now:       time.Now,
	}
}

// Limit marks a provider rate-limited as of now
func (r *RateLimiterRegistry) Limit(providerID string) {
	r.mu.Lock()
	r.limitedAt[providerID] = r.now()
	r.mu.Unlock()

	log.Warn().
		Str("provider", providerID).
		Dur("backoff", r.backoff).
		Msg("Provider rate limited")
}

// IsLimited reports whether the provider is inside its backoff window.
// Expired entries are cleared as a side effect.
func (r *RateLimiterRegistry) IsLimited(providerID string) bool {
	r.mu.RLock()
	limitedAt, exists := r.limitedAt[providerID]
	r.mu.RUnlock()

	if !exists {
		return false
	}
	if r.now().Sub(limitedAt) < r.backoff {
		return true
	}

	r.mu.Lock()
	if at, ok := r.limitedAt[providerID]; ok && r.now().Sub(at) >= r.backoff {
		delete(r.limitedAt, providerID)
	}
	r.mu.Unlock()
	return false
}
