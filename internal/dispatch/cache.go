package dispatch

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultCacheTTL is how long a cached response stays valid
const DefaultCacheTTL = 5 * time.Minute

// Fingerprint computes the deterministic cache key for a request. The key
// covers prompt, max tokens, temperature, and system message only. Caller
// identity is deliberately excluded: two callers issuing byte-identical
// prompts within the TTL share the cached answer, trading per-caller
// isolation for cost reduction.
func Fingerprint(req Request) string {
	keyData, err := json.Marshal(struct {
		Prompt        string  `json:"prompt"`
		MaxTokens     int     `json:"max_tokens"`
		Temperature   float64 `json:"temperature"`
		SystemMessage string  `json:"system_message"`
	}{req.Prompt, req.MaxTokens, req.Temperature, req.SystemMessage})
	if err != nil {
		// Marshaling flat scalar fields cannot fail; fall back to a raw key
		keyData = fmt.Appendf(nil, "%s:%d:%f:%s", req.Prompt, req.MaxTokens, req.Temperature, req.SystemMessage)
	}

	hash := sha256.Sum256(keyData)
	return hex.EncodeToString(hash[:])
}

// cacheEntry pairs a cached response with its storage time
type cacheEntry struct {
	response Response
	cachedAt time.Time
	hitCount int
}

// CacheStats provides statistics about cache performance
type CacheStats struct {
	Hits    int64
	Misses  int64
	Entries int
	HitRate float64
}

// ResponseCache is a TTL-bounded in-memory cache of successful responses
// keyed by request fingerprint. Safe for concurrent use.
type ResponseCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	ttl     time.Duration
	hits    int64
	misses  int64
	now     func() time.Time
}

// NewResponseCache creates a cache with the given TTL.
// A non-positive TTL falls back to the default.
func NewResponseCache(ttl time.Duration) *ResponseCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &ResponseCache{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get retrieves a live cached response for the fingerprint if one exists.
// Expired entries are evicted on access.
func (c *ResponseCache) Get(fingerprint string) (Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[fingerprint]
	if !exists {
		c.misses++
		return Response{}, false
	}
	if c.now().Sub(entry.cachedAt) >= c.ttl {
		delete(c.entries, fingerprint)
		c.misses++
		return Response{}, false
	}

	c.hits++
	entry.hitCount++

	log.Debug().
		Str("fingerprint", keyPreview(fingerprint)).
		Int("hit_count", entry.hitCount).
		Msg("Response cache hit")

	return entry.response, true
}

// Set stores a response under the fingerprint
func (c *ResponseCache) Set(fingerprint string, resp Response) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[fingerprint] = &cacheEntry{
		response: resp,
		cachedAt: c.now(),
	}

	log.Debug().
		Str("fingerprint", keyPreview(fingerprint)).
		Int("total_entries", len(c.entries)).
		Msg("Response cached")
}

// keyPreview shortens a fingerprint for log output
func keyPreview(fingerprint string) string {
	if len(fingerprint) > 16 {
		return fingerprint[:16] + "..."
	}
	return fingerprint
}

// Clear removes all entries and resets statistics
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics
func (c *ResponseCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}
	return CacheStats{
		Hits:    c.hits,
		Misses:  c.misses,
		Entries: len(c.entries),
		HitRate: hitRate,
	}
}
