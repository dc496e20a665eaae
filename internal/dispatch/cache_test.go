package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint(t *testing.T) {
	base := Request{
		CallerID:      "team-a",
		Prompt:        "summarize this document",
		SystemMessage: "be terse",
		MaxTokens:     512,
		Temperature:   0.2,
	}

	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, Fingerprint(base), Fingerprint(base))
	})

	t.Run("caller_identity_excluded", func(t *testing.T) {
		other := base
		other.CallerID = "team-b"
		other.RetryCount = 3
		other.PreferredProviders = []string{"openai"}
		assert.Equal(t, Fingerprint(base), Fingerprint(other))
	})

	t.Run("prompt_changes_key", func(t *testing.T) {
		other := base
		other.Prompt = "translate this document"
		assert.NotEqual(t, Fingerprint(base), Fingerprint(other))
	})

	t.Run("generation_params_change_key", func(t *testing.T) {
		byTokens := base
		byTokens.MaxTokens = 1024
		byTemp := base
		byTemp.Temperature = 0.9
		bySystem := base
		bySystem.SystemMessage = "be verbose"

		assert.NotEqual(t, Fingerprint(base), Fingerprint(byTokens))
		assert.NotEqual(t, Fingerprint(base), Fingerprint(byTemp))
		assert.NotEqual(t, Fingerprint(base), Fingerprint(bySystem))
	})
}

func TestResponseCache_GetSet(t *testing.T) {
	cache := NewResponseCache(5 * time.Minute)

	_, ok := cache.Get("missing")
	assert.False(t, ok)

	resp := Response{ID: "r1", Content: "hello"}
	cache.Set("key1", resp)

	got, ok := cache.Get("key1")
	require.True(t, ok)
	assert.Equal(t, "hello", got.Content)
	assert.Equal(t, "r1", got.ID)
}

func TestResponseCache_TTLExpiry(t *testing.T) {
	cache := NewResponseCache(5 * time.Minute)
	now := time.Now()
	cache.now = func() time.Time { return now }

	cache.Set("key1", Response{Content: "hello"})

	cache.now = func() time.Time { return now.Add(5*time.Minute - time.Second) }
	_, ok := cache.Get("key1")
	assert.True(t, ok)

	cache.now = func() time.Time { return now.Add(5 * time.Minute) }
	_, ok = cache.Get("key1")
	assert.False(t, ok)

	// Expired entry was evicted
	assert.Zero(t, cache.Stats().Entries)
}

func TestResponseCache_Stats(t *testing.T) {
	cache := NewResponseCache(time.Minute)

	cache.Set("a", Response{})
	_, _ = cache.Get("a")
	_, _ = cache.Get("a")
	_, _ = cache.Get("b")

	stats := cache.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 1e-9)

	cache.Clear()
	stats = cache.Stats()
	assert.Zero(t, stats.Hits)
	assert.Zero(t, stats.Entries)
}
