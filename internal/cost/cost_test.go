package cost

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmrelay/relay/internal/dispatch"
)

func TestEstimator_Estimate(t *testing.T) {
	estimator := NewEstimator(Table{
		Models: map[string]ModelPrice{
			"gpt-4o": {InputPer1K: 0.0025, OutputPer1K: 0.01},
		},
		Default: ModelPrice{InputPer1K: 0.001, OutputPer1K: 0.002},
	})

	t.Run("known_model", func(t *testing.T) {
		got := estimator.Estimate(dispatch.ProviderSpec{Model: "gpt-4o"}, 2000, 500)
		// 2 * 0.0025 + 0.5 * 0.01
		assert.InDelta(t, 0.01, got, 1e-9)
	})

	t.Run("unknown_model_uses_default", func(t *testing.T) {
		got := estimator.Estimate(dispatch.ProviderSpec{Model: "mystery"}, 1000, 1000)
		assert.InDelta(t, 0.003, got, 1e-9)
	})

	t.Run("zero_tokens_zero_cost", func(t *testing.T) {
		assert.Zero(t, estimator.Estimate(dispatch.ProviderSpec{Model: "gpt-4o"}, 0, 0))
	})

	t.Run("no_float_drift_on_small_amounts", func(t *testing.T) {
		// 3 * (100 tokens at 0.0001/1K) must sum exactly
		e := NewEstimator(Table{Default: ModelPrice{InputPer1K: 0.0001}})
		total := 0.0
		for i := 0; i < 3; i++ {
			total += e.Estimate(dispatch.ProviderSpec{Model: "m"}, 100, 0)
		}
		assert.InDelta(t, 0.00003, total, 1e-12)
	})
}

func TestLoadTable(t *testing.T) {
	t.Run("valid_table", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "pricing.yaml")
		data := `
models:
  gpt-4o:
    input_per_1k: 0.0025
    output_per_1k: 0.01
default:
  input_per_1k: 0.001
  output_per_1k: 0.002
`
		require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

		table, err := LoadTable(path)
		require.NoError(t, err)
		assert.Equal(t, 0.0025, table.Models["gpt-4o"].InputPer1K)
		assert.Equal(t, 0.002, table.Default.OutputPer1K)
	})

	t.Run("missing_file", func(t *testing.T) {
		_, err := LoadTable(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed_yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("models: [not a map"), 0o644))
		_, err := LoadTable(path)
		assert.Error(t, err)
	})
}

func TestDefaultTable(t *testing.T) {
	table := DefaultTable()
	assert.NotEmpty(t, table.Models)
	assert.Positive(t, table.Default.InputPer1K)

	// Least-cost ordering over the defaults must be deterministic
	e := NewEstimator(table)
	cheap := e.Estimate(dispatch.ProviderSpec{Model: "gemini-2.0-flash"}, 1000, 1000)
	pricey := e.Estimate(dispatch.ProviderSpec{Model: "claude-sonnet-4"}, 1000, 1000)
	assert.Less(t, cheap, pricey)
}

func TestCountTokens_EmptyText(t *testing.T) {
	assert.Zero(t, CountTokens("gpt-4o", ""))
}
