// Package cost provides the default cost-estimation collaborator: a
// YAML-loaded per-model pricing table with decimal arithmetic, plus token
// pre-counting for requests where the provider returns no usage.
package cost

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/llmrelay/relay/internal/dispatch"
)

// ModelPrice holds per-1000-token prices for one model
type ModelPrice struct {
	InputPer1K  float64 `yaml:"input_per_1k"`
	OutputPer1K float64 `yaml:"output_per_1k"`
}

// Table is a pricing table keyed by model name, with a fallback price for
// models not listed.
type Table struct {
	Models  map[string]ModelPrice `yaml:"models"`
	Default ModelPrice            `yaml:"default"`
}

// DefaultTable returns a pricing table with ballpark prices for common
// models. Deployments should load their own table instead.
func DefaultTable() Table {
	return Table{
		Models: map[string]ModelPrice{
			"gpt-4o":           {InputPer1K: 0.0025, OutputPer1K: 0.01},
			"gpt-4o-mini":      {InputPer1K: 0.00015, OutputPer1K: 0.0006},
			"claude-sonnet-4":  {InputPer1K: 0.003, OutputPer1K: 0.015},
			"claude-haiku-3-5": {InputPer1K: 0.0008, OutputPer1K: 0.004},
			"gemini-2.0-flash": {InputPer1K: 0.0001, OutputPer1K: 0.0004},
			"llama-3.3-70b":    {InputPer1K: 0.00059, OutputPer1K: 0.00079},
			"deepseek-chat":    {InputPer1K: 0.00027, OutputPer1K: 0.0011},
			"mistral-large":    {InputPer1K: 0.002, OutputPer1K: 0.006},
		},
		Default: ModelPrice{InputPer1K: 0.001, OutputPer1K: 0.002},
	}
}

// LoadTable reads a pricing table from a YAML file
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("failed to read pricing table: %w", err)
	}

	var table Table
	if err := yaml.Unmarshal(data, &table); err != nil {
		return Table{}, fmt.Errorf("failed to parse pricing table: %w", err)
	}
	if table.Models == nil {
		table.Models = make(map[string]ModelPrice)
	}

	log.Debug().
		Str("path", path).
		Int("models", len(table.Models)).
		Msg("Pricing table loaded")
	return table, nil
}

// Estimator estimates monetary cost per call from a pricing table
type Estimator struct {
	table Table
}

// NewEstimator creates an estimator over the given table
func NewEstimator(table Table) *Estimator {
	return &Estimator{table: table}
}

// Price returns the price entry for a model, falling back to the default
func (e *Estimator) Price(model string) ModelPrice {
	if price, ok := e.table.Models[model]; ok {
		return price
	}
	return e.table.Default
}

// Estimate computes the cost of a call in dollars. Arithmetic is done in
// decimals to avoid drift when per-token prices are summed across millions of
// requests; the result is collapsed to float64 at the boundary because the
// dispatcher's adaptive scoring treats cost as a plain weight.
func (e *Estimator) Estimate(spec dispatch.ProviderSpec, inputTokens, outputTokens int) float64 {
	price := e.Price(spec.Model)

	perK := decimal.NewFromInt(1000)
	in := decimal.NewFromInt(int64(inputTokens)).Div(perK).Mul(decimal.NewFromFloat(price.InputPer1K))
	out := decimal.NewFromInt(int64(outputTokens)).Div(perK).Mul(decimal.NewFromFloat(price.OutputPer1K))

	return in.Add(out).InexactFloat64()
}
