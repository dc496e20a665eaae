package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/llmrelay/relay/internal/cost"
	"github.com/llmrelay/relay/internal/dispatch"
	"github.com/llmrelay/relay/internal/history"
	"github.com/llmrelay/relay/internal/providers"
)

var (
	dispatchPrompt   string
	dispatchSystem   string
	dispatchCaller   string
	dispatchStrategy string
	dispatchMaxTok   int
	dispatchTemp     float64
	dispatchPrefer   []string
	dispatchExclude  []string
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Dispatch a completion request across the provider catalog",
	Long: `Dispatch sends one completion request through the failover dispatcher.

Candidates come from the provider catalog in priority order. Providers with
open circuits, active rate limits, poor recent health, or missing credentials
are skipped; the rest are ordered by the routing strategy and attempted in
sequence until one succeeds.`,
	RunE: runDispatch,
}

func setupDispatchFlags() {
	dispatchCmd.Flags().StringVarP(&dispatchPrompt, "prompt", "p", "", "prompt to dispatch (required)")
	dispatchCmd.Flags().StringVar(&dispatchSystem, "system", "", "optional system message")
	dispatchCmd.Flags().StringVar(&dispatchCaller, "caller", "cli", "caller identifier for the spend ledger")
	dispatchCmd.Flags().StringVarP(&dispatchStrategy, "strategy", "s", "", "routing strategy (priority, round_robin, least_cost, fastest, adaptive)")
	dispatchCmd.Flags().IntVar(&dispatchMaxTok, "max-tokens", 1024, "maximum tokens in the response")
	dispatchCmd.Flags().Float64Var(&dispatchTemp, "temperature", 0.0, "sampling temperature")
	dispatchCmd.Flags().StringSliceVar(&dispatchPrefer, "prefer", nil, "provider ids to move to the front (priority strategy)")
	dispatchCmd.Flags().StringSliceVar(&dispatchExclude, "exclude", nil, "provider ids to exclude")
	_ = dispatchCmd.MarkFlagRequired("prompt")
}

func runDispatch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	specs, err := providers.LoadCatalog(cfg.Providers.CatalogPath)
	if err != nil {
		return err
	}

	store, err := openHistory()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	estimator, err := loadEstimator()
	if err != nil {
		return err
	}

	metrics := dispatch.NewMetricsStore()
	aggregates, err := store.LoadAggregates(ctx)
	if err != nil {
		return err
	}
	metrics.Seed(aggregates)

	adapter := providers.NewAdapter()
	dispatcher := dispatch.NewDispatcher(
		dispatch.Collaborators{
			CallProvider:       adapter.Call,
			EstimateCost:       estimator.Estimate,
			ValidateCredential: providers.ValidateCredential,
			RecordSpend:        store.RecordSpend,
		},
		metrics,
		dispatch.NewCircuitBreakerRegistry(cfg.Circuit.FailureThreshold, cfg.Circuit.Timeout),
		dispatch.NewRateLimiterRegistry(cfg.RateLimit.Backoff),
		dispatch.NewResponseCache(cfg.Cache.TTL),
	)

	strategy := cfg.Strategy()
	if dispatchStrategy != "" {
		strategy = dispatch.RoutingStrategy(dispatchStrategy)
		if !dispatch.ValidStrategy(strategy) {
			return fmt.Errorf("unknown routing strategy: %s", dispatchStrategy)
		}
	}

	req := dispatch.Request{
		CallerID:           dispatchCaller,
		Prompt:             dispatchPrompt,
		SystemMessage:      dispatchSystem,
		MaxTokens:          dispatchMaxTok,
		Temperature:        dispatchTemp,
		Timeout:            cfg.Dispatch.RequestTimeout,
		PreferredProviders: dispatchPrefer,
	}
	for _, id := range dispatchExclude {
		req.Exclude(id)
	}

	start := time.Now()
	resp, err := dispatcher.Execute(ctx, req, specs, strategy)
	if err != nil {
		return err
	}

	// Persist updated aggregates so the next invocation seeds warm
	if err := store.SaveAggregates(ctx, metrics.Snapshot()); err != nil {
		log.Warn().Err(err).Msg("Failed to persist provider aggregates")
	}

	fmt.Println(resp.Content)
	fmt.Fprintf(os.Stderr, "\nprovider=%s model=%s tokens=%d/%d cost=$%.6f latency=%s fallback=%v total=%s\n",
		resp.Provider.ProviderID, resp.Provider.Model,
		resp.InputTokens, resp.OutputTokens, resp.Cost,
		resp.Latency.Round(time.Millisecond), resp.FallbackUsed,
		time.Since(start).Round(time.Millisecond))
	return nil
}

// openHistory opens the history database, creating its directory if needed
func openHistory() (*history.Store, error) {
	if dir := filepath.Dir(cfg.History.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}
	return history.Open(cfg.History.DBPath)
}

// loadEstimator builds the cost estimator from the configured pricing table,
// falling back to built-in prices when no table is configured
func loadEstimator() (*cost.Estimator, error) {
	if cfg.Pricing.TablePath == "" {
		return cost.NewEstimator(cost.DefaultTable()), nil
	}
	table, err := cost.LoadTable(cfg.Pricing.TablePath)
	if err != nil {
		return nil, err
	}
	return cost.NewEstimator(table), nil
}
