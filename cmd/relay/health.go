package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/llmrelay/relay/internal/dispatch"
)

var (
	healthCaller string
	healthWindow time.Duration
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show the per-provider health report",
	Long: `Health prints the persisted per-provider aggregates: success rate,
average latency, cumulative cost, and current health. With --caller it also
prints that caller's token spend within the window.`,
	RunE: runHealth,
}

func setupHealthFlags() {
	healthCmd.Flags().StringVar(&healthCaller, "caller", "", "also show this caller's spend summary")
	healthCmd.Flags().DurationVar(&healthWindow, "spend-window", 24*time.Hour, "window for the per-caller spend summary")
}

func runHealth(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := openHistory()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	aggregates, err := store.LoadAggregates(ctx)
	if err != nil {
		return err
	}
	if len(aggregates) == 0 {
		fmt.Println("No provider history recorded yet.")
		return nil
	}

	metrics := dispatch.NewMetricsStore()
	metrics.Seed(aggregates)

	fmt.Printf("%-20s %8s %8s %9s %10s %12s  %s\n",
		"PROVIDER", "SUCCESS", "FAILURE", "RATE", "AVG LAT", "COST", "HEALTHY")
	for _, m := range metrics.Snapshot() {
		fmt.Printf("%-20s %8d %8d %8.1f%% %10s %11.4f$  %v\n",
			m.ProviderID, m.SuccessCount, m.FailureCount,
			m.SuccessRate()*100, m.AvgLatency().Round(time.Millisecond),
			m.TotalCost, metrics.Healthy(m.ProviderID))
	}

	if healthCaller != "" {
		in, out, err := store.SpendTotal(ctx, healthCaller, time.Now().Add(-healthWindow))
		if err != nil {
			return err
		}
		fmt.Printf("\nSpend for %s over %s: %d input tokens, %d output tokens\n",
			healthCaller, healthWindow, in, out)
	}
	return nil
}
