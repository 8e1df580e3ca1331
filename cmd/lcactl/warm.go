package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"lca_wages/internal/cache"
	"lca_wages/internal/query"
)

var warmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Run the cache warm pass against the database and report failures",
	Long: "Runs the same reads the API warms on start. Useful as a smoke test after a " +
		"refresh: every failing key is logged.",
	Args: cobra.NoArgs,
	RunE: runWarm,
}

func init() {
	rootCmd.AddCommand(warmCmd)
}

func runWarm(_ *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, pg, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer pg.Close()

	svc := query.NewService(pg, cache.New(cfg.Cache.TTL), cfg.QueryOptions())
	report := svc.Warm(ctx)

	fmt.Printf("Warmed %d keys in %s, %d failed.\n", report.Keys, report.Took.Round(time.Millisecond), report.Failures)
	if report.Failures > 0 {
		return fmt.Errorf("%d warm reads failed", report.Failures)
	}
	return nil
}
