package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"lca_wages/internal/ingest"
	"lca_wages/internal/storage"
	"lca_wages/internal/wage"
)

var (
	flagForce     bool
	flagStrategy  string
	flagBatchSize int
	flagNoRefresh bool
)

var loadCmd = &cobra.Command{
	Use:   "load FILE...",
	Short: "Load disclosure CSV files into the fact table",
	Long: "Load cleaned or raw disclosure CSV files. Files already recorded in the manifest are " +
		"skipped unless --force is given. Views are refreshed once all files are loaded.",
	Args: cobra.MinimumNArgs(1),
	RunE: runLoad,
}

func init() {
	loadCmd.Flags().BoolVar(&flagForce, "force", false, "Reload files already in the manifest")
	loadCmd.Flags().StringVar(&flagStrategy, "strategy", "", "Base rate for annualisation: from, avg or max (default from config)")
	loadCmd.Flags().IntVar(&flagBatchSize, "batch-size", 0, "Rows per staging batch (default from config)")
	loadCmd.Flags().BoolVar(&flagNoRefresh, "no-refresh", false, "Skip the view refresh after loading")
	rootCmd.AddCommand(loadCmd)
}

func runLoad(_ *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, pg, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer pg.Close()

	manifest, err := storage.OpenManifest(cfg.Load.ManifestPath)
	if err != nil {
		return err
	}
	defer func() { _ = manifest.Close() }()

	opts := ingest.LoadOptions{
		BatchSize: cfg.Load.BatchSize,
		Strategy:  wage.ParseStrategy(cfg.Load.WageStrategy),
		Force:     flagForce,
	}
	if flagStrategy != "" {
		opts.Strategy = wage.ParseStrategy(flagStrategy)
	}
	if flagBatchSize > 0 {
		opts.BatchSize = flagBatchSize
	}

	var loaded int
	for _, path := range args {
		res, err := ingest.LoadFile(ctx, pg, manifest, path, opts)
		if err != nil {
			return err
		}
		if res.Skipped {
			fmt.Printf("  %-50s skipped (already loaded)\n", filepath.Base(path))
			continue
		}
		loaded++
		fmt.Printf("  %-50s %8d rows  %8d upserted  %s\n",
			filepath.Base(path), res.Stats.OutputRows, res.Upserted, res.Took.Round(time.Millisecond))
	}

	if loaded == 0 || flagNoRefresh {
		return nil
	}
	return refreshViews(ctx, cfg, pg)
}
