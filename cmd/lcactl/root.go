package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"lca_wages/internal/config"
	"lca_wages/internal/logging"
	"lca_wages/internal/storage"
)

var (
	flagConfig string
	flagQuiet  bool
)

var rootCmd = &cobra.Command{
	Use:           "lcactl",
	Short:         "LCA wage database admin tool",
	Long:          "Create the schema, load disclosure CSVs, refresh aggregate views and warm caches.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Path to YAML config file (env: LCA_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Only log warnings and errors")
}

// loadConfig reads the configuration and initialises logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}

	lc := cfg.LoggerConfig()
	if flagQuiet {
		lc.Level = "warn"
	}
	logging.Init(lc)
	return cfg, nil
}

// openDB loads the configuration and connects to PostgreSQL.
func openDB(ctx context.Context) (*config.Config, *storage.PostgresDB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	pg, err := storage.OpenPostgres(ctx, cfg.Postgres())
	if err != nil {
		return nil, nil, fmt.Errorf("open PostgreSQL: %w", err)
	}
	return cfg, pg, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
