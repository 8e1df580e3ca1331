package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"lca_wages/internal/config"
	"lca_wages/internal/events"
	"lca_wages/internal/logging"
	"lca_wages/internal/storage"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Rebuild the aggregate views and notify API servers",
	Args:  cobra.NoArgs,
	RunE:  runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(_ *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, pg, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer pg.Close()

	return refreshViews(ctx, cfg, pg)
}

// refreshViews rebuilds every view then, when NATS is configured, tells running
// API servers to drop their caches. A failed notification is logged, not
// returned: the views are already fresh and caches expire on their own.
func refreshViews(ctx context.Context, cfg *config.Config, pg *storage.PostgresDB) error {
	start := time.Now()
	if err := pg.RefreshViews(ctx); err != nil {
		return err
	}
	fmt.Printf("Refreshed %d views in %s.\n", len(storage.AllViews), time.Since(start).Round(time.Millisecond))

	if cfg.NATS.URL == "" {
		return nil
	}

	log := logging.WithComponent("lcactl")
	ev, err := events.Connect(cfg.NATS.URL, cfg.NATS.Subject)
	if err != nil {
		log.Warn().Err(err).Msg("refresh notification skipped")
		return nil
	}
	defer ev.Close()

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := ev.PublishViewsRefreshed(pubCtx, events.ViewsRefreshed{
		RefreshedAt: time.Now().UTC(),
		Views:       storage.AllViews,
	}); err != nil {
		log.Warn().Err(err).Msg("refresh notification failed")
		return nil
	}
	log.Info().Str("subject", ev.Subject()).Msg("refresh notification published")
	return nil
}
