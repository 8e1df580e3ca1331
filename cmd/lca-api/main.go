// Package main provides lca-api, the HTTP server for LCA wage disclosure search
// and hub reads.
//
// Usage:
//
//	lca-api [-config path]
//
// Configuration comes from built-in defaults, an optional YAML file (-config or
// LCA_CONFIG) and LCA_* environment variables, e.g. LCA_DATABASE_HOST,
// LCA_SERVER_ADDR, LCA_NATS_URL. LCA_NATS_EMBEDDED=true runs an in-process NATS
// server that lcactl refresh can publish to.
//
// API Endpoints:
//
//	GET|POST /api/v1/search
//	    Case search. Query parameters or a JSON body with employer, job, city,
//	    state, year, minWage, maxWage, status, page, limit, sample.
//
//	GET /api/v1/states?min_cases=N
//	    States with at least N filings.
//
//	GET /api/v1/states/{state}
//	    State summary with per-year series.
//
//	GET /api/v1/states/{state}/top/{city|employer|job}?limit=N
//	    Ranked entities in a state.
//
//	GET /api/v1/states/{state}/{city|employer|job}/{slug}?top=N
//	    Entity summary with related entities.
//
//	GET /api/v1/health
//	    Health and view freshness.
//
//	GET /metrics
//	    Prometheus metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lca_wages/internal/api"
	"lca_wages/internal/cache"
	"lca_wages/internal/config"
	"lca_wages/internal/events"
	"lca_wages/internal/logging"
	"lca_wages/internal/query"
	"lca_wages/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (env: LCA_CONFIG)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logging.Init(cfg.LoggerConfig())
	log := logging.WithComponent("lca-api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := storage.OpenPostgres(ctx, cfg.Postgres())
	if err != nil {
		return fmt.Errorf("open PostgreSQL: %w", err)
	}
	defer pg.Close()

	c := cache.New(cfg.Cache.TTL)
	go c.Janitor(ctx, cfg.Cache.JanitorInterval)

	svc := query.NewService(pg, c, cfg.QueryOptions())

	if cfg.Server.WarmOnStart {
		svc.Warm(ctx)
	}

	natsURL := cfg.NATS.URL
	if cfg.NATS.Embedded {
		ns, err := events.StartEmbedded(cfg.NATS.EmbeddedHost, cfg.NATS.EmbeddedPort)
		if err != nil {
			return err
		}
		defer ns.Shutdown()
		if natsURL == "" {
			natsURL = ns.ClientURL()
		}
		log.Info().Str("url", ns.ClientURL()).Msg("embedded NATS server started")
	}

	if natsURL != "" {
		ev, err := events.Connect(natsURL, cfg.NATS.Subject)
		if err != nil {
			return err
		}
		defer ev.Close()

		if err := ev.SubscribeViewsRefreshed(func(e events.ViewsRefreshed) {
			log.Info().
				Time("refreshed_at", e.RefreshedAt).
				Strs("views", e.Views).
				Msg("views refreshed, clearing cache")
			svc.Invalidate()
			go func() {
				warmCtx, cancel := context.WithTimeout(ctx, warmTimeout)
				defer cancel()
				svc.Warm(warmCtx)
			}()
		}); err != nil {
			return err
		}
		log.Info().Str("subject", ev.Subject()).Msg("listening for view refresh events")
	}

	server := api.NewServer(svc, pg, api.Config{
		SearchRateLimit: cfg.Server.SearchRateLimit,
		RequestTimeout:  cfg.Server.WriteTimeout,
		StaleAfter:      cfg.Server.StaleAfter,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.Router(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("lca-api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// warmTimeout bounds a warm pass triggered outside a request.
const warmTimeout = 2 * time.Minute
