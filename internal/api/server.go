// Package api provides the REST endpoints for case search and hub reads.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lca_wages/internal/logging"
	"lca_wages/internal/metrics"
	"lca_wages/internal/query"
	"lca_wages/internal/storage"
)

// Queries is the read surface the handlers call.
type Queries interface {
	SearchCases(ctx context.Context, req query.SearchRequest) (*query.SearchResult, error)
	GetStateSummary(ctx context.Context, state string) (*storage.StateSummary, error)
	GetTopEntities(ctx context.Context, state, kind string, limit int) ([]storage.EntityRank, error)
	GetEntitySummary(ctx context.Context, state, entitySlug, kind string, topN int) (*query.EntitySummary, error)
	GetIndexableStates(ctx context.Context, minCases int64) ([]storage.StateSummary, error)
}

// Freshness reports when the aggregate views were last rebuilt.
type Freshness interface {
	ViewsRefreshedAt(ctx context.Context) (*time.Time, error)
}

// Config holds configuration for the API server.
type Config struct {
	// SearchRateLimit is the number of search requests per client IP per
	// minute. Zero disables the limiter.
	SearchRateLimit int
	// RequestTimeout bounds each request.
	RequestTimeout time.Duration
	// StaleAfter marks the views stale in /health once they are older.
	StaleAfter time.Duration
}

// Server wires the query service onto HTTP routes.
type Server struct {
	queries Queries
	fresh   Freshness
	cfg     Config
}

// NewServer creates an API server. fresh may be nil, in which case /health
// reports no view freshness.
func NewServer(q Queries, fresh Freshness, cfg Config) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 48 * time.Hour
	}
	return &Server{queries: q, fresh: fresh, cfg: cfg}
}

// Router returns the full handler tree with middleware applied.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger)
	r.Use(metrics.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))
	r.Use(corsMiddleware)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.searchLimiter())
			r.Get("/search", s.handleSearch)
			r.Post("/search", s.handleSearch)
		})

		r.Get("/states", s.handleIndexableStates)
		r.Get("/states/{state}", s.handleStateSummary)
		r.Get("/states/{state}/top/{kind}", s.handleTopEntities)
		r.Get("/states/{state}/{kind}/{slug}", s.handleEntitySummary)
	})

	return r
}

// searchLimiter rate limits search per client IP.
func (s *Server) searchLimiter() func(http.Handler) http.Handler {
	if s.cfg.SearchRateLimit <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return httprate.Limit(
		s.cfg.SearchRateLimit,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.RateLimited.WithLabelValues("search").Inc()
			writeError(w, http.StatusTooManyRequests, "Too many search requests, slow down")
		}),
	)
}

// corsMiddleware adds CORS headers for browser access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeQueryError maps a query error onto a response. Validation errors carry
// their message; anything else is logged and answered with a generic 500.
func writeQueryError(w http.ResponseWriter, r *http.Request, err error) {
	if query.IsValidation(err) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	logging.Ctx(r.Context()).Error().
		Err(err).
		Str("path", r.URL.Path).
		Msg("query failed")
	writeError(w, http.StatusInternalServerError, "Internal server error")
}
