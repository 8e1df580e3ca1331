// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueryDuration tracks read query latency per operation.
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lca_query_duration_seconds",
			Help:    "Read query latency by operation",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 1.5, 3, 5},
		},
		[]string{"op"},
	)

	// QueryErrors counts failed read queries by operation and error kind.
	QueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lca_query_errors_total",
			Help: "Failed read queries by operation and kind (timeout, unavailable, other)",
		},
		[]string{"op", "kind"},
	)

	// PoolAcquireFailures counts requests that could not get a connection in time.
	PoolAcquireFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lca_pool_acquire_failures_total",
			Help: "Connection acquisitions that exceeded the acquire timeout",
		},
	)

	// CacheHits counts cache hits per cached operation.
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lca_cache_hits_total",
			Help: "Cache hits by operation",
		},
		[]string{"op"},
	)

	// CacheMisses counts cache misses per cached operation.
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lca_cache_misses_total",
			Help: "Cache misses by operation",
		},
		[]string{"op"},
	)

	// CacheEntries reports the number of live cache entries.
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lca_cache_entries",
			Help: "Entries currently held in the query cache",
		},
	)

	// WarmFailures counts cache keys the warm pass could not prime.
	WarmFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lca_cache_warm_failures_total",
			Help: "Cache keys that failed to warm",
		},
	)

	// ViewsRefreshedAt holds the unix time the aggregate views were last rebuilt.
	ViewsRefreshedAt = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lca_views_refreshed_timestamp",
			Help: "Unix timestamp of the last aggregate view refresh",
		},
	)

	// RowsLoaded counts rows upserted by the loader.
	RowsLoaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lca_rows_loaded_total",
			Help: "Rows upserted into lca_cases",
		},
	)

	// HTTPRequests counts API requests by route pattern and status.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lca_http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPDuration tracks API latency by route pattern.
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lca_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// RateLimited counts requests rejected by the rate limiter.
	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lca_rate_limited_total",
			Help: "Requests rejected by the rate limiter by route",
		},
		[]string{"route"},
	)
)

// ObserveQuery records the latency of one read query. kind is empty on success,
// otherwise one of timeout, unavailable or other.
func ObserveQuery(op string, d time.Duration, kind string) {
	QueryDuration.WithLabelValues(op).Observe(d.Seconds())
	if kind != "" {
		QueryErrors.WithLabelValues(op, kind).Inc()
	}
}

// ObserveCache records a cache lookup.
func ObserveCache(op string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(op).Inc()
		return
	}
	CacheMisses.WithLabelValues(op).Inc()
}

// Middleware records request counts and latency labelled by chi route pattern,
// which keeps label cardinality bounded.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
