// Package query is the read side of the service: it validates and clamps
// caller input, applies the caching policy and fans out independent reads.
package query

import (
	"context"
	"time"

	"lca_wages/internal/cache"
	"lca_wages/internal/storage"
)

// Store is the storage surface the query layer reads through.
type Store interface {
	SearchCases(ctx context.Context, p storage.SearchParams) ([]storage.CaseRow, error)
	SampleCases(ctx context.Context, year, limit int) ([]storage.CaseRow, error)
	StateSummary(ctx context.Context, state string) (*storage.StateSummary, error)
	TopEntities(ctx context.Context, state string, kind storage.EntityKind, limit int) ([]storage.EntityRank, error)
	ResolveEntity(ctx context.Context, state string, kind storage.EntityKind, variants []string) (string, error)
	EntityStats(ctx context.Context, state string, kind storage.EntityKind, name string) (*storage.EntityStats, error)
	RelatedEntities(ctx context.Context, state string, kind storage.EntityKind, name string, related storage.EntityKind, limit int) ([]storage.EntityRank, error)
	IndexableStates(ctx context.Context, minCases int64) ([]storage.StateSummary, error)
}

// Options holds the clamping bounds and cache identity.
type Options struct {
	LimitMax     int   // Upper bound on search page size.
	DefaultLimit int   // Page size when none is given.
	SampleSize   int   // Rows returned by an unfiltered sample.
	SampleYear   int   // Year an unfiltered sample draws from.
	TopNMax      int   // Upper bound on top-N list length.
	TopNDefault  int   // Top-N list length when none is given.
	MinCases     int64 // Default threshold for indexable states.
	WarmStates   int   // Highest-volume states primed by Warm.
	CacheVersion string
}

// DefaultOptions returns the production bounds.
func DefaultOptions() Options {
	return Options{
		LimitMax:     50,
		DefaultLimit: 25,
		SampleSize:   12,
		SampleYear:   time.Now().Year() - 1,
		TopNMax:      50,
		TopNDefault:  10,
		MinCases:     100,
		WarmStates:   10,
		CacheVersion: "v1",
	}
}

// Service answers search and hub reads.
type Service struct {
	store Store
	cache *cache.Cache
	opts  Options
}

// NewService creates a query service. Zero-valued options fall back to
// DefaultOptions.
func NewService(store Store, c *cache.Cache, opts Options) *Service {
	def := DefaultOptions()
	if opts.LimitMax <= 0 {
		opts.LimitMax = def.LimitMax
	}
	if opts.DefaultLimit <= 0 || opts.DefaultLimit > opts.LimitMax {
		opts.DefaultLimit = min(def.DefaultLimit, opts.LimitMax)
	}
	if opts.SampleSize <= 0 {
		opts.SampleSize = def.SampleSize
	}
	if opts.SampleYear <= 0 {
		opts.SampleYear = def.SampleYear
	}
	if opts.TopNMax <= 0 {
		opts.TopNMax = def.TopNMax
	}
	if opts.TopNDefault <= 0 || opts.TopNDefault > opts.TopNMax {
		opts.TopNDefault = min(def.TopNDefault, opts.TopNMax)
	}
	if opts.MinCases < 0 {
		opts.MinCases = def.MinCases
	}
	if opts.WarmStates < 0 {
		opts.WarmStates = 0
	}
	if opts.CacheVersion == "" {
		opts.CacheVersion = def.CacheVersion
	}
	if c == nil {
		c = cache.New(24 * time.Hour)
	}
	return &Service{store: store, cache: c, opts: opts}
}

// Options returns the effective options.
func (s *Service) Options() Options {
	return s.opts
}

// Invalidate drops every cached read, typically after the views were refreshed.
func (s *Service) Invalidate() {
	s.cache.Clear()
}

// cacheKey scopes a key to an operation and the cache version tag.
func (s *Service) cacheKey(op string, args ...any) string {
	return cache.GenerateKey(op+":"+s.opts.CacheVersion, args)
}
