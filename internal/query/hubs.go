package query

import (
	"context"

	"golang.org/x/sync/errgroup"

	"lca_wages/internal/cache"
	"lca_wages/internal/slug"
	"lca_wages/internal/storage"
)

// EntitySummary is a resolved entity with its stats and the top entities of
// the other two kinds among its filings.
type EntitySummary struct {
	storage.EntityStats
	Slug    string
	Related map[storage.EntityKind][]storage.EntityRank
}

func parseKind(kind string) (storage.EntityKind, error) {
	k, ok := storage.ParseEntityKind(kind)
	if !ok {
		return "", invalid("kind", "kind must be one of city, employer, job")
	}
	return k, nil
}

// clampTopN bounds a top-N length to [1, TopNMax], using TopNDefault for zero
// or negative values.
func (s *Service) clampTopN(n int) int {
	if n <= 0 {
		return s.opts.TopNDefault
	}
	return min(n, s.opts.TopNMax)
}

// GetStateSummary returns a state's aggregate row and year series, or nil when
// the state has no data.
func (s *Service) GetStateSummary(ctx context.Context, state string) (*storage.StateSummary, error) {
	state, err := normaliseState(state)
	if err != nil {
		return nil, err
	}

	return cache.Remember(s.cache, "state_summary", s.cacheKey("state_summary", state),
		func() (*storage.StateSummary, error) {
			return s.store.StateSummary(ctx, state)
		})
}

// GetTopEntities returns up to limit ranked entities of a kind for a state.
// A state with no rows yields an empty slice.
func (s *Service) GetTopEntities(ctx context.Context, state, kind string, limit int) ([]storage.EntityRank, error) {
	state, err := normaliseState(state)
	if err != nil {
		return nil, err
	}
	k, err := parseKind(kind)
	if err != nil {
		return nil, err
	}
	limit = s.clampTopN(limit)

	return cache.Remember(s.cache, "top_entities", s.cacheKey("top_entities", state, k, limit),
		func() ([]storage.EntityRank, error) {
			ranks, err := s.store.TopEntities(ctx, state, k, limit)
			if err != nil {
				return nil, err
			}
			if ranks == nil {
				ranks = []storage.EntityRank{}
			}
			return ranks, nil
		})
}

// GetEntitySummary resolves a slug to a canonical entity name within a state and
// returns its stats plus the top entities of the other two kinds. It returns nil
// when no name matches. Only found summaries are cached.
func (s *Service) GetEntitySummary(ctx context.Context, state, entitySlug, kind string, topN int) (*EntitySummary, error) {
	state, err := normaliseState(state)
	if err != nil {
		return nil, err
	}
	k, err := parseKind(kind)
	if err != nil {
		return nil, err
	}
	if !slug.IsValid(entitySlug) {
		return nil, invalid("slug", "slug must be lowercase letters and digits separated by single hyphens")
	}
	topN = s.clampTopN(topN)

	return cache.RememberIf(s.cache, "entity_summary", s.cacheKey("entity_summary", state, k, entitySlug, topN),
		func() (*EntitySummary, error) {
			return s.entitySummary(ctx, state, k, entitySlug, topN)
		},
		func(v *EntitySummary) bool { return v != nil })
}

func (s *Service) entitySummary(ctx context.Context, state string, kind storage.EntityKind, entitySlug string, topN int) (*EntitySummary, error) {
	name, err := s.store.ResolveEntity(ctx, state, kind, slug.Variants(entitySlug))
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, nil
	}

	stats, err := s.store.EntityStats(ctx, state, kind, name)
	if err != nil {
		return nil, err
	}
	if stats == nil {
		return nil, nil
	}

	others := kind.Others()
	lists := make([][]storage.EntityRank, len(others))

	g, gctx := errgroup.WithContext(ctx)
	for i, related := range others {
		g.Go(func() error {
			ranks, err := s.store.RelatedEntities(gctx, state, kind, name, related, topN)
			if err != nil {
				return err
			}
			if ranks == nil {
				ranks = []storage.EntityRank{}
			}
			lists[i] = ranks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := &EntitySummary{
		EntityStats: *stats,
		Slug:        entitySlug,
		Related:     make(map[storage.EntityKind][]storage.EntityRank, len(others)),
	}
	for i, related := range others {
		summary.Related[related] = lists[i]
	}
	return summary, nil
}

// GetIndexableStates lists states with at least minCases filings. A negative
// minCases selects the configured default.
func (s *Service) GetIndexableStates(ctx context.Context, minCases int64) ([]storage.StateSummary, error) {
	if minCases < 0 {
		minCases = s.opts.MinCases
	}

	return cache.Remember(s.cache, "indexable_states", s.cacheKey("indexable_states", minCases),
		func() ([]storage.StateSummary, error) {
			states, err := s.store.IndexableStates(ctx, minCases)
			if err != nil {
				return nil, err
			}
			out := make([]storage.StateSummary, 0, len(states))
			for _, st := range states {
				if stateRe.MatchString(st.State) {
					out = append(out, st)
				}
			}
			return out, nil
		})
}
