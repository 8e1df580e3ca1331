package query

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"lca_wages/internal/logging"
	"lca_wages/internal/metrics"
	"lca_wages/internal/storage"
)

// WarmReport summarises one warm pass.
type WarmReport struct {
	Keys     int
	Failures int
	Took     time.Duration
}

// warmConcurrency keeps the warm pass from taking the whole pool.
const warmConcurrency = 2

// Warm primes the cache for the highest-traffic reads: the state index and, for
// the WarmStates busiest states, the state summary and every top-N list. It is
// best effort; per-key failures are logged and counted, never returned.
func (s *Service) Warm(ctx context.Context) WarmReport {
	start := time.Now()
	var keys, failures atomic.Int64

	record := func(what, state string, err error) {
		keys.Add(1)
		if err != nil {
			failures.Add(1)
			metrics.WarmFailures.Inc()
			logging.Ctx(ctx).Warn().Err(err).Str("key", what).Str("state", state).Msg("cache warm failed")
		}
	}

	states, err := s.GetIndexableStates(ctx, s.opts.MinCases)
	record("indexable_states", "", err)

	busiest := make([]storage.StateSummary, len(states))
	copy(busiest, states)
	sort.SliceStable(busiest, func(i, j int) bool {
		return busiest[i].TotalCases > busiest[j].TotalCases
	})
	if len(busiest) > s.opts.WarmStates {
		busiest = busiest[:s.opts.WarmStates]
	}

	g := new(errgroup.Group)
	g.SetLimit(warmConcurrency)
	for _, st := range busiest {
		state := st.State
		g.Go(func() error {
			_, err := s.GetStateSummary(ctx, state)
			record("state_summary", state, err)
			return nil
		})
		for _, kind := range storage.EntityKinds {
			g.Go(func() error {
				_, err := s.GetTopEntities(ctx, state, string(kind), s.opts.TopNDefault)
				record("top_"+string(kind), state, err)
				return nil
			})
		}
	}
	_ = g.Wait()

	report := WarmReport{
		Keys:     int(keys.Load()),
		Failures: int(failures.Load()),
		Took:     time.Since(start),
	}
	logging.Ctx(ctx).Info().
		Int("keys", report.Keys).
		Int("failures", report.Failures).
		Dur("took", report.Took).
		Msg("cache warmed")
	return report
}
