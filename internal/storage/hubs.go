package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"

	"lca_wages/internal/slug"
)

// EntityKind names one of the per-state entity groupings.
type EntityKind string

const (
	City     EntityKind = "city"
	Employer EntityKind = "employer"
	Job      EntityKind = "job"
)

// EntityKinds lists every entity kind in a stable order.
var EntityKinds = []EntityKind{City, Employer, Job}

// ParseEntityKind maps a route segment onto an EntityKind.
func ParseEntityKind(s string) (EntityKind, bool) {
	switch EntityKind(s) {
	case City, Employer, Job:
		return EntityKind(s), true
	}
	return "", false
}

// Column returns the fact table column the kind groups on. It doubles as the
// JSON key entity payloads carry the canonical name under.
func (k EntityKind) Column() string {
	switch k {
	case City:
		return "worksite_city"
	case Employer:
		return "employer_name"
	case Job:
		return "job_title"
	}
	return ""
}

// TopView returns the precomputed top-N view for the kind.
func (k EntityKind) TopView() string {
	switch k {
	case City:
		return ViewTopCities
	case Employer:
		return ViewTopEmployers
	case Job:
		return ViewTopJobs
	}
	return ""
}

// Others returns the two kinds other than k.
func (k EntityKind) Others() []EntityKind {
	out := make([]EntityKind, 0, 2)
	for _, other := range EntityKinds {
		if other != k {
			out = append(out, other)
		}
	}
	return out
}

// Percentiles holds wage percentiles. A nil value means no positive wage was
// available to compute it.
type Percentiles struct {
	P25 *float64 `json:"wage_p25"`
	P50 *float64 `json:"wage_p50"`
	P75 *float64 `json:"wage_p75"`
	P90 *float64 `json:"wage_p90"`
}

// YearPoint is one entry of a state's per-year series.
type YearPoint struct {
	Year       int   `json:"year"`
	TotalCases int64 `json:"total_cases"`
	Percentiles
	SampleSize int64 `json:"wage_sample_size"`
}

// StateSummary is a state's aggregate row plus its year series.
type StateSummary struct {
	State              string
	TotalCases         int64
	LatestYear         *int
	LatestDecisionDate *time.Time
	Percentiles
	SampleSize  int64
	RefreshedAt time.Time
	Series      []YearPoint
}

// EntityRank is one row of a top-N list.
type EntityRank struct {
	Rank       int
	Name       string
	TotalCases int64
	WageP50    *float64
}

// EntityStats is the aggregate for one resolved entity within a state.
type EntityStats struct {
	State              string
	Kind               EntityKind
	Name               string
	TotalCases         int64
	LatestYear         *int
	LatestDecisionDate *time.Time
	Percentiles
	SampleSize int64
}

var stateCodeRe = regexp.MustCompile(`^[A-Z]{2}$`)

// StateSummary returns the aggregate row and ordered year series for a state,
// or nil when the state has no row.
func (d *PostgresDB) StateSummary(ctx context.Context, state string) (*StateSummary, error) {
	var s StateSummary
	var series []byte

	err := d.readTx(ctx, "state_summary", d.cfg.HubTimeout, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			SELECT s.state, s.total_cases, s.latest_year, s.latest_decision_date,
				s.wage_p25, s.wage_p50, s.wage_p75, s.wage_p90, s.wage_sample_size, s.refreshed_at,
				COALESCE((
					SELECT json_agg(json_build_object(
						'year', y.year,
						'total_cases', y.total_cases,
						'wage_p25', y.wage_p25,
						'wage_p50', y.wage_p50,
						'wage_p75', y.wage_p75,
						'wage_p90', y.wage_p90,
						'wage_sample_size', y.wage_sample_size
					) ORDER BY y.year)
					FROM mv_state_year_summary y
					WHERE y.state = s.state
				), '[]'::json)
			FROM mv_state_summary s
			WHERE s.state = $1
		`, state).Scan(&s.State, &s.TotalCases, &s.LatestYear, &s.LatestDecisionDate,
			&s.P25, &s.P50, &s.P75, &s.P90, &s.SampleSize, &s.RefreshedAt, &series)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("state summary %s: %w", state, err)
	}

	s.Series = []YearPoint{}
	if err := json.Unmarshal(series, &s.Series); err != nil {
		return nil, fmt.Errorf("decode year series %s: %w", state, err)
	}
	return &s, nil
}

// TopEntities reads up to limit ranked entities of a kind for a state, rank
// ascending. A state without rows yields an empty slice.
func (d *PostgresDB) TopEntities(ctx context.Context, state string, kind EntityKind, limit int) ([]EntityRank, error) {
	view := kind.TopView()
	if view == "" {
		return nil, fmt.Errorf("top entities: unknown kind %q", kind)
	}

	ranks := []EntityRank{}
	err := d.readTx(ctx, "top_"+string(kind), d.cfg.HubTimeout, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, fmt.Sprintf(`
			SELECT rnk, name, total_cases, wage_p50
			FROM %s
			WHERE state = $1
			ORDER BY rnk ASC
			LIMIT $2
		`, view), state, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var r EntityRank
			var rank int64
			if err := rows.Scan(&rank, &r.Name, &r.TotalCases, &r.WageP50); err != nil {
				return fmt.Errorf("scan rank: %w", err)
			}
			r.Rank = int(rank)
			ranks = append(ranks, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("top %s for %s: %w", kind, state, err)
	}
	return ranks, nil
}

// ResolveEntity finds the canonical name whose slug is one of variants within
// a state. When several raw names share a slug the one with the most cases wins,
// ties broken by name ascending. An empty name means no match.
func (d *PostgresDB) ResolveEntity(ctx context.Context, state string, kind EntityKind, variants []string) (string, error) {
	col := kind.Column()
	if col == "" {
		return "", fmt.Errorf("resolve entity: unknown kind %q", kind)
	}
	if len(variants) == 0 {
		return "", nil
	}

	var name string
	err := d.readTx(ctx, "resolve_"+string(kind), d.cfg.HubTimeout, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, fmt.Sprintf(`
			SELECT %[1]s
			FROM lca_cases
			WHERE worksite_state = $1
				AND %[1]s IS NOT NULL
				AND %[2]s = ANY($2)
			GROUP BY %[1]s
			ORDER BY COUNT(*) DESC, %[1]s ASC
			LIMIT 1
		`, col, slug.SQLExpr(col)), state, variants).Scan(&name)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve %s in %s: %w", kind, state, err)
	}
	return name, nil
}

// EntityStats aggregates every filing for one canonical entity name within a
// state. Percentiles span all years.
func (d *PostgresDB) EntityStats(ctx context.Context, state string, kind EntityKind, name string) (*EntityStats, error) {
	col := kind.Column()
	if col == "" {
		return nil, fmt.Errorf("entity stats: unknown kind %q", kind)
	}

	s := EntityStats{State: state, Kind: kind, Name: name}
	err := d.readTx(ctx, "entity_"+string(kind), d.cfg.HubTimeout, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, fmt.Sprintf(`
			SELECT
				COUNT(*)::bigint,
				MAX(year),
				MAX(decision_date),
				percentile_cont(0.25) WITHIN GROUP (ORDER BY wage_annual) FILTER (WHERE wage_annual > 0),
				percentile_cont(0.50) WITHIN GROUP (ORDER BY wage_annual) FILTER (WHERE wage_annual > 0),
				percentile_cont(0.75) WITHIN GROUP (ORDER BY wage_annual) FILTER (WHERE wage_annual > 0),
				percentile_cont(0.90) WITHIN GROUP (ORDER BY wage_annual) FILTER (WHERE wage_annual > 0),
				(COUNT(*) FILTER (WHERE wage_annual > 0))::bigint
			FROM lca_cases
			WHERE worksite_state = $1 AND %s = $2
		`, col), state, name).Scan(&s.TotalCases, &s.LatestYear, &s.LatestDecisionDate,
			&s.P25, &s.P50, &s.P75, &s.P90, &s.SampleSize)
	})
	if err != nil {
		return nil, fmt.Errorf("entity stats %s %q in %s: %w", kind, name, state, err)
	}
	if s.TotalCases == 0 {
		return nil, nil
	}
	return &s, nil
}

// RelatedEntities ranks entities of kind related among filings for one entity
// of kind within a state. Ties break by name ascending.
func (d *PostgresDB) RelatedEntities(ctx context.Context, state string, kind EntityKind, name string, related EntityKind, limit int) ([]EntityRank, error) {
	col, relCol := kind.Column(), related.Column()
	if col == "" || relCol == "" {
		return nil, fmt.Errorf("related entities: unknown kind %q/%q", kind, related)
	}

	ranks := []EntityRank{}
	err := d.readTx(ctx, "related_"+string(related), d.cfg.HubTimeout, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, fmt.Sprintf(`
			SELECT %[2]s,
				COUNT(*)::bigint AS total_cases,
				percentile_cont(0.50) WITHIN GROUP (ORDER BY wage_annual) FILTER (WHERE wage_annual > 0)
			FROM lca_cases
			WHERE worksite_state = $1 AND %[1]s = $2
				AND %[2]s IS NOT NULL AND %[2]s <> ''
			GROUP BY %[2]s
			ORDER BY total_cases DESC, %[2]s ASC
			LIMIT $3
		`, col, relCol), state, name, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			r := EntityRank{Rank: len(ranks) + 1}
			if err := rows.Scan(&r.Name, &r.TotalCases, &r.WageP50); err != nil {
				return fmt.Errorf("scan related: %w", err)
			}
			ranks = append(ranks, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("related %s for %s %q in %s: %w", related, kind, name, state, err)
	}
	return ranks, nil
}

// IndexableStates lists state summaries with at least minCases filings whose
// code is two uppercase letters, ordered by state code.
func (d *PostgresDB) IndexableStates(ctx context.Context, minCases int64) ([]StateSummary, error) {
	states := []StateSummary{}
	err := d.readTx(ctx, "indexable_states", d.cfg.HubTimeout, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT state, total_cases, latest_year, latest_decision_date,
				wage_p25, wage_p50, wage_p75, wage_p90, wage_sample_size, refreshed_at
			FROM mv_state_summary
			WHERE total_cases >= $1 AND state ~ '^[A-Z]{2}$'
			ORDER BY state
		`, minCases)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var s StateSummary
			if err := rows.Scan(&s.State, &s.TotalCases, &s.LatestYear, &s.LatestDecisionDate,
				&s.P25, &s.P50, &s.P75, &s.P90, &s.SampleSize, &s.RefreshedAt); err != nil {
				return fmt.Errorf("scan state: %w", err)
			}
			if !stateCodeRe.MatchString(s.State) {
				continue
			}
			states = append(states, s)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("indexable states: %w", err)
	}
	return states, nil
}
