package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"lca_wages/internal/logging"
)

// TopNDepth is how many ranked entities each top-N view keeps per state.
const TopNDepth = 100

// Aggregate view names. They are rebuilt out of band and only ever read by the
// request path.
const (
	ViewStateSummary = "mv_state_summary"
	ViewStateYear    = "mv_state_year_summary"
	ViewTopCities    = "mv_state_top_cities"
	ViewTopEmployers = "mv_state_top_employers"
	ViewTopJobs      = "mv_state_top_jobs"
)

// AllViews lists the aggregate views in refresh order.
var AllViews = []string{
	ViewStateSummary,
	ViewStateYear,
	ViewTopCities,
	ViewTopEmployers,
	ViewTopJobs,
}

// Percentiles only consider positive annual wages; every row still counts toward
// total_cases.
const stateSummaryView = `
CREATE MATERIALIZED VIEW IF NOT EXISTS mv_state_summary AS
WITH base AS (
	SELECT worksite_state AS state, year, decision_date, wage_annual
	FROM lca_cases
	WHERE worksite_state IS NOT NULL AND worksite_state <> ''
), latest AS (
	SELECT state, MAX(year) AS latest_year
	FROM base
	GROUP BY state
)
SELECT
	b.state,
	COUNT(*)::bigint AS total_cases,
	l.latest_year,
	MAX(b.decision_date) AS latest_decision_date,
	percentile_cont(0.25) WITHIN GROUP (ORDER BY b.wage_annual)
		FILTER (WHERE b.year = l.latest_year AND b.wage_annual > 0) AS wage_p25,
	percentile_cont(0.50) WITHIN GROUP (ORDER BY b.wage_annual)
		FILTER (WHERE b.year = l.latest_year AND b.wage_annual > 0) AS wage_p50,
	percentile_cont(0.75) WITHIN GROUP (ORDER BY b.wage_annual)
		FILTER (WHERE b.year = l.latest_year AND b.wage_annual > 0) AS wage_p75,
	percentile_cont(0.90) WITHIN GROUP (ORDER BY b.wage_annual)
		FILTER (WHERE b.year = l.latest_year AND b.wage_annual > 0) AS wage_p90,
	(COUNT(*) FILTER (WHERE b.year = l.latest_year AND b.wage_annual > 0))::bigint AS wage_sample_size,
	NOW() AS refreshed_at
FROM base b
JOIN latest l ON l.state = b.state
GROUP BY b.state, l.latest_year
`

const stateYearView = `
CREATE MATERIALIZED VIEW IF NOT EXISTS mv_state_year_summary AS
SELECT
	worksite_state AS state,
	year,
	COUNT(*)::bigint AS total_cases,
	percentile_cont(0.25) WITHIN GROUP (ORDER BY wage_annual) FILTER (WHERE wage_annual > 0) AS wage_p25,
	percentile_cont(0.50) WITHIN GROUP (ORDER BY wage_annual) FILTER (WHERE wage_annual > 0) AS wage_p50,
	percentile_cont(0.75) WITHIN GROUP (ORDER BY wage_annual) FILTER (WHERE wage_annual > 0) AS wage_p75,
	percentile_cont(0.90) WITHIN GROUP (ORDER BY wage_annual) FILTER (WHERE wage_annual > 0) AS wage_p90,
	(COUNT(*) FILTER (WHERE wage_annual > 0))::bigint AS wage_sample_size,
	NOW() AS refreshed_at
FROM lca_cases
WHERE worksite_state IS NOT NULL AND worksite_state <> '' AND year IS NOT NULL
GROUP BY worksite_state, year
`

// topView builds a top-N view over one entity column. Rank ties break by name
// ascending.
func topView(view, column string) string {
	return fmt.Sprintf(`
CREATE MATERIALIZED VIEW IF NOT EXISTS %[1]s AS
SELECT state, name, total_cases, wage_p50, rnk, refreshed_at
FROM (
	SELECT
		worksite_state AS state,
		%[2]s AS name,
		COUNT(*)::bigint AS total_cases,
		percentile_cont(0.50) WITHIN GROUP (ORDER BY wage_annual) FILTER (WHERE wage_annual > 0) AS wage_p50,
		row_number() OVER (PARTITION BY worksite_state ORDER BY COUNT(*) DESC, %[2]s ASC) AS rnk,
		NOW() AS refreshed_at
	FROM lca_cases
	WHERE worksite_state IS NOT NULL AND worksite_state <> ''
		AND %[2]s IS NOT NULL AND %[2]s <> ''
	GROUP BY worksite_state, %[2]s
) ranked
WHERE rnk <= %[3]d
`, view, column, TopNDepth)
}

// viewDDL returns the create statements and the unique index each view needs for
// REFRESH ... CONCURRENTLY.
func viewDDL() []string {
	return []string{
		stateSummaryView,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_mv_state_summary ON mv_state_summary(state)`,
		stateYearView,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_mv_state_year_summary ON mv_state_year_summary(state, year)`,
		topView(ViewTopCities, City.Column()),
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_mv_state_top_cities ON mv_state_top_cities(state, rnk)`,
		topView(ViewTopEmployers, Employer.Column()),
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_mv_state_top_employers ON mv_state_top_employers(state, rnk)`,
		topView(ViewTopJobs, Job.Column()),
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_mv_state_top_jobs ON mv_state_top_jobs(state, rnk)`,
	}
}

func (d *PostgresDB) createViews(ctx context.Context) error {
	for _, stmt := range viewDDL() {
		if _, err := d.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create views: %w", err)
		}
	}
	return nil
}

// RefreshViews rebuilds every aggregate view. CONCURRENTLY keeps readers
// unblocked while a view is rebuilt; this runs outside request serving and with
// no statement timeout.
func (d *PostgresDB) RefreshViews(ctx context.Context) error {
	for _, view := range AllViews {
		start := time.Now()
		if _, err := d.pool.Exec(ctx, "REFRESH MATERIALIZED VIEW CONCURRENTLY "+view); err != nil {
			return fmt.Errorf("refresh %s: %w", view, classify(err))
		}
		logRefresh(ctx, view, time.Since(start))
	}
	return nil
}

// ViewsRefreshedAt returns when the state summary view was last rebuilt, or nil
// when the view holds no rows yet.
func (d *PostgresDB) ViewsRefreshedAt(ctx context.Context) (*time.Time, error) {
	var refreshedAt *time.Time
	err := d.readTx(ctx, "views_refreshed_at", d.cfg.HubTimeout, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `SELECT MIN(refreshed_at) FROM mv_state_summary`).Scan(&refreshedAt)
	})
	if err != nil {
		return nil, fmt.Errorf("views refreshed at: %w", err)
	}
	return refreshedAt, nil
}

func logRefresh(ctx context.Context, view string, took time.Duration) {
	logging.Ctx(ctx).Info().
		Str("view", view).
		Dur("took", took).
		Msg("view refreshed")
}
