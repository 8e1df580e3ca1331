package storage

import (
	"context"
	"fmt"
)

// caseColumns is the fixed column set shared by the load CSV, the staging table and
// the fact table (updated_at aside).
var caseColumns = []string{
	"case_number",
	"case_status",
	"received_date",
	"decision_date",
	"employer_name",
	"job_title",
	"soc_code",
	"soc_title",
	"worksite_city",
	"worksite_state",
	"wage_rate_from",
	"wage_rate_to",
	"wage_unit",
	"wage_annual",
	"year",
}

// CreateSchema creates the fact table, the staging table, their indexes and the
// aggregate views. It is idempotent.
func (d *PostgresDB) CreateSchema(ctx context.Context) error {
	schema := `
	-- Raw fact: one row per disclosed filing.
	CREATE TABLE IF NOT EXISTS lca_cases (
		case_number     TEXT PRIMARY KEY,
		case_status     TEXT,
		received_date   DATE,
		decision_date   DATE,
		employer_name   TEXT,
		job_title       TEXT,
		soc_code        TEXT,
		soc_title       TEXT,
		worksite_city   TEXT,
		worksite_state  TEXT,
		wage_rate_from  NUMERIC,
		wage_rate_to    NUMERIC,
		wage_unit       TEXT,
		wage_annual     NUMERIC,
		year            INTEGER,
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_lca_cases_state_year ON lca_cases(worksite_state, year);
	CREATE INDEX IF NOT EXISTS idx_lca_cases_year_decision ON lca_cases(year, decision_date DESC);
	CREATE INDEX IF NOT EXISTS idx_lca_cases_wage ON lca_cases(wage_annual DESC NULLS LAST, case_number);
	CREATE INDEX IF NOT EXISTS idx_lca_cases_state_employer ON lca_cases(worksite_state, employer_name);
	CREATE INDEX IF NOT EXISTS idx_lca_cases_state_job ON lca_cases(worksite_state, job_title);
	CREATE INDEX IF NOT EXISTS idx_lca_cases_state_city ON lca_cases(worksite_state, worksite_city);

	-- Staging: truncated and refilled per loaded file. load_seq is the row's
	-- position in the file.
	CREATE UNLOGGED TABLE IF NOT EXISTS lca_cases_staging (
		case_number     TEXT,
		case_status     TEXT,
		received_date   DATE,
		decision_date   DATE,
		employer_name   TEXT,
		job_title       TEXT,
		soc_code        TEXT,
		soc_title       TEXT,
		worksite_city   TEXT,
		worksite_state  TEXT,
		wage_rate_from  NUMERIC,
		wage_rate_to    NUMERIC,
		wage_unit       TEXT,
		wage_annual     NUMERIC,
		year            INTEGER,
		load_seq        BIGINT
	);
	ALTER TABLE lca_cases_staging ADD COLUMN IF NOT EXISTS load_seq BIGINT;
	`

	if _, err := d.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	// Trigram indexes make the ILIKE substring filters usable at scale. The
	// extension may be unavailable to unprivileged roles, so failures are ignored.
	if _, err := d.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS pg_trgm`); err == nil {
		for _, col := range []string{"employer_name", "job_title", "worksite_city"} {
			_, _ = d.pool.Exec(ctx, fmt.Sprintf(
				`CREATE INDEX IF NOT EXISTS idx_lca_cases_%s_trgm ON lca_cases USING gin (%s gin_trgm_ops)`, col, col))
		}
	}

	return d.createViews(ctx)
}
