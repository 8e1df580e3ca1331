package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// CaseRow is one filing as returned by search. Nullable columns are pointers.
type CaseRow struct {
	CaseNumber    string
	CaseStatus    *string
	ReceivedDate  *time.Time
	DecisionDate  *time.Time
	EmployerName  *string
	JobTitle      *string
	SOCCode       *string
	SOCTitle      *string
	WorksiteCity  *string
	WorksiteState *string
	WageRateFrom  *float64
	WageRateTo    *float64
	WageUnit      *string
	WageAnnual    *float64
	Year          *int
}

// SearchParams holds already validated and clamped search filters. Empty
// strings and nil pointers mean "no filter".
type SearchParams struct {
	Employer string // Substring match on employer_name (case-insensitive).
	Job      string // Substring match on job_title (case-insensitive).
	City     string // Substring match on worksite_city (case-insensitive).
	State    string // Exact match on worksite_state.
	Status   string // Exact match on case_status.
	Year     *int
	MinWage  *float64
	MaxWage  *float64

	// ByDecisionDate orders newest decisions first instead of highest wage first.
	ByDecisionDate bool

	Limit  int
	Offset int
}

const caseSelect = `SELECT case_number, case_status, received_date, decision_date,
	employer_name, job_title, soc_code, soc_title, worksite_city, worksite_state,
	wage_rate_from::float8, wage_rate_to::float8, wage_unit, wage_annual::float8, year
	FROM lca_cases`

// likeEscaper escapes LIKE metacharacters so user input matches literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(v string) string {
	return "%" + likeEscaper.Replace(v) + "%"
}

// buildSearchQuery renders the search statement. Every user value is bound as a
// parameter; only fixed fragments are concatenated.
func buildSearchQuery(p SearchParams) (string, []any) {
	var conditions []string
	var args []any

	add := func(cond string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if p.Employer != "" {
		add("employer_name ILIKE $%d", containsPattern(p.Employer))
	}
	if p.Job != "" {
		add("job_title ILIKE $%d", containsPattern(p.Job))
	}
	if p.City != "" {
		add("worksite_city ILIKE $%d", containsPattern(p.City))
	}
	if p.State != "" {
		add("worksite_state = $%d", p.State)
	}
	if p.Year != nil {
		add("year = $%d", *p.Year)
	}
	if p.MinWage != nil {
		add("wage_annual >= $%d", *p.MinWage)
	}
	if p.MaxWage != nil {
		add("wage_annual <= $%d", *p.MaxWage)
	}
	if p.Status != "" {
		add("case_status = $%d", p.Status)
	}

	query := caseSelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	if p.ByDecisionDate {
		query += " ORDER BY decision_date DESC NULLS LAST, case_number ASC"
	} else {
		query += " ORDER BY wage_annual DESC NULLS LAST, case_number ASC"
	}

	args = append(args, p.Limit, p.Offset)
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	return query, args
}

// SearchCases runs a filtered search under the search statement timeout.
func (d *PostgresDB) SearchCases(ctx context.Context, p SearchParams) ([]CaseRow, error) {
	query, args := buildSearchQuery(p)

	var cases []CaseRow
	err := d.readTx(ctx, "search_cases", d.cfg.SearchTimeout, func(tx pgx.Tx) error {
		var err error
		cases, err = queryCases(ctx, tx, query, args...)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("search cases: %w", err)
	}
	return cases, nil
}

// SampleCases returns the most recently decided filings with a usable wage for
// one year, under the sample statement timeout.
func (d *PostgresDB) SampleCases(ctx context.Context, year, limit int) ([]CaseRow, error) {
	query := caseSelect + `
		WHERE year = $1 AND wage_annual > 0
		ORDER BY decision_date DESC NULLS LAST, case_number ASC
		LIMIT $2`

	var cases []CaseRow
	err := d.readTx(ctx, "sample_cases", d.cfg.SampleTimeout, func(tx pgx.Tx) error {
		var err error
		cases, err = queryCases(ctx, tx, query, year, limit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("sample cases: %w", err)
	}
	return cases, nil
}

func queryCases(ctx context.Context, tx pgx.Tx, query string, args ...any) ([]CaseRow, error) {
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cases := []CaseRow{}
	for rows.Next() {
		var c CaseRow
		if err := rows.Scan(
			&c.CaseNumber, &c.CaseStatus, &c.ReceivedDate, &c.DecisionDate,
			&c.EmployerName, &c.JobTitle, &c.SOCCode, &c.SOCTitle,
			&c.WorksiteCity, &c.WorksiteState,
			&c.WageRateFrom, &c.WageRateTo, &c.WageUnit, &c.WageAnnual, &c.Year,
		); err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}
