package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// LoadResult reports what one load did.
type LoadResult struct {
	Staged   int64         // Rows copied into staging.
	Upserted int64         // Rows inserted or updated in lca_cases.
	Took     time.Duration // Wall time of the whole transaction.
}

// StageFunc copies one batch of rows into staging and returns how many were
// copied.
type StageFunc func(records []CaseRow) (int64, error)

// stagingColumns is caseColumns plus the row's position within the load.
var stagingColumns = append(append([]string{}, caseColumns...), "load_seq")

// upsertSQL moves staging into the fact table. Per case number the filing with
// the latest decision date wins, then the latest received date, nulls last; on a
// full tie the row staged last wins. An existing row is overwritten field by
// field.
var upsertSQL = func() string {
	cols := strings.Join(caseColumns, ", ")

	var sets []string
	for _, c := range caseColumns[1:] {
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}
	sets = append(sets, "updated_at = NOW()")

	return fmt.Sprintf(`
		INSERT INTO lca_cases (%[1]s, updated_at)
		SELECT DISTINCT ON (case_number) %[1]s, NOW()
		FROM lca_cases_staging
		WHERE case_number IS NOT NULL AND case_number <> ''
		ORDER BY case_number, decision_date DESC NULLS LAST, received_date DESC NULLS LAST, load_seq DESC
		ON CONFLICT (case_number) DO UPDATE SET
			%[2]s
	`, cols, strings.Join(sets, ",\n\t\t\t"))
}()

// LoadStaged truncates staging, lets fill copy any number of batches into it
// and then upserts everything staged into lca_cases, all in one transaction.
// Duplicates are resolved across the whole load, not per batch. Either every
// batch lands or none does.
func (d *PostgresDB) LoadStaged(ctx context.Context, fill func(stage StageFunc) error) (LoadResult, error) {
	start := time.Now()
	var res LoadResult

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("begin load: %w", classify(err))
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `TRUNCATE lca_cases_staging`); err != nil {
		return res, fmt.Errorf("truncate staging: %w", classify(err))
	}

	var seq int64
	stage := func(records []CaseRow) (int64, error) {
		base := seq
		n, err := tx.CopyFrom(ctx,
			pgx.Identifier{"lca_cases_staging"},
			stagingColumns,
			pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
				return append(records[i].values(), base+int64(i)), nil
			}),
		)
		if err != nil {
			return n, fmt.Errorf("copy into staging: %w", classify(err))
		}
		seq += int64(len(records))
		res.Staged += n
		return n, nil
	}
	if err := fill(stage); err != nil {
		return res, err
	}

	tag, err := tx.Exec(ctx, upsertSQL)
	if err != nil {
		return res, fmt.Errorf("upsert cases: %w", classify(err))
	}
	res.Upserted = tag.RowsAffected()

	if err := tx.Commit(ctx); err != nil {
		return res, fmt.Errorf("commit load: %w", classify(err))
	}
	res.Took = time.Since(start)
	return res, nil
}

// LoadBatch stages records and upserts them in one transaction.
func (d *PostgresDB) LoadBatch(ctx context.Context, records []CaseRow) (LoadResult, error) {
	return d.LoadStaged(ctx, func(stage StageFunc) error {
		_, err := stage(records)
		return err
	})
}

// values returns the row in caseColumns order.
func (c CaseRow) values() []any {
	return []any{
		c.CaseNumber,
		c.CaseStatus,
		c.ReceivedDate,
		c.DecisionDate,
		c.EmployerName,
		c.JobTitle,
		c.SOCCode,
		c.SOCTitle,
		c.WorksiteCity,
		c.WorksiteState,
		c.WageRateFrom,
		c.WageRateTo,
		c.WageUnit,
		c.WageAnnual,
		c.Year,
	}
}
