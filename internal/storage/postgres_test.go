package storage

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"
)

// setupTestPostgres creates a test database connection.
// Returns nil if no PostgreSQL connection is available.
func setupTestPostgres(t *testing.T) *PostgresDB {
	t.Helper()

	cfg := DefaultPostgresConfig()
	if host := os.Getenv("POSTGRES_HOST"); host != "" {
		cfg.Host = host
	}
	if port, err := strconv.Atoi(os.Getenv("POSTGRES_PORT")); err == nil {
		cfg.Port = port
	}
	if user := os.Getenv("POSTGRES_USER"); user != "" {
		cfg.User = user
	}
	if password := os.Getenv("POSTGRES_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if database := os.Getenv("POSTGRES_DB"); database != "" {
		cfg.Database = database
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pg, err := OpenPostgres(ctx, cfg)
	if err != nil {
		return nil
	}

	// Ensure schema exists.
	if err := pg.CreateSchema(ctx); err != nil {
		pg.Close()
		return nil
	}

	return pg
}

func stringPtr(s string) *string  { return &s }
func intPtr(i int) *int           { return &i }
func floatPtr(f float64) *float64 { return &f }
func datePtr(y, m, d int) *time.Time {
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	return &t
}

// testState is a state code no real filing uses.
const testState = "QX"

func cleanupTestCases(t *testing.T, pg *PostgresDB) {
	t.Helper()
	ctx := context.Background()
	cleanup := func() {
		_, _ = pg.pool.Exec(ctx, "DELETE FROM lca_cases WHERE worksite_state = $1 OR case_number LIKE 'TEST-%'", testState)
	}
	cleanup()
	t.Cleanup(func() {
		cleanup()
		_ = pg.RefreshViews(ctx)
	})
}

func testCase(number, job, employer, city string, wage *float64, decided *time.Time) CaseRow {
	return CaseRow{
		CaseNumber:    number,
		CaseStatus:    stringPtr("CERTIFIED"),
		DecisionDate:  decided,
		EmployerName:  stringPtr(employer),
		JobTitle:      stringPtr(job),
		WorksiteCity:  stringPtr(city),
		WorksiteState: stringPtr(testState),
		WageUnit:      stringPtr("Year"),
		WageAnnual:    wage,
		Year:          intPtr(2024),
	}
}

func TestLoadBatchDedupeAndOverwrite(t *testing.T) {
	pg := setupTestPostgres(t)
	if pg == nil {
		t.Skip("No PostgreSQL connection available")
	}
	defer pg.Close()
	cleanupTestCases(t, pg)

	ctx := context.Background()

	// Same case number twice in one batch: the dated record wins over the null one.
	undated := testCase("TEST-1", "Old Title", "Acme", "Austin", floatPtr(90000), nil)
	dated := testCase("TEST-1", "New Title", "Acme", "Austin", floatPtr(120000), datePtr(2024, 3, 1))

	res, err := pg.LoadBatch(ctx, []CaseRow{dated, undated})
	if err != nil {
		t.Fatalf("LoadBatch failed: %v", err)
	}
	if res.Staged != 2 {
		t.Errorf("expected 2 staged rows, got %d", res.Staged)
	}
	if res.Upserted != 1 {
		t.Errorf("expected 1 upserted row, got %d", res.Upserted)
	}

	var job string
	if err := pg.pool.QueryRow(ctx, "SELECT job_title FROM lca_cases WHERE case_number = 'TEST-1'").Scan(&job); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if job != "New Title" {
		t.Errorf("expected dated record to win, got %q", job)
	}

	// A later batch overwrites every field.
	updated := testCase("TEST-1", "Newest Title", "Acme Corp", "Dallas", floatPtr(130000), datePtr(2024, 1, 1))
	if _, err := pg.LoadBatch(ctx, []CaseRow{updated}); err != nil {
		t.Fatalf("second LoadBatch failed: %v", err)
	}

	var employer, city string
	if err := pg.pool.QueryRow(ctx,
		"SELECT job_title, employer_name, worksite_city FROM lca_cases WHERE case_number = 'TEST-1'",
	).Scan(&job, &employer, &city); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if job != "Newest Title" || employer != "Acme Corp" || city != "Dallas" {
		t.Errorf("expected overwrite, got %q/%q/%q", job, employer, city)
	}
}

func TestLoadStagedResolvesAcrossBatches(t *testing.T) {
	pg := setupTestPostgres(t)
	if pg == nil {
		t.Skip("No PostgreSQL connection available")
	}
	defer pg.Close()
	cleanupTestCases(t, pg)

	ctx := context.Background()

	batches := [][]CaseRow{
		{testCase("TEST-S1", "Dated", "Acme", "Austin", floatPtr(100000), datePtr(2024, 1, 1))},
		{testCase("TEST-S1", "Undated", "Acme", "Austin", floatPtr(90000), nil)},
		{testCase("TEST-S2", "First", "Acme", "Austin", nil, datePtr(2024, 2, 1))},
		{testCase("TEST-S2", "Second", "Acme", "Austin", nil, datePtr(2024, 2, 1))},
	}
	res, err := pg.LoadStaged(ctx, func(stage StageFunc) error {
		for _, b := range batches {
			if _, err := stage(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("LoadStaged failed: %v", err)
	}
	if res.Staged != 4 || res.Upserted != 2 {
		t.Errorf("expected 4 staged and 2 upserted, got %+v", res)
	}

	for number, want := range map[string]string{"TEST-S1": "Dated", "TEST-S2": "Second"} {
		var job string
		if err := pg.pool.QueryRow(ctx, "SELECT job_title FROM lca_cases WHERE case_number = $1", number).Scan(&job); err != nil {
			t.Fatalf("select %s failed: %v", number, err)
		}
		if job != want {
			t.Errorf("%s: expected %q, got %q", number, want, job)
		}
	}
}

func TestHubReads(t *testing.T) {
	pg := setupTestPostgres(t)
	if pg == nil {
		t.Skip("No PostgreSQL connection available")
	}
	defer pg.Close()
	cleanupTestCases(t, pg)

	ctx := context.Background()
	d := datePtr(2024, 5, 1)

	records := []CaseRow{
		testCase("TEST-H1", "Software Engineer", "Acme", "Austin", floatPtr(100000), d),
		testCase("TEST-H2", "Software Engineer", "Acme", "Austin", floatPtr(200000), d),
		testCase("TEST-H3", "Software Engineer", "Globex", "Dallas", floatPtr(0), d),
		testCase("TEST-H4", "Data Analyst", "Globex", "Dallas", nil, d),
		testCase("TEST-H5", "Software Engineer", "Globex", "Dallas", floatPtr(-5), d),
	}
	if _, err := pg.LoadBatch(ctx, records); err != nil {
		t.Fatalf("LoadBatch failed: %v", err)
	}
	if err := pg.RefreshViews(ctx); err != nil {
		t.Fatalf("RefreshViews failed: %v", err)
	}

	summary, err := pg.StateSummary(ctx, testState)
	if err != nil {
		t.Fatalf("StateSummary failed: %v", err)
	}
	if summary == nil {
		t.Fatal("expected state summary")
	}
	if summary.TotalCases != 5 {
		t.Errorf("expected 5 cases, got %d", summary.TotalCases)
	}
	// Only the two positive wages feed the percentiles; zero, negative and null
	// wages are counted as cases only.
	if summary.SampleSize != 2 {
		t.Errorf("expected sample size 2, got %d", summary.SampleSize)
	}
	if summary.P50 == nil || *summary.P50 != 150000 {
		t.Errorf("expected median 150000, got %v", summary.P50)
	}
	if len(summary.Series) != 1 || summary.Series[0].Year != 2024 {
		t.Errorf("unexpected series: %+v", summary.Series)
	}

	jobs, err := pg.TopEntities(ctx, testState, Job, 10)
	if err != nil {
		t.Fatalf("TopEntities failed: %v", err)
	}
	if len(jobs) != 2 || jobs[0].Name != "Software Engineer" || jobs[0].Rank != 1 {
		t.Errorf("unexpected top jobs: %+v", jobs)
	}

	name, err := pg.ResolveEntity(ctx, testState, Job, []string{"software-engineer"})
	if err != nil {
		t.Fatalf("ResolveEntity failed: %v", err)
	}
	if name != "Software Engineer" {
		t.Fatalf("expected Software Engineer, got %q", name)
	}

	stats, err := pg.EntityStats(ctx, testState, Job, name)
	if err != nil {
		t.Fatalf("EntityStats failed: %v", err)
	}
	if stats == nil || stats.TotalCases != 4 {
		t.Fatalf("expected 4 cases, got %+v", stats)
	}
	if stats.SampleSize != 2 || stats.P50 == nil || *stats.P50 != 150000 {
		t.Errorf("expected percentiles over positive wages only, got %+v", stats)
	}

	employers, err := pg.RelatedEntities(ctx, testState, Job, name, Employer, 5)
	if err != nil {
		t.Fatalf("RelatedEntities failed: %v", err)
	}
	if len(employers) != 2 || employers[0].Name != "Acme" || employers[0].TotalCases != 2 {
		t.Errorf("unexpected related employers: %+v", employers)
	}

	rows, err := pg.SearchCases(ctx, SearchParams{Job: "software", State: testState, Limit: 10})
	if err != nil {
		t.Fatalf("SearchCases failed: %v", err)
	}
	if len(rows) != 4 || rows[0].CaseNumber != "TEST-H2" {
		t.Errorf("expected highest wage first, got %+v", rows)
	}
}

func TestHubReadsMissing(t *testing.T) {
	pg := setupTestPostgres(t)
	if pg == nil {
		t.Skip("No PostgreSQL connection available")
	}
	defer pg.Close()

	ctx := context.Background()

	summary, err := pg.StateSummary(ctx, "QQ")
	if err != nil {
		t.Fatalf("StateSummary failed: %v", err)
	}
	if summary != nil {
		t.Errorf("expected nil summary, got %+v", summary)
	}

	cities, err := pg.TopEntities(ctx, "QQ", City, 10)
	if err != nil {
		t.Fatalf("TopEntities failed: %v", err)
	}
	if cities == nil || len(cities) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", cities)
	}

	name, err := pg.ResolveEntity(ctx, "QQ", Employer, []string{"nobody"})
	if err != nil {
		t.Fatalf("ResolveEntity failed: %v", err)
	}
	if name != "" {
		t.Errorf("expected no match, got %q", name)
	}
}
