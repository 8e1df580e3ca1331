package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lca_wages/internal/storage"
	"lca_wages/internal/wage"
)

// fakeLoader records staged batches. A load is committed only when fill
// succeeds, and loads counts the committed ones.
type fakeLoader struct {
	batches [][]storage.CaseRow
	loads   int
	err     error
}

func (f *fakeLoader) LoadStaged(ctx context.Context, fill func(stage storage.StageFunc) error) (storage.LoadResult, error) {
	var res storage.LoadResult
	var staged [][]storage.CaseRow
	err := fill(func(records []storage.CaseRow) (int64, error) {
		if f.err != nil {
			return 0, f.err
		}
		staged = append(staged, append([]storage.CaseRow(nil), records...))
		res.Staged += int64(len(records))
		return int64(len(records)), nil
	})
	if err != nil {
		return storage.LoadResult{}, err
	}
	f.batches = append(f.batches, staged...)
	f.loads++
	res.Upserted = res.Staged
	return res, nil
}

// staged returns every staged row in order.
func (f *fakeLoader) staged() []storage.CaseRow {
	var out []storage.CaseRow
	for _, b := range f.batches {
		out = append(out, b...)
	}
	return out
}

type fakeManifest struct {
	entries map[string]storage.ManifestEntry
}

func (m *fakeManifest) Seen(sha string) (bool, error) {
	_, ok := m.entries[sha]
	return ok, nil
}

func (m *fakeManifest) Record(e storage.ManifestEntry) error {
	m.entries[e.SHA256] = e
	return nil
}

func writeCSV(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	body := "case_number,decision_date,employer_name,wage_rate_from,wage_unit\n" +
		"A,2024-01-01,Old,50,Hour\n" +
		"A,2024-02-01,New,60,Hour\n" +
		"B,2024-01-15,Acme,100000,Year\n" +
		"C,,Acme,90000,Year\n"
	path := writeCSV(t, "LCA_Disclosure_Data_FY2024_Q2.csv", body)

	db := &fakeLoader{}
	m := &fakeManifest{entries: map[string]storage.ManifestEntry{}}
	ctx := context.Background()

	res, err := LoadFile(ctx, db, m, path, LoadOptions{BatchSize: 3, Strategy: wage.StrategyFrom})
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if res.Skipped {
		t.Fatal("expected first load to run")
	}
	if res.Batches != 2 {
		t.Errorf("expected 2 batches, got %d", res.Batches)
	}
	// First batch holds A twice and B; dedupe leaves 2 rows.
	if len(db.batches[0]) != 2 || *db.batches[0][0].EmployerName != "New" {
		t.Errorf("expected deduped first batch, got %+v", db.batches[0])
	}
	if res.Upserted != 3 {
		t.Errorf("expected 3 upserted, got %d", res.Upserted)
	}
	if res.Stats.InputRows != 4 {
		t.Errorf("expected 4 input rows, got %d", res.Stats.InputRows)
	}

	entry, ok := m.entries[res.SHA256]
	if !ok {
		t.Fatal("expected manifest entry")
	}
	if entry.FiscalYear == nil || *entry.FiscalYear != 2024 || entry.Quarter == nil || *entry.Quarter != 2 {
		t.Errorf("unexpected period %v/%v", entry.FiscalYear, entry.Quarter)
	}

	// Second run skips the already loaded file.
	res, err = LoadFile(ctx, db, m, path, LoadOptions{BatchSize: 3})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Skipped || len(db.batches) != 2 {
		t.Errorf("expected skip, got %+v with %d batches", res, len(db.batches))
	}

	// Force reloads.
	res, err = LoadFile(ctx, db, m, path, LoadOptions{BatchSize: 10, Force: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Skipped || len(db.batches) != 3 {
		t.Errorf("expected forced reload, got %+v with %d batches", res, len(db.batches))
	}
	if db.loads != 2 {
		t.Errorf("expected one load per file run, got %d", db.loads)
	}
}

func TestLoadFileDedupesAcrossBatches(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string // Employer of each staged row, in order.
	}{
		{
			name: "dated row beats later undated row",
			body: "A,2024-01-01,,Dated\nA,,,Undated\n",
			want: []string{"Dated"},
		},
		{
			name: "newer decision in a later batch is staged",
			body: "A,2024-01-01,,Old\nA,2024-03-01,,New\n",
			want: []string{"Old", "New"},
		},
		{
			name: "received date breaks decision ties",
			body: "A,2024-01-01,2023-12-20,Later\nA,2024-01-01,2023-12-01,Earlier\n",
			want: []string{"Later"},
		},
		{
			name: "full tie stages the later row",
			body: "A,2024-01-01,,First\nA,2024-01-01,,Second\n",
			want: []string{"First", "Second"},
		},
		{
			name: "other case numbers are independent",
			body: "A,2024-01-01,,A1\nB,,,B1\nA,,,A2\n",
			want: []string{"A1", "B1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeCSV(t, "x.csv", "case_number,decision_date,received_date,employer_name\n"+tt.body)
			db := &fakeLoader{}

			res, err := LoadFile(context.Background(), db, nil, path, LoadOptions{BatchSize: 1})
			if err != nil {
				t.Fatalf("LoadFile failed: %v", err)
			}
			if db.loads != 1 {
				t.Errorf("expected a single load transaction, got %d", db.loads)
			}
			if res.Batches != strings.Count(tt.body, "\n") {
				t.Errorf("expected one batch per row, got %d", res.Batches)
			}

			var got []string
			for _, r := range db.staged() {
				got = append(got, *r.EmployerName)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("staged %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadFileBatchError(t *testing.T) {
	path := writeCSV(t, "x.csv", "case_number\nA\n")
	boom := errors.New("copy failed")

	_, err := LoadFile(context.Background(), &fakeLoader{err: boom}, nil, path, LoadOptions{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected batch error, got %v", err)
	}
}
