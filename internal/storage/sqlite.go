// Package storage owns the PostgreSQL fact table, its aggregate views and the
// query catalog, plus the local SQLite manifest of loaded files.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ManifestEntry records one loaded source file.
type ManifestEntry struct {
	SHA256      string
	Path        string
	FiscalYear  *int
	Quarter     *int
	InputRows   int64
	OutputRows  int64
	Upserted    int64
	WageNonNull int64
	DecisionMin *time.Time
	DecisionMax *time.Time
	LoadedAt    time.Time
}

// ManifestDB is a SQLite store of which files have already been loaded.
type ManifestDB struct {
	db *sql.DB
}

// OpenManifest opens or creates a manifest database at the given path.
func OpenManifest(path string) (*ManifestDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}

	// Enable WAL mode for better concurrent access.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS loaded_files (
		sha256 TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		fiscal_year INTEGER,
		quarter INTEGER,
		input_rows INTEGER NOT NULL,
		output_rows INTEGER NOT NULL,
		upserted INTEGER NOT NULL,
		wage_non_null INTEGER NOT NULL,
		decision_min TEXT,
		decision_max TEXT,
		loaded_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_loaded_files_fy ON loaded_files(fiscal_year, quarter);
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create manifest schema: %w", err)
	}

	return &ManifestDB{db: db}, nil
}

// Close closes the database connection.
func (m *ManifestDB) Close() error {
	return m.db.Close()
}

// Seen reports whether a file with this content hash was already loaded.
func (m *ManifestDB) Seen(sha string) (bool, error) {
	var n int
	err := m.db.QueryRow(`SELECT 1 FROM loaded_files WHERE sha256 = ?`, sha).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("manifest lookup: %w", err)
	}
	return true, nil
}

// Record inserts or replaces the entry for a file.
func (m *ManifestDB) Record(e ManifestEntry) error {
	if e.LoadedAt.IsZero() {
		e.LoadedAt = time.Now().UTC()
	}
	_, err := m.db.Exec(`
		INSERT INTO loaded_files (sha256, path, fiscal_year, quarter, input_rows, output_rows,
			upserted, wage_non_null, decision_min, decision_max, loaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (sha256) DO UPDATE SET
			path = excluded.path,
			fiscal_year = excluded.fiscal_year,
			quarter = excluded.quarter,
			input_rows = excluded.input_rows,
			output_rows = excluded.output_rows,
			upserted = excluded.upserted,
			wage_non_null = excluded.wage_non_null,
			decision_min = excluded.decision_min,
			decision_max = excluded.decision_max,
			loaded_at = excluded.loaded_at
	`, e.SHA256, e.Path, nullInt(e.FiscalYear), nullInt(e.Quarter), e.InputRows, e.OutputRows,
		e.Upserted, e.WageNonNull, nullDate(e.DecisionMin), nullDate(e.DecisionMax),
		e.LoadedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("record manifest entry: %w", err)
	}
	return nil
}

// List returns every entry, most recent fiscal period first.
func (m *ManifestDB) List() ([]ManifestEntry, error) {
	rows, err := m.db.Query(`
		SELECT sha256, path, fiscal_year, quarter, input_rows, output_rows,
			upserted, wage_non_null, decision_min, decision_max, loaded_at
		FROM loaded_files
		ORDER BY fiscal_year DESC, quarter DESC, loaded_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list manifest: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []ManifestEntry
	for rows.Next() {
		var e ManifestEntry
		var fy, q sql.NullInt64
		var dmin, dmax sql.NullString
		var loadedAt string

		if err := rows.Scan(&e.SHA256, &e.Path, &fy, &q, &e.InputRows, &e.OutputRows,
			&e.Upserted, &e.WageNonNull, &dmin, &dmax, &loadedAt); err != nil {
			return nil, fmt.Errorf("scan manifest: %w", err)
		}
		if fy.Valid {
			v := int(fy.Int64)
			e.FiscalYear = &v
		}
		if q.Valid {
			v := int(q.Int64)
			e.Quarter = &v
		}
		e.DecisionMin = parseDate(dmin)
		e.DecisionMax = parseDate(dmax)
		e.LoadedAt, _ = time.Parse(time.RFC3339, loadedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.DateOnly)
}

func parseDate(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.DateOnly, s.String)
	if err != nil {
		return nil
	}
	return &t
}
