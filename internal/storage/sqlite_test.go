package storage

import (
	"path/filepath"
	"testing"
)

func TestManifest(t *testing.T) {
	m, err := OpenManifest(filepath.Join(t.TempDir(), "manifest.db"))
	if err != nil {
		t.Fatalf("OpenManifest failed: %v", err)
	}
	defer func() { _ = m.Close() }()

	seen, err := m.Seen("abc")
	if err != nil {
		t.Fatalf("Seen failed: %v", err)
	}
	if seen {
		t.Error("expected unseen file")
	}

	entry := ManifestEntry{
		SHA256:      "abc",
		Path:        "LCA_Disclosure_Data_FY2024_Q2.csv",
		FiscalYear:  intPtr(2024),
		Quarter:     intPtr(2),
		InputRows:   10,
		OutputRows:  9,
		Upserted:    9,
		WageNonNull: 8,
		DecisionMin: datePtr(2024, 1, 2),
		DecisionMax: datePtr(2024, 3, 30),
	}
	if err := m.Record(entry); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	// Recording twice replaces rather than duplicates.
	entry.Upserted = 7
	if err := m.Record(entry); err != nil {
		t.Fatalf("second Record failed: %v", err)
	}
	if err := m.Record(ManifestEntry{SHA256: "def", Path: "extra.csv"}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	seen, err = m.Seen("abc")
	if err != nil {
		t.Fatalf("Seen failed: %v", err)
	}
	if !seen {
		t.Error("expected seen file")
	}

	entries, err := m.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	var got *ManifestEntry
	for i := range entries {
		if entries[i].SHA256 == "abc" {
			got = &entries[i]
		}
	}
	if got == nil {
		t.Fatal("entry abc missing")
	}
	if got.Upserted != 7 {
		t.Errorf("expected upserted 7, got %d", got.Upserted)
	}
	if got.FiscalYear == nil || *got.FiscalYear != 2024 || got.Quarter == nil || *got.Quarter != 2 {
		t.Errorf("unexpected fiscal period %v/%v", got.FiscalYear, got.Quarter)
	}
	if got.DecisionMax == nil || !got.DecisionMax.Equal(*datePtr(2024, 3, 30)) {
		t.Errorf("unexpected decision max %v", got.DecisionMax)
	}
	if got.LoadedAt.IsZero() {
		t.Error("expected loaded_at to be set")
	}
}
