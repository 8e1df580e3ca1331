package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"lca_wages/internal/logging"
	"lca_wages/internal/metrics"
	"lca_wages/internal/storage"
	"lca_wages/internal/wage"
)

// StagedLoader stages any number of batches and upserts them into the fact
// table as one transaction.
type StagedLoader interface {
	LoadStaged(ctx context.Context, fill func(stage storage.StageFunc) error) (storage.LoadResult, error)
}

// Manifest tracks which files were already loaded.
type Manifest interface {
	Seen(sha string) (bool, error)
	Record(e storage.ManifestEntry) error
}

// LoadOptions controls a file load.
type LoadOptions struct {
	BatchSize int
	Strategy  wage.Strategy
	// Force reloads files already present in the manifest.
	Force bool
}

// FileResult reports one file load.
type FileResult struct {
	Path     string
	SHA256   string
	Skipped  bool
	Batches  int
	Upserted int64
	Stats    Stats
	Took     time.Duration
}

// LoadFile reads a cleaned or raw disclosure CSV and loads it as one unit. Rows
// are read and staged in batches; duplicates are resolved across the whole
// file, so a row in a later batch never overrides a newer one from an earlier
// batch. manifest may be nil.
func LoadFile(ctx context.Context, db StagedLoader, manifest Manifest, path string, opts LoadOptions) (*FileResult, error) {
	start := time.Now()
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50000
	}
	log := logging.WithComponent("ingest").With().Str("file", filepath.Base(path)).Logger()

	sum, err := fileSHA256(path)
	if err != nil {
		return nil, err
	}
	res := &FileResult{Path: path, SHA256: sum}

	if manifest != nil && !opts.Force {
		seen, err := manifest.Seen(sum)
		if err != nil {
			return nil, err
		}
		if seen {
			res.Skipped = true
			log.Info().Str("sha256", sum).Msg("already loaded, skipping")
			return res, nil
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	r, err := NewReader(f, opts.Strategy)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	winners := Winners{}
	lr, err := db.LoadStaged(ctx, func(stage storage.StageFunc) error {
		for {
			if err := ctx.Err(); err != nil {
				return err
			}

			batch, err := r.ReadBatch(opts.BatchSize)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}

			batch = winners.Filter(Dedupe(batch))
			staged, err := stage(batch)
			if err != nil {
				return fmt.Errorf("stage batch %d of %s: %w", res.Batches+1, path, err)
			}
			res.Batches++

			log.Debug().
				Int("batch", res.Batches).
				Int64("staged", staged).
				Msg("batch staged")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	res.Upserted = lr.Upserted
	metrics.RowsLoaded.Add(float64(lr.Upserted))

	res.Stats = r.Stats()
	res.Took = time.Since(start)

	if manifest != nil {
		fy, q := ParsePeriod(filepath.Base(path))
		if err := manifest.Record(storage.ManifestEntry{
			SHA256:      sum,
			Path:        path,
			FiscalYear:  fy,
			Quarter:     q,
			InputRows:   res.Stats.InputRows,
			OutputRows:  res.Stats.OutputRows,
			Upserted:    res.Upserted,
			WageNonNull: res.Stats.WageNonNull,
			DecisionMin: res.Stats.DecisionMin,
			DecisionMax: res.Stats.DecisionMax,
		}); err != nil {
			return nil, err
		}
	}

	log.Info().
		Int64("input_rows", res.Stats.InputRows).
		Int64("output_rows", res.Stats.OutputRows).
		Int64("dropped", res.Stats.Dropped).
		Int64("upserted", res.Upserted).
		Int64("wage_non_null", res.Stats.WageNonNull).
		Dur("took", res.Took).
		Msg("file loaded")
	return res, nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
