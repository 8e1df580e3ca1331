// Package main provides a tool to export indexable state summaries from the
// PostgreSQL aggregate views to CSV, one row per state with its wage
// percentiles and the top city, employer and job title.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"lca_wages/internal/config"
	"lca_wages/internal/logging"
	"lca_wages/internal/query"
	"lca_wages/internal/storage"
)

// StateExport is one exported state row.
type StateExport struct {
	Summary storage.StateSummary
	Top     map[storage.EntityKind]string // Rank 1 entity per kind, "" if none.
}

var header = []string{
	"state", "total_cases", "latest_year", "latest_decision_date",
	"wage_p25", "wage_p50", "wage_p75", "wage_p90", "wage_sample_size",
	"top_city", "top_employer", "top_job",
}

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (env: LCA_CONFIG)")
	output := flag.String("output", "", "Output CSV file (default: stdout)")
	minCases := flag.Int64("min-cases", -1, "Minimum case count to include a state (default from config)")
	noTop := flag.Bool("no-top", false, "Skip the top entity columns")
	verbose := flag.Bool("v", false, "Verbose output")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	logging.Init(cfg.LoggerConfig())

	ctx := context.Background()

	pg, err := storage.OpenPostgres(ctx, cfg.Postgres())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening PostgreSQL: %v\n", err)
		os.Exit(1)
	}
	defer pg.Close()

	svc := query.NewService(pg, nil, cfg.QueryOptions())

	states, err := getStates(ctx, svc, *minCases, !*noTop)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error querying states: %v\n", err)
		os.Exit(1)
	}

	if len(states) == 0 {
		fmt.Fprintf(os.Stderr, "No states found matching criteria\n")
		os.Exit(0)
	}

	if *verbose {
		fmt.Fprintf(os.Stderr, "Exporting %d states to CSV\n", len(states))
	}

	var out io.Writer = os.Stdout
	if *output != "" {
		file, err := os.Create(*output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating file: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = file.Close() }()
		out = file
	}

	if err := writeStates(out, states); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing CSV: %v\n", err)
		os.Exit(1)
	}

	if *verbose && *output != "" {
		fmt.Fprintf(os.Stderr, "Wrote %d states to %s\n", len(states), *output)
	}
}

// statesReader is the part of the query service the export reads through.
type statesReader interface {
	GetIndexableStates(ctx context.Context, minCases int64) ([]storage.StateSummary, error)
	GetTopEntities(ctx context.Context, state, kind string, limit int) ([]storage.EntityRank, error)
}

// getStates lists indexable states and, when withTop is set, the rank 1 entity
// of each kind. A failed top-N read leaves that column empty.
func getStates(ctx context.Context, q statesReader, minCases int64, withTop bool) ([]StateExport, error) {
	summaries, err := q.GetIndexableStates(ctx, minCases)
	if err != nil {
		return nil, fmt.Errorf("querying states: %w", err)
	}

	states := make([]StateExport, 0, len(summaries))
	for _, s := range summaries {
		row := StateExport{Summary: s, Top: map[storage.EntityKind]string{}}
		if withTop {
			for _, kind := range storage.EntityKinds {
				ranks, err := q.GetTopEntities(ctx, s.State, string(kind), 1)
				if err != nil {
					logging.Ctx(ctx).Warn().Err(err).Str("state", s.State).Str("kind", string(kind)).Msg("top entity skipped")
					continue
				}
				if len(ranks) > 0 {
					row.Top[kind] = ranks[0].Name
				}
			}
		}
		states = append(states, row)
	}
	return states, nil
}

// writeStates writes the header and one row per state.
func writeStates(w io.Writer, states []StateExport) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, st := range states {
		s := st.Summary
		row := []string{
			s.State,
			strconv.FormatInt(s.TotalCases, 10),
			formatInt(s.LatestYear),
			formatDate(s.LatestDecisionDate),
			formatWage(s.P25),
			formatWage(s.P50),
			formatWage(s.P75),
			formatWage(s.P90),
			strconv.FormatInt(s.SampleSize, 10),
			st.Top[storage.City],
			st.Top[storage.Employer],
			st.Top[storage.Job],
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func formatWage(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.DateOnly)
}
