package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"lca_wages/internal/storage"
)

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "List loaded files",
	Args:  cobra.NoArgs,
	RunE:  runManifest,
}

func init() {
	rootCmd.AddCommand(manifestCmd)
}

func runManifest(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	m, err := storage.OpenManifest(cfg.Load.ManifestPath)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	entries, err := m.List()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No files loaded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PERIOD\tFILE\tROWS\tUPSERTED\tWAGES\tDECISIONS\tLOADED")
	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			period(e), e.Path, e.OutputRows, e.Upserted, e.WageNonNull,
			dateRange(e.DecisionMin, e.DecisionMax), e.LoadedAt.Format(time.DateTime))
	}
	return w.Flush()
}

func period(e storage.ManifestEntry) string {
	if e.FiscalYear == nil || e.Quarter == nil {
		return "-"
	}
	return fmt.Sprintf("FY%d Q%d", *e.FiscalYear, *e.Quarter)
}

func dateRange(from, to *time.Time) string {
	if from == nil || to == nil {
		return "-"
	}
	return from.Format(time.DateOnly) + ".." + to.Format(time.DateOnly)
}
