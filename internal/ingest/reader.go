package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"lca_wages/internal/storage"
	"lca_wages/internal/wage"
)

// Stats summarises one read pass.
type Stats struct {
	InputRows   int64
	OutputRows  int64
	Dropped     int64 // Rows without a case number.
	WageNonNull int64
	DecisionMin *time.Time
	DecisionMax *time.Time
}

func (s *Stats) observe(c storage.CaseRow) {
	s.OutputRows++
	if c.WageAnnual != nil {
		s.WageNonNull++
	}
	if d := c.DecisionDate; d != nil {
		if s.DecisionMin == nil || d.Before(*s.DecisionMin) {
			s.DecisionMin = d
		}
		if s.DecisionMax == nil || d.After(*s.DecisionMax) {
			s.DecisionMax = d
		}
	}
}

// Reader yields cleaned case rows from a disclosure CSV.
type Reader struct {
	csv      *csv.Reader
	columns  map[string][]int // target column -> source indexes, left to right
	strategy wage.Strategy
	stats    Stats
}

// NewReader reads the header row and maps it onto the target columns. A file
// without any case number column is rejected.
func NewReader(r io.Reader, strategy wage.Strategy) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	columns := make(map[string][]int)
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		if target, ok := TargetFor(h); ok {
			columns[target] = append(columns[target], i)
		}
	}
	if len(columns["case_number"]) == 0 {
		return nil, errors.New("read header: no case number column")
	}

	return &Reader{csv: cr, columns: columns, strategy: strategy}, nil
}

// Stats returns the counters accumulated so far.
func (r *Reader) Stats() Stats {
	return r.stats
}

// Next returns the next row with a case number. It returns io.EOF after the
// last row.
func (r *Reader) Next() (storage.CaseRow, error) {
	for {
		rec, err := r.csv.Read()
		if err != nil {
			return storage.CaseRow{}, err
		}
		r.stats.InputRows++

		row, ok := r.convert(rec)
		if !ok {
			r.stats.Dropped++
			continue
		}
		r.stats.observe(row)
		return row, nil
	}
}

// ReadBatch reads up to n rows. It returns io.EOF only when no rows remain.
func (r *Reader) ReadBatch(n int) ([]storage.CaseRow, error) {
	batch := make([]storage.CaseRow, 0, n)
	for len(batch) < n {
		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			if len(batch) == 0 {
				return nil, io.EOF
			}
			return batch, nil
		}
		if err != nil {
			return nil, err
		}
		batch = append(batch, row)
	}
	return batch, nil
}

// value returns the first non-null cell mapped to target.
func (r *Reader) value(rec []string, target string) *string {
	for _, i := range r.columns[target] {
		if i >= len(rec) {
			continue
		}
		if v := CleanText(rec[i]); v != nil {
			return v
		}
	}
	return nil
}

func (r *Reader) raw(rec []string, target string) string {
	if v := r.value(rec, target); v != nil {
		return *v
	}
	return ""
}

func (r *Reader) convert(rec []string) (storage.CaseRow, bool) {
	caseNumber := r.value(rec, "case_number")
	if caseNumber == nil {
		return storage.CaseRow{}, false
	}

	c := storage.CaseRow{
		CaseNumber:   *caseNumber,
		CaseStatus:   r.value(rec, "case_status"),
		ReceivedDate: ParseDate(r.raw(rec, "received_date")),
		DecisionDate: ParseDate(r.raw(rec, "decision_date")),
		EmployerName: r.value(rec, "employer_name"),
		JobTitle:     r.value(rec, "job_title"),
		SOCCode:      r.value(rec, "soc_code"),
		SOCTitle:     r.value(rec, "soc_title"),
		WorksiteCity: r.value(rec, "worksite_city"),
		WageRateFrom: ParseNumber(r.raw(rec, "wage_rate_from")),
		WageRateTo:   ParseNumber(r.raw(rec, "wage_rate_to")),
		WageUnit:     r.value(rec, "wage_unit"),
	}

	if st := r.value(rec, "worksite_state"); st != nil {
		upper := strings.ToUpper(*st)
		c.WorksiteState = &upper
	}

	c.WageAnnual = annual(ParseNumber(r.raw(rec, "wage_annual")), c, r.strategy)
	c.Year = caseYear(c, ParseInt(r.raw(rec, "year")))
	return c, true
}

// annual keeps a supplied annual wage inside the guardrails, otherwise derives
// one from the rate range and unit.
func annual(given *float64, c storage.CaseRow, strategy wage.Strategy) *float64 {
	if given != nil {
		if *given >= wage.MinAnnual && *given <= wage.MaxAnnual {
			return given
		}
		return nil
	}
	unit := ""
	if c.WageUnit != nil {
		unit = *c.WageUnit
	}
	return wage.Annualise(c.WageRateFrom, c.WageRateTo, unit, strategy)
}

// caseYear is the decision year, else the received year, else the file's own
// year column.
func caseYear(c storage.CaseRow, fallback *int) *int {
	switch {
	case c.DecisionDate != nil:
		y := c.DecisionDate.Year()
		return &y
	case c.ReceivedDate != nil:
		y := c.ReceivedDate.Year()
		return &y
	default:
		return fallback
	}
}
