// Package ingest reads disclosure CSV files into case rows ready for the
// staging load: header synonyms are mapped, values cleaned, dates parsed and
// wages annualised.
package ingest

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Target columns, in load order.
var TargetColumns = []string{
	"case_number",
	"case_status",
	"received_date",
	"decision_date",
	"employer_name",
	"job_title",
	"soc_code",
	"soc_title",
	"worksite_city",
	"worksite_state",
	"wage_rate_from",
	"wage_rate_to",
	"wage_unit",
	"wage_annual",
	"year",
}

// synonyms maps normalised source headers onto target columns. When several
// source columns map to one target, the first non-null value left to right wins.
var synonyms = map[string]string{
	"case_number":           "case_number",
	"case_no":               "case_number",
	"case_status":           "case_status",
	"status":                "case_status",
	"received_date":         "received_date",
	"case_received_date":    "received_date",
	"decision_date":         "decision_date",
	"case_decision_date":    "decision_date",
	"original_cert_date":    "decision_date",
	"employer_name":         "employer_name",
	"employer":              "employer_name",
	"employer_company_name": "employer_name",
	"job_title":             "job_title",
	"jobtitle":              "job_title",
	"soc_code":              "soc_code",
	"soc":                   "soc_code",
	"soc_title":             "soc_title",
	"worksite_city":         "worksite_city",
	"employer_city":         "worksite_city",
	"worksite_state":        "worksite_state",
	"employer_state":        "worksite_state",
	"wage_rate_of_pay_from": "wage_rate_from",
	"wage_rate_from":        "wage_rate_from",
	"wage_rate_of_pay_to":   "wage_rate_to",
	"wage_rate_to":          "wage_rate_to",
	"wage_unit_of_pay":      "wage_unit",
	"wage_unit":             "wage_unit",
	"wage_annual":           "wage_annual",
	"year":                  "year",
}

var (
	nonWordRe    = regexp.MustCompile(`[^\w]+`)
	underscoreRe = regexp.MustCompile(`_+`)
	serialRe     = regexp.MustCompile(`^\d{4,6}$`)
)

// NormColumn reduces a header to a lowercase underscore token:
// "Wage Rate Of Pay (From)" becomes "wage_rate_of_pay_from".
func NormColumn(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = nonWordRe.ReplaceAllString(s, "_")
	s = underscoreRe.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// TargetFor returns the target column a source header maps to.
func TargetFor(header string) (string, bool) {
	t, ok := synonyms[NormColumn(header)]
	return t, ok
}

// CleanText trims a value and maps empty and null markers to nil.
func CleanText(s string) *string {
	s = strings.TrimSpace(s)
	switch s {
	case "", "nan", "NaN", "NONE", "None", "NULL", `\N`:
		return nil
	}
	return &s
}

// ParseNumber parses a numeric cell, ignoring "$" and thousands separators.
// Unparseable values are nil.
func ParseNumber(s string) *float64 {
	p := CleanText(s)
	if p == nil {
		return nil
	}
	v := strings.NewReplacer("$", "", ",", "").Replace(*p)
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return nil
	}
	return &f
}

// ParseInt parses an integer cell; "2024.0" is accepted.
func ParseInt(s string) *int {
	f := ParseNumber(s)
	if f == nil || *f != float64(int(*f)) {
		return nil
	}
	i := int(*f)
	return &i
}

var dateLayouts = []string{
	time.DateOnly,
	"1/2/2006",
	"01/02/2006",
	time.DateTime,
	"2006-01-02T15:04:05",
	time.RFC3339,
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"2006/01/02",
}

// Excel serial dates count days from 1899-12-30. Only values in this range are
// treated as serials (roughly 1949 to 2064).
const (
	minSerial = 18000
	maxSerial = 60000
)

var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// ParseDate parses ISO, US and datetime forms plus Excel serial numbers. The
// result is truncated to a UTC date; unparseable values are nil.
func ParseDate(s string) *time.Time {
	p := CleanText(s)
	if p == nil {
		return nil
	}
	v := *p

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}

	if serialRe.MatchString(v) {
		n, err := strconv.Atoi(v)
		if err == nil && n >= minSerial && n <= maxSerial {
			d := excelEpoch.AddDate(0, 0, n)
			return &d
		}
	}
	return nil
}
