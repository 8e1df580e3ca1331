package ingest

import (
	"testing"
	"time"
)

func TestNormColumn(t *testing.T) {
	tests := map[string]string{
		"CASE_NUMBER":               "case_number",
		" Wage Rate Of Pay (From) ": "wage_rate_of_pay_from",
		"Employer-Name":             "employer_name",
		"__weird__  header__":       "weird_header",
		"SOC":                       "soc",
	}
	for in, want := range tests {
		if got := NormColumn(in); got != want {
			t.Errorf("NormColumn(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTargetFor(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"CASE_NO", "case_number", true},
		{"Original Cert Date", "decision_date", true},
		{"WAGE_UNIT_OF_PAY", "wage_unit", true},
		{"EMPLOYER_STATE", "worksite_state", true},
		{"VISA_CLASS", "", false},
	}
	for _, tt := range tests {
		got, ok := TargetFor(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Errorf("TargetFor(%q) = %q/%v, want %q/%v", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCleanText(t *testing.T) {
	for _, in := range []string{"", "   ", "nan", "NaN", "NONE", "None", `\N`} {
		if got := CleanText(in); got != nil {
			t.Errorf("CleanText(%q) = %q, want nil", in, *got)
		}
	}
	if got := CleanText("  Acme Corp "); got == nil || *got != "Acme Corp" {
		t.Errorf("expected trimmed value, got %v", got)
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want *float64
	}{
		{"$120,000.50", ptr(120000.50)},
		{" 45 ", ptr(45)},
		{"", nil},
		{"n/a", nil},
		{`\N`, nil},
	}
	for _, tt := range tests {
		got := ParseNumber(tt.in)
		if (got == nil) != (tt.want == nil) || (got != nil && *got != *tt.want) {
			t.Errorf("ParseNumber(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseInt(t *testing.T) {
	if got := ParseInt("2024.0"); got == nil || *got != 2024 {
		t.Errorf("expected 2024, got %v", got)
	}
	if got := ParseInt("2024.5"); got != nil {
		t.Errorf("expected nil for fractional value, got %v", *got)
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	for _, in := range []string{
		"2024-03-05",
		"3/5/2024",
		"03/05/2024",
		"2024-03-05 14:22:01",
		"2024-03-05T14:22:01",
		"2024-03-05T14:22:01Z",
		"45356",
	} {
		got := ParseDate(in)
		if got == nil || !got.Equal(want) {
			t.Errorf("ParseDate(%q) = %v, want %v", in, got, want)
		}
	}

	for _, in := range []string{"", "not a date", "2024", "99999", "17999"} {
		if got := ParseDate(in); got != nil {
			t.Errorf("ParseDate(%q) = %v, want nil", in, got)
		}
	}
}

func ptr(f float64) *float64 { return &f }
