package ingest

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"lca_wages/internal/wage"
)

const rawCSV = `CASE_NUMBER,CASE_STATUS,RECEIVED_DATE,DECISION_DATE,EMPLOYER_NAME,JOB_TITLE,SOC_CODE,SOC_TITLE,WORKSITE_CITY,WORKSITE_STATE,WAGE_RATE_OF_PAY_FROM,WAGE_RATE_OF_PAY_TO,WAGE_UNIT_OF_PAY
I-200-24001-000001,Certified,2024-01-02,2024-01-09,Acme Corp,Software Engineer,15-1252,Software Developers,Austin,tx,"$60.00",,Hour
I-200-24001-000002,Certified,45293,,Globex,Data Analyst,15-2051,Data Scientists,Dallas,TX,"120,000",150000,Year
,Withdrawn,2024-01-03,2024-01-04,Nobody,Nothing,,,Nowhere,CA,1,,Year
I-200-24001-000003,Denied,1/5/2024,1/20/2024,Initech,Intern,,,Houston,TX,5,,Hour
`

func TestReader(t *testing.T) {
	r, err := NewReader(strings.NewReader(rawCSV), wage.StrategyFrom)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}

	var rows []string
	for {
		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		rows = append(rows, row.CaseNumber)

		switch row.CaseNumber {
		case "I-200-24001-000001":
			if row.WorksiteState == nil || *row.WorksiteState != "TX" {
				t.Errorf("expected upper-cased state, got %v", row.WorksiteState)
			}
			if row.WageAnnual == nil || *row.WageAnnual != 124800 {
				t.Errorf("expected 60/hr -> 124800, got %v", row.WageAnnual)
			}
			if row.Year == nil || *row.Year != 2024 {
				t.Errorf("expected year 2024, got %v", row.Year)
			}
			if row.SOCCode == nil || *row.SOCCode != "15-1252" {
				t.Errorf("unexpected soc code %v", row.SOCCode)
			}
		case "I-200-24001-000002":
			want := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
			if row.ReceivedDate == nil || !row.ReceivedDate.Equal(want) {
				t.Errorf("expected Excel serial date, got %v", row.ReceivedDate)
			}
			if row.DecisionDate != nil {
				t.Errorf("expected nil decision date, got %v", row.DecisionDate)
			}
			if row.Year == nil || *row.Year != 2024 {
				t.Errorf("expected year from received date, got %v", row.Year)
			}
			if row.WageAnnual == nil || *row.WageAnnual != 120000 {
				t.Errorf("expected 120000, got %v", row.WageAnnual)
			}
		case "I-200-24001-000003":
			// 5/hr annualises to 10400, inside the guardrails.
			if row.WageAnnual == nil || *row.WageAnnual != 10400 {
				t.Errorf("expected 10400, got %v", row.WageAnnual)
			}
		}
	}

	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %v", rows)
	}

	stats := r.Stats()
	if stats.InputRows != 4 || stats.OutputRows != 3 || stats.Dropped != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.WageNonNull != 3 {
		t.Errorf("expected 3 wages, got %d", stats.WageNonNull)
	}
	if stats.DecisionMin == nil || stats.DecisionMin.Day() != 9 || stats.DecisionMax == nil || stats.DecisionMax.Day() != 20 {
		t.Errorf("unexpected decision range %v..%v", stats.DecisionMin, stats.DecisionMax)
	}
}

func TestReaderCleanedCSV(t *testing.T) {
	cleaned := "case_number,case_status,received_date,decision_date,employer_name,job_title,soc_code,soc_title,worksite_city,worksite_state,wage_rate_from,wage_rate_to,wage_unit,wage_annual,year\n" +
		`I-1,CERTIFIED,\N,\N,Acme,Engineer,\N,\N,Austin,TX,50,\N,Hour,104000.0,2023` + "\n" +
		`I-2,CERTIFIED,\N,\N,Acme,Engineer,\N,\N,Austin,TX,\N,\N,\N,9999999,\N` + "\n"

	r, err := NewReader(strings.NewReader(cleaned), wage.StrategyFrom)
	if err != nil {
		t.Fatal(err)
	}

	first, err := r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if first.WageAnnual == nil || *first.WageAnnual != 104000 {
		t.Errorf("expected supplied annual wage, got %v", first.WageAnnual)
	}
	if first.Year == nil || *first.Year != 2023 {
		t.Errorf("expected year column fallback, got %v", first.Year)
	}
	if first.ReceivedDate != nil || first.SOCCode != nil {
		t.Error(`expected \N to read as null`)
	}

	second, err := r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if second.WageAnnual != nil {
		t.Errorf("expected out-of-range wage dropped, got %v", *second.WageAnnual)
	}
	if second.Year != nil {
		t.Errorf("expected nil year, got %v", *second.Year)
	}
}

func TestReaderCoalescesDuplicateColumns(t *testing.T) {
	data := "CASE_NO,DECISION_DATE,ORIGINAL_CERT_DATE,EMPLOYER\n" +
		"A,,2024-02-01,Acme\n" +
		"B,2024-03-01,2024-02-01,Acme\n"

	r, err := NewReader(strings.NewReader(data), wage.StrategyFrom)
	if err != nil {
		t.Fatal(err)
	}

	a, _ := r.Next()
	b, _ := r.Next()
	if a.DecisionDate == nil || a.DecisionDate.Month() != time.February {
		t.Errorf("expected fallback to second column, got %v", a.DecisionDate)
	}
	if b.DecisionDate == nil || b.DecisionDate.Month() != time.March {
		t.Errorf("expected first non-null column, got %v", b.DecisionDate)
	}
}

func TestReaderRequiresCaseNumber(t *testing.T) {
	if _, err := NewReader(strings.NewReader("employer,job_title\nAcme,Engineer\n"), wage.StrategyFrom); err == nil {
		t.Fatal("expected error for missing case number column")
	}
}

func TestReadBatch(t *testing.T) {
	r, err := NewReader(strings.NewReader(rawCSV), wage.StrategyFrom)
	if err != nil {
		t.Fatal(err)
	}

	first, err := r.ReadBatch(2)
	if err != nil || len(first) != 2 {
		t.Fatalf("expected 2 rows, got %d (%v)", len(first), err)
	}
	second, err := r.ReadBatch(2)
	if err != nil || len(second) != 1 {
		t.Fatalf("expected 1 row, got %d (%v)", len(second), err)
	}
	if _, err := r.ReadBatch(2); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}
