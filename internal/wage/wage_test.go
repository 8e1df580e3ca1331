package wage

import "testing"

func floatPtr(f float64) *float64 { return &f }

func TestNormaliseUnit(t *testing.T) {
	tests := []struct {
		in   string
		want Unit
		ok   bool
	}{
		{"Hour", Hour, true},
		{"HR", Hour, true},
		{"Week", Week, true},
		{"Bi-Weekly", BiWeekly, true},
		{"BI_WEEKLY", BiWeekly, true},
		{"Semi-Monthly", SemiMonthly, true},
		{"Month", Month, true},
		{"Year", Year, true},
		{" per year ", Year, true},
		{"Daily", Day, true},
		{"", "", false},
		{"fortnight", "", false},
	}

	for _, tt := range tests {
		got, ok := NormaliseUnit(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("NormaliseUnit(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestAnnualiseFactors(t *testing.T) {
	tests := []struct {
		unit string
		rate float64
		want float64
	}{
		{"Hour", 50, 104000},
		{"Week", 2000, 104000},
		{"Bi-Weekly", 4000, 104000},
		{"Month", 10000, 120000},
		{"Year", 135000, 135000},
		{"Semi-Monthly", 5000, 120000},
		{"Day", 400, 104000},
	}

	for _, tt := range tests {
		t.Run(tt.unit, func(t *testing.T) {
			got := Annualise(floatPtr(tt.rate), nil, tt.unit, StrategyFrom)
			if got == nil {
				t.Fatalf("Annualise returned nil")
			}
			if *got != tt.want {
				t.Errorf("Annualise(%v %s) = %v, want %v", tt.rate, tt.unit, *got, tt.want)
			}
		})
	}
}

func TestAnnualiseStrategies(t *testing.T) {
	from, to := floatPtr(100000), floatPtr(120000)

	if got := Annualise(from, to, "Year", StrategyFrom); got == nil || *got != 100000 {
		t.Errorf("from strategy = %v, want 100000", got)
	}
	if got := Annualise(from, to, "Year", StrategyAvg); got == nil || *got != 110000 {
		t.Errorf("avg strategy = %v, want 110000", got)
	}
	if got := Annualise(from, to, "Year", StrategyMax); got == nil || *got != 120000 {
		t.Errorf("max strategy = %v, want 120000", got)
	}
	// Missing from falls back to to.
	if got := Annualise(nil, to, "Year", StrategyFrom); got == nil || *got != 120000 {
		t.Errorf("fallback to wage_rate_to = %v, want 120000", got)
	}
}

func TestAnnualiseGuardrails(t *testing.T) {
	tests := []struct {
		name string
		from *float64
		unit string
	}{
		{"no rate", nil, "Year"},
		{"unknown unit", floatPtr(50), "Fortnight"},
		{"too small", floatPtr(0.1), "Hour"},
		{"zero", floatPtr(0), "Year"},
		{"negative", floatPtr(-5), "Hour"},
		{"absurd", floatPtr(5000), "Hour"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Annualise(tt.from, nil, tt.unit, StrategyFrom); got != nil {
				t.Errorf("Annualise = %v, want nil", *got)
			}
		})
	}
}

func TestAnnualiseRoundsToCents(t *testing.T) {
	got := Annualise(floatPtr(33.333), nil, "Hour", StrategyFrom)
	if got == nil || *got != 69332.64 {
		t.Errorf("Annualise = %v, want 69332.64", got)
	}
}

func TestParseStrategy(t *testing.T) {
	if ParseStrategy("AVG") != StrategyAvg {
		t.Error("AVG should parse to avg")
	}
	if ParseStrategy("max") != StrategyMax {
		t.Error("max should parse to max")
	}
	if ParseStrategy("") != StrategyFrom {
		t.Error("empty should default to from")
	}
}
