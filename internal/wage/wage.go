// Package wage annualises offered wage rates the way the disclosure load derives wage_annual.
// The factors are approximations (40 hour weeks, 260 working days) and are never
// recomputed by the query layer; percentile views depend on them being applied at load.
package wage

import (
	"math"
	"regexp"
	"strings"
)

// Unit is a normalised pay period.
type Unit string

const (
	Hour        Unit = "hour"
	Day         Unit = "day"
	Week        Unit = "week"
	BiWeekly    Unit = "bi_weekly"
	SemiMonthly Unit = "semi_monthly"
	Month       Unit = "month"
	Year        Unit = "year"
)

// Guardrails outside which an annual figure is treated as a data entry error.
const (
	MinAnnual = 1000.0
	MaxAnnual = 5_000_000.0
)

var factors = map[Unit]float64{
	Hour:        2080,
	Day:         260,
	Week:        52,
	BiWeekly:    26,
	SemiMonthly: 24,
	Month:       12,
	Year:        1,
}

var unitAliases = map[string]Unit{
	"hour": Hour, "hr": Hour, "per_hour": Hour, "hourly": Hour,
	"day": Day, "daily": Day, "per_day": Day,
	"week": Week, "wk": Week, "per_week": Week, "weekly": Week,
	"bi_weekly": BiWeekly, "biweekly": BiWeekly, "bi_week": BiWeekly,
	"semi_monthly": SemiMonthly, "semimonthly": SemiMonthly, "semi_month": SemiMonthly,
	"month": Month, "mo": Month, "per_month": Month, "monthly": Month,
	"year": Year, "yr": Year, "per_year": Year, "annual": Year, "yearly": Year,
}

var nonWordRe = regexp.MustCompile(`[^a-z0-9]+`)

// NormaliseUnit maps the many spellings found in disclosure files ("Bi-Weekly",
// "BI_WEEKLY", "Hr") onto a Unit. Unknown units return ok=false.
func NormaliseUnit(raw string) (Unit, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.Trim(nonWordRe.ReplaceAllString(s, "_"), "_")
	if s == "" {
		return "", false
	}
	u, ok := unitAliases[s]
	return u, ok
}

// Factor returns the multiplier taking one period of u to a year.
func Factor(u Unit) (float64, bool) {
	f, ok := factors[u]
	return f, ok
}

// Strategy picks the base rate from a from/to range before annualising.
type Strategy string

const (
	StrategyFrom Strategy = "from"
	StrategyAvg  Strategy = "avg"
	StrategyMax  Strategy = "max"
)

// ParseStrategy returns the named strategy, defaulting to StrategyFrom.
func ParseStrategy(s string) Strategy {
	switch Strategy(strings.ToLower(s)) {
	case StrategyAvg:
		return StrategyAvg
	case StrategyMax:
		return StrategyMax
	default:
		return StrategyFrom
	}
}

// Annualise converts a wage range and unit to an annual figure rounded to cents.
// from/to may be nil. Returns nil when no base rate exists, the unit is unknown, or the
// result falls outside [MinAnnual, MaxAnnual].
func Annualise(from, to *float64, unit string, strategy Strategy) *float64 {
	u, ok := NormaliseUnit(unit)
	if !ok {
		return nil
	}
	factor := factors[u]

	base, ok := baseRate(from, to, strategy)
	if !ok {
		return nil
	}

	annual := base * factor
	if annual < MinAnnual || annual > MaxAnnual {
		return nil
	}
	annual = math.Round(annual*100) / 100
	return &annual
}

func baseRate(from, to *float64, strategy Strategy) (float64, bool) {
	switch {
	case from == nil && to == nil:
		return 0, false
	case from == nil:
		return *to, true
	case to == nil:
		return *from, true
	}

	switch strategy {
	case StrategyAvg:
		return (*from + *to) / 2, true
	case StrategyMax:
		return math.Max(*from, *to), true
	default:
		return *from, true
	}
}
