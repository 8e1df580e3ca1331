package api

import (
	"time"

	"lca_wages/internal/query"
	"lca_wages/internal/storage"
)

// CaseResponse is one filing in a search response.
type CaseResponse struct {
	CaseNumber    string   `json:"case_number"`
	CaseStatus    *string  `json:"case_status"`
	ReceivedDate  *string  `json:"received_date"`
	DecisionDate  *string  `json:"decision_date"`
	EmployerName  *string  `json:"employer_name"`
	JobTitle      *string  `json:"job_title"`
	SOCCode       *string  `json:"soc_code"`
	SOCTitle      *string  `json:"soc_title"`
	WorksiteCity  *string  `json:"worksite_city"`
	WorksiteState *string  `json:"worksite_state"`
	WageRateFrom  *float64 `json:"wage_rate_from"`
	WageRateTo    *float64 `json:"wage_rate_to"`
	WageUnit      *string  `json:"wage_unit"`
	WageAnnual    *float64 `json:"wage_annual"`
	Year          *int     `json:"year"`
}

// SearchResponse is the body of a successful search.
type SearchResponse struct {
	Rows  []CaseResponse `json:"rows"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

// StateResponse is a state summary.
type StateResponse struct {
	State              string              `json:"state"`
	TotalCases         int64               `json:"total_cases"`
	LatestYear         *int                `json:"latest_year"`
	LatestDecisionDate *string             `json:"latest_decision_date"`
	WageP25            *float64            `json:"wage_p25"`
	WageP50            *float64            `json:"wage_p50"`
	WageP75            *float64            `json:"wage_p75"`
	WageP90            *float64            `json:"wage_p90"`
	SampleSize         int64               `json:"wage_sample_size"`
	RefreshedAt        string              `json:"refreshed_at"`
	Series             []storage.YearPoint `json:"series,omitempty"`
}

// TopResponse is a ranked entity list.
type TopResponse struct {
	State string           `json:"state"`
	Kind  string           `json:"kind"`
	Rows  []map[string]any `json:"rows"`
}

// HealthResponse is the body of /health.
type HealthResponse struct {
	Status          string  `json:"status"`
	Time            string  `json:"time"`
	ViewsRefreshed  *string `json:"views_refreshed_at,omitempty"`
	ViewsAgeSeconds *int64  `json:"views_age_seconds,omitempty"`
	ViewsStale      bool    `json:"views_stale"`
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.DateOnly)
	return &s
}

func caseToResponse(c storage.CaseRow) CaseResponse {
	return CaseResponse{
		CaseNumber:    c.CaseNumber,
		CaseStatus:    c.CaseStatus,
		ReceivedDate:  formatDate(c.ReceivedDate),
		DecisionDate:  formatDate(c.DecisionDate),
		EmployerName:  c.EmployerName,
		JobTitle:      c.JobTitle,
		SOCCode:       c.SOCCode,
		SOCTitle:      c.SOCTitle,
		WorksiteCity:  c.WorksiteCity,
		WorksiteState: c.WorksiteState,
		WageRateFrom:  c.WageRateFrom,
		WageRateTo:    c.WageRateTo,
		WageUnit:      c.WageUnit,
		WageAnnual:    c.WageAnnual,
		Year:          c.Year,
	}
}

func searchToResponse(res *query.SearchResult) SearchResponse {
	rows := make([]CaseResponse, 0, len(res.Rows))
	for _, c := range res.Rows {
		rows = append(rows, caseToResponse(c))
	}
	return SearchResponse{Rows: rows, Page: res.Page, Limit: res.Limit}
}

func stateToResponse(s *storage.StateSummary) StateResponse {
	return StateResponse{
		State:              s.State,
		TotalCases:         s.TotalCases,
		LatestYear:         s.LatestYear,
		LatestDecisionDate: formatDate(s.LatestDecisionDate),
		WageP25:            s.P25,
		WageP50:            s.P50,
		WageP75:            s.P75,
		WageP90:            s.P90,
		SampleSize:         s.SampleSize,
		RefreshedAt:        s.RefreshedAt.UTC().Format(time.RFC3339),
		Series:             s.Series,
	}
}

// rankRows renders ranks with the entity name under the kind's column key, so
// a job list carries "job_title" and a city list "worksite_city".
func rankRows(kind storage.EntityKind, ranks []storage.EntityRank) []map[string]any {
	rows := make([]map[string]any, 0, len(ranks))
	for _, r := range ranks {
		rows = append(rows, map[string]any{
			"rank":        r.Rank,
			kind.Column(): r.Name,
			"total_cases": r.TotalCases,
			"wage_p50":    r.WageP50,
		})
	}
	return rows
}

func entityToResponse(e *query.EntitySummary) map[string]any {
	related := make(map[string]any, len(e.Related))
	for kind, ranks := range e.Related {
		related[string(kind)] = rankRows(kind, ranks)
	}

	return map[string]any{
		"state":                e.State,
		"kind":                 string(e.Kind),
		"slug":                 e.Slug,
		e.Kind.Column():        e.Name,
		"total_cases":          e.TotalCases,
		"latest_year":          e.LatestYear,
		"latest_decision_date": formatDate(e.LatestDecisionDate),
		"wage_p25":             e.P25,
		"wage_p50":             e.P50,
		"wage_p75":             e.P75,
		"wage_p90":             e.P90,
		"wage_sample_size":     e.SampleSize,
		"related":              related,
	}
}
