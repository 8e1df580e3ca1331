package query

import (
	"context"
	"math"
	"strings"

	"lca_wages/internal/storage"
)

// SearchRequest is a case search as submitted by a caller.
type SearchRequest struct {
	Employer string   `json:"employer" validate:"max=100"`
	Job      string   `json:"job" validate:"max=100"`
	City     string   `json:"city" validate:"max=100"`
	State    string   `json:"state" validate:"omitempty,len=2,alpha"`
	Year     *int     `json:"year" validate:"omitnil,gte=1990,lte=2100"`
	MinWage  *float64 `json:"minWage" validate:"omitnil,gte=0"`
	MaxWage  *float64 `json:"maxWage" validate:"omitnil,gte=0"`
	Status   string   `json:"status" validate:"max=40"`
	Page     int      `json:"page"`
	Limit    int      `json:"limit"`
	Sample   bool     `json:"sample"`
}

// SearchResult is one page of search results.
type SearchResult struct {
	Rows  []storage.CaseRow
	Page  int
	Limit int
}

// normalise trims free text and upper-cases codes in place.
func (r *SearchRequest) normalise() {
	r.Employer = strings.TrimSpace(r.Employer)
	r.Job = strings.TrimSpace(r.Job)
	r.City = strings.TrimSpace(r.City)
	r.State = strings.ToUpper(strings.TrimSpace(r.State))
	r.Status = strings.ToUpper(strings.TrimSpace(r.Status))
}

// hasScope reports whether the request narrows by text or state.
func (r *SearchRequest) hasScope() bool {
	return r.Employer != "" || r.Job != "" || r.City != "" || r.State != ""
}

// hasAnyFilter reports whether any filter at all is set.
func (r *SearchRequest) hasAnyFilter() bool {
	return r.hasScope() || r.Year != nil || r.MinWage != nil || r.MaxWage != nil || r.Status != ""
}

// validateSearch normalises req and rejects it before any query runs.
func validateSearch(req *SearchRequest) error {
	req.normalise()

	for _, f := range []struct{ name, value string }{
		{"employer", req.Employer},
		{"job", req.Job},
		{"city", req.City},
	} {
		if err := checkText(f.name, f.value); err != nil {
			return err
		}
	}

	if err := validate.Struct(req); err != nil {
		return fromValidator(err)
	}

	if req.MinWage != nil && req.MaxWage != nil && *req.MinWage > *req.MaxWage {
		return invalid("minWage", "minWage must not exceed maxWage")
	}

	if !req.hasScope() && !req.Sample {
		return invalid("query", "provide at least one of employer, job, city or state")
	}
	return nil
}

// maxOffset caps how deep a search may page.
const maxOffset = math.MaxInt32

// clampPage bounds limit to [1, LimitMax] with DefaultLimit for zero, and page
// to >= 0.
func (s *Service) clampPage(page, limit int) (int, int) {
	switch {
	case limit == 0:
		limit = s.opts.DefaultLimit
	case limit < 1:
		limit = 1
	case limit > s.opts.LimitMax:
		limit = s.opts.LimitMax
	}
	if page < 0 {
		page = 0
	}
	return page, limit
}

// SearchCases runs a filtered case search. Requests that fail validation return
// a *ValidationError and never reach the store.
func (s *Service) SearchCases(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	if err := validateSearch(&req); err != nil {
		return nil, err
	}

	page, limit := s.clampPage(req.Page, req.Limit)

	if req.Sample && !req.hasAnyFilter() {
		limit = min(s.opts.SampleSize, s.opts.LimitMax)
		rows, err := s.store.SampleCases(ctx, s.opts.SampleYear, limit)
		if err != nil {
			return nil, err
		}
		return &SearchResult{Rows: rows, Page: 0, Limit: limit}, nil
	}

	if page > maxOffset/limit {
		return nil, invalid("page", "page must be at most %d for limit %d", maxOffset/limit, limit)
	}

	rows, err := s.store.SearchCases(ctx, storage.SearchParams{
		Employer:       req.Employer,
		Job:            req.Job,
		City:           req.City,
		State:          req.State,
		Status:         req.Status,
		Year:           req.Year,
		MinWage:        req.MinWage,
		MaxWage:        req.MaxWage,
		ByDecisionDate: req.Sample,
		Limit:          limit,
		Offset:         page * limit,
	})
	if err != nil {
		return nil, err
	}
	return &SearchResult{Rows: rows, Page: page, Limit: limit}, nil
}
