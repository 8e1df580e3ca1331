package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"lca_wages/internal/logging"
	"lca_wages/internal/metrics"
	"lca_wages/internal/query"
	"lca_wages/internal/storage"
)

// maxBodyBytes bounds a POSTed search body.
const maxBodyBytes = 16 << 10

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	resp := HealthResponse{Status: "ok", Time: now.Format(time.RFC3339)}

	if s.fresh != nil {
		at, err := s.fresh.ViewsRefreshedAt(r.Context())
		switch {
		case err != nil:
			logging.Ctx(r.Context()).Warn().Err(err).Msg("health: views freshness unavailable")
			resp.Status = "degraded"
		case at == nil:
			resp.ViewsStale = true
		default:
			ts := at.UTC().Format(time.RFC3339)
			age := int64(now.Sub(*at).Seconds())
			resp.ViewsRefreshed = &ts
			resp.ViewsAgeSeconds = &age
			resp.ViewsStale = now.Sub(*at) > s.cfg.StaleAfter
			metrics.ViewsRefreshedAt.Set(float64(at.Unix()))
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req query.SearchRequest
	var err error

	if r.Method == http.MethodPost {
		req, err = decodeSearchBody(w, r)
	} else {
		req, err = searchFromQuery(r)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.queries.SearchCases(r.Context(), req)
	if err != nil {
		writeQueryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchToResponse(res))
}

func decodeSearchBody(w http.ResponseWriter, r *http.Request) (query.SearchRequest, error) {
	var req query.SearchRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return req, nil
		}
		return req, errors.New("invalid JSON body")
	}
	return req, nil
}

// searchFromQuery reads a search from URL parameters. Both camelCase and
// snake_case wage bounds are accepted.
func searchFromQuery(r *http.Request) (query.SearchRequest, error) {
	q := r.URL.Query()
	req := query.SearchRequest{
		Employer: q.Get("employer"),
		Job:      q.Get("job"),
		City:     q.Get("city"),
		State:    q.Get("state"),
		Status:   q.Get("status"),
	}

	var err error
	if req.Year, err = optInt(q.Get("year"), "year"); err != nil {
		return req, err
	}
	if req.MinWage, err = optFloat(first(q.Get("minWage"), q.Get("min_wage")), "minWage"); err != nil {
		return req, err
	}
	if req.MaxWage, err = optFloat(first(q.Get("maxWage"), q.Get("max_wage")), "maxWage"); err != nil {
		return req, err
	}
	if req.Page, err = intParam(q.Get("page"), "page"); err != nil {
		return req, err
	}
	if req.Limit, err = intParam(q.Get("limit"), "limit"); err != nil {
		return req, err
	}
	if v := q.Get("sample"); v != "" {
		if req.Sample, err = strconv.ParseBool(v); err != nil {
			return req, errors.New("sample must be true or false")
		}
	}
	return req, nil
}

func (s *Server) handleIndexableStates(w http.ResponseWriter, r *http.Request) {
	minCases := int64(-1)
	if v := r.URL.Query().Get("min_cases"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "min_cases must be a non-negative integer")
			return
		}
		minCases = n
	}

	states, err := s.queries.GetIndexableStates(r.Context(), minCases)
	if err != nil {
		writeQueryError(w, r, err)
		return
	}

	resp := make([]StateResponse, 0, len(states))
	for i := range states {
		resp = append(resp, stateToResponse(&states[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"states": resp})
}

func (s *Server) handleStateSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.queries.GetStateSummary(r.Context(), chi.URLParam(r, "state"))
	if err != nil {
		writeQueryError(w, r, err)
		return
	}
	if summary == nil {
		writeError(w, http.StatusNotFound, "No data for state")
		return
	}
	writeJSON(w, http.StatusOK, stateToResponse(summary))
}

func (s *Server) handleTopEntities(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"), "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	kind := strings.ToLower(chi.URLParam(r, "kind"))
	ranks, err := s.queries.GetTopEntities(r.Context(), chi.URLParam(r, "state"), kind, limit)
	if err != nil {
		writeQueryError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, TopResponse{
		State: strings.ToUpper(chi.URLParam(r, "state")),
		Kind:  kind,
		Rows:  rankRows(storage.EntityKind(kind), ranks),
	})
}

func (s *Server) handleEntitySummary(w http.ResponseWriter, r *http.Request) {
	topN, err := intParam(r.URL.Query().Get("top"), "top")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := s.queries.GetEntitySummary(r.Context(),
		chi.URLParam(r, "state"),
		chi.URLParam(r, "slug"),
		strings.ToLower(chi.URLParam(r, "kind")),
		topN,
	)
	if err != nil {
		writeQueryError(w, r, err)
		return
	}
	if summary == nil {
		writeError(w, http.StatusNotFound, "No such entity in state")
		return
	}
	writeJSON(w, http.StatusOK, entityToResponse(summary))
}

// Parameter helpers.

func first(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func intParam(v, name string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.New(name + " must be an integer")
	}
	return n, nil
}

func optInt(v, name string) (*int, error) {
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, errors.New(name + " must be an integer")
	}
	return &n, nil
}

func optFloat(v, name string) (*float64, error) {
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, errors.New(name + " must be a number")
	}
	return &f, nil
}
