package http

import (
	"context"
	"net/http"
	"strings"

	"bizreview/internal/core"
	"bizreview/internal/fixedcosts"
	"bizreview/internal/services"
)

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	groups := s.rules.Groups()
	byGroup := make(map[string][]string, len(groups))
	for _, g := range groups {
		byGroup[g.Key] = s.rules.GroupCategories(g.Key)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"categories":      s.rules.AllCategories(),
		"groups":          groups,
		"groupCategories": byGroup,
		"tabs":            s.rules.Tabs(),
		"ignoredAccounts": s.rules.IgnoredCodes(),
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	offset, err := parseOffset(q.Get("offset"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	req := services.ReportRequest{
		Period: core.Period(strings.TrimSpace(q.Get("period"))),
		Tab:    strings.TrimSpace(q.Get("tab")),
		Offset: offset,
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	rep, err := s.reports.Build(ctx, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleClassification(w http.ResponseWriter, r *http.Request) {
	month, err := parseMonth("month", r.URL.Query().Get("month"), core.MonthKeyOf(s.now()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	c, err := s.reports.Classify(ctx, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"month":              month,
		"groups":             c.Groups,
		"uncategorized":      c.Uncategorized,
		"ignored":            c.Ignored,
		"categorizedTotal":   c.CategorizedTotal(),
		"uncategorizedTotal": c.UncategorizedTotal(),
	})
}

func (s *Server) handleListOverrides(w http.ResponseWriter, r *http.Request) {
	t, err := s.actions.Overrides(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleCategorize(w http.ResponseWriter, r *http.Request) {
	var req categorizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.actions.SetOverride(r.Context(), req.BillLineID, req.Category); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, map[string]any{"billLineId": strings.TrimSpace(req.BillLineID), "category": req.Category})
}

func (s *Server) handleClearOverride(w http.ResponseWriter, r *http.Request) {
	lineID := r.PathValue("lineID")
	if err := s.actions.ClearOverride(r.Context(), lineID); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, map[string]any{"billLineId": lineID})
}

func (s *Server) handleListDistributions(w http.ResponseWriter, r *http.Request) {
	t, err := s.actions.Distributions(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDistribution(w http.ResponseWriter, r *http.Request) {
	var req distributionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.actions.SetDistribution(r.Context(), req.GroupKey, req.Category, req.Months); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleGetLabour(w http.ResponseWriter, r *http.Request) {
	a, err := s.actions.LabourAllocation(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleLabour(w http.ResponseWriter, r *http.Request) {
	var req labourRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Tabs == nil && req.Roles == nil && req.Deduction == nil {
		writeError(w, r, badRequest("tabs", "one of tabs, roles or deduction is required"))
		return
	}
	update := services.LabourUpdate{Tabs: req.Tabs, Roles: req.Roles, Deduction: req.Deduction}
	if err := s.actions.SetLabourAllocation(r.Context(), update); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleGetFixedCosts(w http.ResponseWriter, r *http.Request) {
	month, err := parseMonth("month", r.URL.Query().Get("month"), core.MonthKeyOf(s.now()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := s.actions.FixedAllocation(r.Context(), month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"month": month, "tabs": a.Tabs})
}

func (s *Server) handleFixedCosts(w http.ResponseWriter, r *http.Request) {
	var req fixedCostsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	var month *core.MonthKey
	if req.Month != "" {
		m, err := parseMonth("month", req.Month, core.MonthKey{})
		if err != nil {
			writeError(w, r, err)
			return
		}
		month = &m
	}
	if err := s.actions.SetFixedAllocation(r.Context(), month, fixedcosts.Allocation{Tabs: req.Tabs}); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, nil)
}
