package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bizreview/internal/core"
	"bizreview/internal/middleware/ratelimit"
	"bizreview/internal/report"
	"bizreview/internal/rules"
	"bizreview/internal/services"
	"bizreview/internal/storage"
)

type fakeReports struct {
	lastReq   services.ReportRequest
	lastMonth core.MonthKey
	err       error
}

func (f *fakeReports) Build(_ context.Context, req services.ReportRequest) (*report.Report, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &report.Report{Period: core.Monthly, Tab: "cafe", Offset: req.Offset, Label: "March 2025"}, nil
}

func (f *fakeReports) Classify(_ context.Context, month core.MonthKey) (core.Classification, error) {
	f.lastMonth = month
	if f.err != nil {
		return core.Classification{}, f.err
	}
	return core.Classification{Groups: core.Groups{}, Uncategorized: []core.UncategorizedLine{}}, nil
}

type testEnv struct {
	server  *Server
	reports *fakeReports
	docs    storage.Documents
}

func newTestEnv(t *testing.T, rl ratelimit.Config, ready ...ReadinessCheck) *testEnv {
	t.Helper()
	cfg, err := rules.DefaultConfig()
	if err != nil {
		t.Fatalf("default rules: %v", err)
	}
	rt := rules.NewRuleTable(cfg)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	docs := storage.NewMemoryDocuments()
	reports := &fakeReports{}

	s := NewServer(Options{
		Reports:   reports,
		Actions:   services.NewActionService(rt, docs, nil, nil, logger),
		Rules:     rt,
		RateLimit: rl,
		Ready:     ready,
		Logger:    logger,
		Now:       func() time.Time { return time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC) },
	})
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return &testEnv{server: s, reports: reports, docs: docs}
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealthAndReadiness(t *testing.T) {
	env := newTestEnv(t, ratelimit.Config{})
	if rec := env.do(t, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/readyz", ""); rec.Code != http.StatusOK {
		t.Fatalf("readyz = %d", rec.Code)
	}

	failing := newTestEnv(t, ratelimit.Config{}, func(context.Context) error { return errors.New("db down") })
	if rec := failing.do(t, http.MethodGet, "/readyz", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz with failing check = %d", rec.Code)
	}
}

func TestCategories(t *testing.T) {
	env := newTestEnv(t, ratelimit.Config{})
	rec := env.do(t, http.MethodGet, "/api/categories", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	cats, ok := body["categories"].([]any)
	if !ok || len(cats) == 0 {
		t.Fatalf("categories = %v", body["categories"])
	}
	if _, ok := body["groups"].([]any); !ok {
		t.Fatalf("groups = %v", body["groups"])
	}
	byGroup, ok := body["groupCategories"].(map[string]any)
	if !ok {
		t.Fatalf("groupCategories = %v", body["groupCategories"])
	}
	if fixed, _ := byGroup["fixed"].([]any); len(fixed) == 0 {
		t.Fatalf("fixed categories = %v", byGroup["fixed"])
	}
	if ignored, _ := body["ignoredAccounts"].([]any); len(ignored) == 0 || ignored[0] != "1218" {
		t.Fatalf("ignoredAccounts = %v", body["ignoredAccounts"])
	}
}

func TestReportQueryParsing(t *testing.T) {
	env := newTestEnv(t, ratelimit.Config{})

	rec := env.do(t, http.MethodGet, "/api/report?period=weekly&tab=b2b&offset=-2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body)
	}
	got := env.reports.lastReq
	if got.Period != core.Weekly || got.Tab != "b2b" || got.Offset != -2 {
		t.Fatalf("request = %+v", got)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing request id header")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("security headers missing: %v", rec.Header())
	}

	rec = env.do(t, http.MethodGet, "/api/report?offset=abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad offset status = %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["field"] != "offset" {
		t.Fatalf("field = %v", body["field"])
	}
}

func TestReportErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", core.NewValidationError("tab", "yachts", core.ErrUnknownTab), http.StatusBadRequest},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"internal", errors.New("ledger exploded"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, ratelimit.Config{})
			env.reports.err = tt.err
			rec := env.do(t, http.MethodGet, "/api/report", "")
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if strings.Contains(rec.Body.String(), "exploded") {
				t.Fatal("internal error leaked to client")
			}
		})
	}
}

func TestClassificationMonth(t *testing.T) {
	env := newTestEnv(t, ratelimit.Config{})

	if rec := env.do(t, http.MethodGet, "/api/classification", ""); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if env.reports.lastMonth != (core.MonthKey{Year: 2025, Month: 3}) {
		t.Fatalf("default month = %v", env.reports.lastMonth)
	}

	env.do(t, http.MethodGet, "/api/classification?month=2024-11", "")
	if env.reports.lastMonth != (core.MonthKey{Year: 2024, Month: 11}) {
		t.Fatalf("month = %v", env.reports.lastMonth)
	}

	rec := env.do(t, http.MethodGet, "/api/classification?month=2024-13", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid month status = %d", rec.Code)
	}
}

func TestCategorizeRoundTrip(t *testing.T) {
	env := newTestEnv(t, ratelimit.Config{})
	ctx := context.Background()

	rec := env.do(t, http.MethodPost, "/api/categorize", `{"billLineId":"line-1","category":"Bread"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body)
	}
	if body := decodeBody(t, rec); body["ok"] != true {
		t.Fatalf("body = %v", body)
	}
	stored, err := env.docs.Overrides.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stored["line-1"] != "Bread" {
		t.Fatalf("stored = %v", stored)
	}

	rec = env.do(t, http.MethodGet, "/api/overrides", "")
	if body := decodeBody(t, rec); body["line-1"] != "Bread" {
		t.Fatalf("overrides = %v", body)
	}

	rec = env.do(t, http.MethodDelete, "/api/categorize/line-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	stored, _ = env.docs.Overrides.Load(ctx)
	if _, ok := stored["line-1"]; ok {
		t.Fatalf("override not cleared: %v", stored)
	}
}

func TestCategorizeRejects(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		field  string
	}{
		{"unknown category", `{"billLineId":"x","category":"Yachts"}`, http.StatusBadRequest, "category"},
		{"missing line", `{"category":"Bread"}`, http.StatusBadRequest, "billLineId"},
		{"unknown field", `{"billLineId":"x","category":"Bread","extra":1}`, http.StatusBadRequest, ""},
		{"two objects", `{"billLineId":"x","category":"Bread"}{}`, http.StatusBadRequest, ""},
		{"not json", `billLineId=x`, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, ratelimit.Config{})
			rec := env.do(t, http.MethodPost, "/api/categorize", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body)
			}
			body := decodeBody(t, rec)
			if tt.field != "" && body["field"] != tt.field {
				t.Fatalf("field = %v, want %s", body["field"], tt.field)
			}
		})
	}
}

func TestCategorizeContentType(t *testing.T) {
	env := newTestEnv(t, ratelimit.Config{})
	req := httptest.NewRequest(http.MethodPost, "/api/categorize", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	env.server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestDistributionEndpoints(t *testing.T) {
	env := newTestEnv(t, ratelimit.Config{})

	rec := env.do(t, http.MethodPost, "/api/distribution", `{"groupKey":"fixed","category":"Rent","months":3}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body)
	}
	rec = env.do(t, http.MethodGet, "/api/distribution", "")
	body := decodeBody(t, rec)
	rule, ok := body[core.DistributionKey("fixed", "Rent")].(map[string]any)
	if !ok || rule["months"] != float64(3) {
		t.Fatalf("distributions = %v", body)
	}

	rec = env.do(t, http.MethodPost, "/api/distribution", `{"groupKey":"fixed","category":"Rent","months":30}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("months out of range status = %d", rec.Code)
	}
	rec = env.do(t, http.MethodPost, "/api/distribution", `{"groupKey":"yachts","category":"Rent","months":3}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown group status = %d", rec.Code)
	}
}

func TestLabourEndpoints(t *testing.T) {
	env := newTestEnv(t, ratelimit.Config{})

	rec := env.do(t, http.MethodPost, "/api/labour", `{"tabs":{"cafe":50,"events":50},"deduction":"250"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body)
	}
	stored, err := env.docs.Labour.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stored.Tabs["cafe"] != 50 || stored.Deduction.String() != "250" {
		t.Fatalf("stored = %+v", stored)
	}

	if rec := env.do(t, http.MethodGet, "/api/labour", ""); rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/labour", `{"tabs":{"cafe":70,"events":50}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("over 100%% status = %d", rec.Code)
	}
	rec = env.do(t, http.MethodPost, "/api/labour", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty update status = %d", rec.Code)
	}
}

func TestFixedCostsEndpoints(t *testing.T) {
	env := newTestEnv(t, ratelimit.Config{})

	rec := env.do(t, http.MethodPost, "/api/fixed-costs", `{"tabs":{"cafe":60,"b2b":40},"month":"2025-02"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body)
	}

	rec = env.do(t, http.MethodGet, "/api/fixed-costs?month=2025-02", "")
	body := decodeBody(t, rec)
	tabs, _ := body["tabs"].(map[string]any)
	if tabs["cafe"] != float64(60) {
		t.Fatalf("february tabs = %v", body)
	}

	rec = env.do(t, http.MethodGet, "/api/fixed-costs", "")
	body = decodeBody(t, rec)
	tabs, _ = body["tabs"].(map[string]any)
	if tabs["cafe"] != float64(90) {
		t.Fatalf("default tabs = %v", body)
	}

	rec = env.do(t, http.MethodPost, "/api/fixed-costs", `{"tabs":{"cafe":80,"b2b":40}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("over 100%% status = %d", rec.Code)
	}
	rec = env.do(t, http.MethodPost, "/api/fixed-costs", `{"tabs":{"cafe":50},"month":"Feb"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad month status = %d", rec.Code)
	}
}

func TestRateLimitAppliesToWrites(t *testing.T) {
	env := newTestEnv(t, ratelimit.Config{RequestsPerMinute: 1, Burst: 1})

	first := env.do(t, http.MethodPost, "/api/distribution", `{"groupKey":"fixed","category":"Rent","months":2}`)
	if first.Code != http.StatusOK {
		t.Fatalf("first = %d", first.Code)
	}
	second := env.do(t, http.MethodPost, "/api/distribution", `{"groupKey":"fixed","category":"Rent","months":2}`)
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second = %d", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After")
	}
	for i := 0; i < 3; i++ {
		if rec := env.do(t, http.MethodGet, "/api/distribution", ""); rec.Code != http.StatusOK {
			t.Fatalf("read %d limited: %d", i, rec.Code)
		}
	}
}

func TestBlockedMethod(t *testing.T) {
	env := newTestEnv(t, ratelimit.Config{})
	if rec := env.do(t, "TRACE", "/api/report", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("TRACE status = %d", rec.Code)
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	env := newTestEnv(t, ratelimit.Config{})
	if err := env.server.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := env.server.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
}
