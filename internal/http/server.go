// Package http serves the JSON API: reports, classifications and the
// actions that record manual decisions.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"bizreview/internal/core"
	"bizreview/internal/fixedcosts"
	"bizreview/internal/labour"
	applog "bizreview/internal/log"
	"bizreview/internal/middleware/ratelimit"
	"bizreview/internal/middleware/security"
	"bizreview/internal/middleware/trace"
	"bizreview/internal/report"
	"bizreview/internal/rules"
	"bizreview/internal/services"
)

// Reports builds reports and classifications.
type Reports interface {
	Build(ctx context.Context, req services.ReportRequest) (*report.Report, error)
	Classify(ctx context.Context, month core.MonthKey) (core.Classification, error)
}

// Actions records manual decisions.
type Actions interface {
	SetOverride(ctx context.Context, lineID, category string) error
	ClearOverride(ctx context.Context, lineID string) error
	Overrides(ctx context.Context) (core.OverrideTable, error)
	SetDistribution(ctx context.Context, groupKey, category string, months int) error
	Distributions(ctx context.Context) (core.DistributionTable, error)
	SetLabourAllocation(ctx context.Context, update services.LabourUpdate) error
	LabourAllocation(ctx context.Context) (labour.Allocations, error)
	SetFixedAllocation(ctx context.Context, month *core.MonthKey, alloc fixedcosts.Allocation) error
	FixedAllocation(ctx context.Context, month core.MonthKey) (fixedcosts.Allocation, error)
}

// ReadinessCheck reports whether a dependency can serve requests.
type ReadinessCheck func(ctx context.Context) error

// Options configures NewServer.
type Options struct {
	Addr      string
	Reports   Reports
	Actions   Actions
	Rules     *rules.RuleTable
	RateLimit ratelimit.Config
	// RequestTimeout bounds report building per request (default: 30s)
	RequestTimeout time.Duration
	Ready          []ReadinessCheck
	Logger         *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

type Server struct {
	http.Server
	reports Reports
	actions Actions
	rules   *rules.RuleTable
	ready   []ReadinessCheck
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		Server: http.Server{
			Addr:              opts.Addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		reports:  opts.Reports,
		actions:  opts.Actions,
		rules:    opts.Rules,
		ready:    opts.Ready,
		timeout:  opts.RequestTimeout,
		now:      opts.Now,
		logger:   logger.With(applog.FieldComponent, applog.ComponentHTTP),
		limiter:  ratelimit.NewLimiter(opts.RateLimit),
		detector: security.NewDetector(logger),
	}
	s.tracer = trace.NewMiddleware(s.detector.ClientIP, applog.New(applog.Config{
		Handler:   logger.Handler(),
		Component: applog.ComponentHTTP,
	}))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/categories", s.handleCategories)
	mux.HandleFunc("GET /api/report", s.handleReport)
	mux.HandleFunc("GET /api/classification", s.handleClassification)

	mux.HandleFunc("GET /api/overrides", s.handleListOverrides)
	mux.HandleFunc("POST /api/categorize", s.handleCategorize)
	mux.HandleFunc("DELETE /api/categorize/{lineID}", s.handleClearOverride)

	mux.HandleFunc("GET /api/distribution", s.handleListDistributions)
	mux.HandleFunc("POST /api/distribution", s.handleDistribution)

	mux.HandleFunc("GET /api/labour", s.handleGetLabour)
	mux.HandleFunc("POST /api/labour", s.handleLabour)

	mux.HandleFunc("GET /api/fixed-costs", s.handleGetFixedCosts)
	mux.HandleFunc("POST /api/fixed-costs", s.handleFixedCosts)

	limit := s.limiter.Middleware(s.detector.ClientIP, s.onRateLimit, http.MethodPost, http.MethodDelete)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	// Outermost first: trace, detection, headers, rate limit.
	s.Handler = s.tracer.Middleware(s.detector.Middleware(headers.Middleware(limit(mux))))
	return s
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	w.Header().Set("Retry-After", "60")
	writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded, try again later"})
}

// Shutdown stops background routines, then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	for _, check := range s.ready {
		if err := check(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
