package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"bizreview/internal/categorize"
	"bizreview/internal/core"
	"bizreview/internal/distribution"
	"bizreview/internal/fixedcosts"
	"bizreview/internal/labour"
	"bizreview/internal/ledger"
	applog "bizreview/internal/log"
	"bizreview/internal/report"
	"bizreview/internal/revenue"
	"bizreview/internal/rules"
	"bizreview/internal/storage"
)

// historyFetchLimit bounds concurrent lookback fetches against the ledger.
const historyFetchLimit = 4

// ReportRequest selects one report. The zero value is this month of the
// first configured tab.
type ReportRequest struct {
	Period core.Period
	Tab    string
	Offset int
}

func (r ReportRequest) cacheKey(now time.Time) string {
	return fmt.Sprintf("%s|%s|%d|%s", r.Period, r.Tab, r.Offset, now.Format("2006-01-02"))
}

// ReportService builds reports from the ledger and the stored decisions.
type ReportService struct {
	rules      *rules.RuleTable
	source     ledger.Source
	docs       storage.Documents
	classifier *categorize.Classifier
	engine     *distribution.Engine
	revenue    *revenue.Aggregator
	cache      ReportCache
	logger     *slog.Logger
	now        func() time.Time
}

// NewReportService wires the engine. cache may be nil to disable caching.
func NewReportService(rt *rules.RuleTable, source ledger.Source, docs storage.Documents, cache ReportCache, logger *slog.Logger) *ReportService {
	logger = orDefault(logger).With(applog.FieldComponent, applog.ComponentReport)
	return &ReportService{
		rules:      rt,
		source:     source,
		docs:       docs,
		classifier: categorize.NewClassifier(rt, logger),
		engine:     distribution.NewEngine(logger),
		revenue:    revenue.NewAggregator(rt),
		cache:      cache,
		logger:     logger,
		now:        time.Now,
	}
}

// Rules exposes the mapping the service classifies with.
func (s *ReportService) Rules() *rules.RuleTable {
	return s.rules
}

type periodData struct {
	bills    []core.LedgerLine
	daybook  []core.DaybookLine
	invoices []core.Invoice
}

type storedDecisions struct {
	overrides     core.OverrideTable
	distributions core.DistributionTable
	labour        labour.Allocations
	fixed         fixedcosts.Document
}

func (s *ReportService) normalize(req ReportRequest) (ReportRequest, error) {
	p, err := core.ParsePeriod(string(req.Period))
	if err != nil {
		return req, err
	}
	req.Period = p
	if req.Offset > 0 {
		req.Offset = 0
	}
	if req.Tab == "" {
		tabs := s.rules.Tabs()
		if len(tabs) == 0 {
			return req, core.NewValidationError("tab", nil, core.ErrUnknownTab)
		}
		req.Tab = tabs[0]
	}
	if _, ok := s.rules.Tab(req.Tab); !ok {
		return req, core.NewValidationError("tab", req.Tab, core.ErrUnknownTab)
	}
	return req, nil
}

// Build returns the report of req, from the cache when one is configured.
func (s *ReportService) Build(ctx context.Context, req ReportRequest) (*report.Report, error) {
	req, err := s.normalize(req)
	if err != nil {
		return nil, err
	}
	now := s.now()
	key := req.cacheKey(now)
	if s.cache != nil {
		if r, ok := s.cache.Get(ctx, key); ok {
			s.logger.DebugContext(ctx, "Report served from cache", "key", key)
			return r, nil
		}
	}

	start := time.Now()
	tab, _ := s.rules.Tab(req.Tab)
	curRange := core.RangeFor(req.Period, req.Offset, now)
	prevRange := core.PreviousRange(req.Period, req.Offset, now)

	var (
		accounts  core.AccountTable
		cur, prev periodData
		stored    storedDecisions
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		accounts, err = s.source.Accounts(gctx)
		if err != nil {
			return fmt.Errorf("fetch accounts: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		cur, err = s.fetch(gctx, curRange)
		return err
	})
	g.Go(func() error {
		var err error
		prev, err = s.fetch(gctx, prevRange)
		return err
	})
	g.Go(func() error {
		var err error
		stored, err = s.loadDecisions(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	current := s.classifier.Classify(cur.bills, accounts, stored.overrides)
	previous := s.classifier.Classify(prev.bills, accounts, stored.overrides)

	if req.Period == core.Monthly && distribution.Active(stored.distributions) {
		month := core.MonthKeyOf(curRange.Start)
		if err := s.distribute(ctx, month, current.Groups, previous.Groups, accounts, stored); err != nil {
			return nil, err
		}
	}

	lc := s.rules.Labour()
	label := lc.Label
	if label == "" {
		label = "Labour"
	}
	alloc := stored.labour.WithDefaults()
	curLabour := labour.Total(cur.bills, cur.daybook, accounts, lc.AccountPrefix)
	prevLabour := labour.Total(prev.bills, prev.daybook, accounts, lc.AccountPrefix)
	current.Groups[core.LabourGroupKey] = labour.Compute(curLabour, alloc, req.Tab, label, lc.Icon)
	previous.Groups[core.LabourGroupKey] = labour.Compute(prevLabour, alloc, req.Tab, label, lc.Icon)

	if raw, ok := current.Groups[fixedcosts.GroupKey]; ok {
		current.Groups[fixedcosts.GroupKey] = fixedcosts.Compute(raw, stored.fixed.For(core.MonthKeyOf(curRange.Start)), req.Tab)
	}
	if raw, ok := previous.Groups[fixedcosts.GroupKey]; ok {
		previous.Groups[fixedcosts.GroupKey] = fixedcosts.Compute(raw, stored.fixed.For(core.MonthKeyOf(prevRange.Start)), req.Tab)
	}

	curRevenue := s.revenue.Aggregate(cur.daybook, cur.invoices, accounts)
	prevRevenue := s.revenue.Aggregate(prev.daybook, prev.invoices, accounts)

	in := report.Input{
		Period:         req.Period,
		Tab:            req.Tab,
		Offset:         req.Offset,
		Label:          core.PeriodLabel(req.Period, req.Offset, now),
		Range:          curRange,
		Revenue:        curRevenue,
		PrevRevenue:    prevRevenue,
		TabRevenue:     s.revenue.ForTab(curRevenue, req.Tab),
		PrevTabRevenue: s.revenue.ForTab(prevRevenue, req.Tab),
		Groups:         current.Groups,
		PrevGroups:     previous.Groups,
		GroupOrder:     tab.Groups,
		Uncategorized:  current.Uncategorized,
		Ignored:        current.Ignored,
		Cashflow:       report.BuildCashflow(req.Period, cur.daybook, cur.bills, cur.invoices, s.revenue.AccountIDs(accounts)),
		Categories:     s.rules.AllCategories(),
		Distributions:  stored.distributions,
	}
	if req.Period == core.Monthly && req.Offset == 0 {
		projected := prevLabour
		in.LabourProjected = &projected
	}
	r := report.Build(in)

	fields := applog.NewFields().WithReport(string(req.Period), req.Tab, req.Offset)
	fields[applog.FieldLines] = len(cur.bills)
	fields[applog.FieldUncategorized] = len(current.Uncategorized)
	fields[applog.FieldDuration] = time.Since(start).Milliseconds()
	s.logger.InfoContext(ctx, "Report built", fields.ToSlice()...)

	if s.cache != nil {
		s.cache.Set(ctx, key, r)
	}
	return r, nil
}

// distribute spreads both periods. The previous month is classified fresh,
// so its undistributed groups double as the nearest history entry.
func (s *ReportService) distribute(ctx context.Context, month core.MonthKey, current, previous core.Groups, accounts core.AccountTable, stored storedDecisions) error {
	prevMonth := month.Offset(-1)
	hist, err := s.history(ctx, distribution.LookbackMonths(prevMonth, stored.distributions), accounts, stored.overrides)
	if err != nil {
		return err
	}
	hist[prevMonth.String()] = previous.Clone()

	s.engine.Apply(current, stored.distributions, hist, month)
	s.engine.Apply(previous, stored.distributions, hist, prevMonth)
	return nil
}

// history loads undistributed groups for months, preferring stored
// snapshots and classifying from the ledger otherwise. Nothing is written.
func (s *ReportService) history(ctx context.Context, months []core.MonthKey, accounts core.AccountTable, overrides core.OverrideTable) (core.HistoricalSnapshots, error) {
	var mu sync.Mutex
	out := make(core.HistoricalSnapshots, len(months)+1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(historyFetchLimit)
	for _, m := range months {
		g.Go(func() error {
			groups, ok, err := s.docs.Snapshots.LoadSnapshot(gctx, m)
			if err != nil {
				return fmt.Errorf("load snapshot %s: %w", m, err)
			}
			if !ok {
				bills, err := s.source.BillLines(gctx, m.Range())
				if err != nil {
					return fmt.Errorf("fetch bill lines %s: %w", m, err)
				}
				groups = s.classifier.Classify(bills, accounts, overrides).Groups
			}
			mu.Lock()
			out[m.String()] = groups
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ReportService) fetch(ctx context.Context, r core.DateRange) (periodData, error) {
	var d periodData
	var err error
	if d.bills, err = s.source.BillLines(ctx, r); err != nil {
		return d, fmt.Errorf("fetch bill lines %s: %w", r, err)
	}
	if d.daybook, err = s.source.DaybookLines(ctx, r); err != nil {
		return d, fmt.Errorf("fetch daybook lines %s: %w", r, err)
	}
	if d.invoices, err = s.source.Invoices(ctx, r); err != nil {
		return d, fmt.Errorf("fetch invoices %s: %w", r, err)
	}
	return d, nil
}

func (s *ReportService) loadDecisions(ctx context.Context) (storedDecisions, error) {
	var d storedDecisions
	var err error
	if d.overrides, err = s.docs.Overrides.Load(ctx); err != nil {
		return d, fmt.Errorf("load overrides: %w", err)
	}
	if d.distributions, err = s.docs.Distributions.Load(ctx); err != nil {
		return d, fmt.Errorf("load distributions: %w", err)
	}
	if d.labour, err = s.docs.Labour.Load(ctx); err != nil {
		return d, fmt.Errorf("load labour allocation: %w", err)
	}
	if d.fixed, err = s.docs.FixedCosts.Load(ctx); err != nil {
		return d, fmt.Errorf("load fixed cost allocation: %w", err)
	}
	return d, nil
}

// Classify returns the undistributed classification of one month.
func (s *ReportService) Classify(ctx context.Context, month core.MonthKey) (core.Classification, error) {
	accounts, err := s.source.Accounts(ctx)
	if err != nil {
		return core.Classification{}, fmt.Errorf("fetch accounts: %w", err)
	}
	bills, err := s.source.BillLines(ctx, month.Range())
	if err != nil {
		return core.Classification{}, fmt.Errorf("fetch bill lines %s: %w", month, err)
	}
	overrides, err := s.docs.Overrides.Load(ctx)
	if err != nil {
		return core.Classification{}, fmt.Errorf("load overrides: %w", err)
	}
	return s.classifier.Classify(bills, accounts, overrides), nil
}

// Invalidate drops cached reports and, when the source caches accounts,
// the account table.
func (s *ReportService) Invalidate(ctx context.Context) error {
	if inv, ok := s.source.(interface{ Invalidate() }); ok {
		inv.Invalidate()
	}
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Purge(ctx); err != nil {
		return fmt.Errorf("purge report cache: %w", err)
	}
	return nil
}
