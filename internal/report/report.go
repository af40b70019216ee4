// Package report assembles the profit and loss view of one tab and period
// from already classified, distributed and allocated cost groups.
package report

import (
	"github.com/shopspring/decimal"

	"bizreview/internal/core"
)

// Input carries everything the report derives from. Groups and PrevGroups
// must already hold the tab's labour and fixed-cost shares.
type Input struct {
	Period         core.Period
	Tab            string
	Offset         int
	Label          string
	Range          core.DateRange
	Revenue        core.Revenue
	PrevRevenue    core.Revenue
	TabRevenue     decimal.Decimal
	PrevTabRevenue decimal.Decimal
	Groups         core.Groups
	PrevGroups     core.Groups
	GroupOrder     []string
	Uncategorized  []core.UncategorizedLine
	Ignored        core.IgnoredSummary
	Cashflow       Cashflow
	Categories     []string
	Distributions  core.DistributionTable
	// LabourProjected is last period's raw labour total, set only for the
	// current month while this month's payroll is usually not booked yet.
	LabourProjected *decimal.Decimal
}

// GroupLine is one cost group row of the report.
type GroupLine struct {
	Key        string                          `json:"key"`
	Label      string                          `json:"label"`
	Icon       string                          `json:"icon,omitempty"`
	Total      decimal.Decimal                 `json:"total"`
	PrevTotal  decimal.Decimal                 `json:"prevTotal"`
	DeltaPct   decimal.Decimal                 `json:"deltaPct"`
	Categories map[string]*core.CategoryTotals `json:"categories"`
	Share      *core.Share                     `json:"share,omitempty"`
}

type Report struct {
	Period    core.Period `json:"period"`
	Tab       string      `json:"tab"`
	Offset    int         `json:"offset"`
	Label     string      `json:"label"`
	StartDate string      `json:"startDate"`
	EndDate   string      `json:"endDate"`

	Revenue           core.Revenue    `json:"revenue"`
	PrevRevenue       core.Revenue    `json:"prevRevenue"`
	ActiveRevenue     decimal.Decimal `json:"activeRevenue"`
	PrevActiveRevenue decimal.Decimal `json:"prevActiveRevenue"`
	RevenueTrend      Trend           `json:"revenueTrend"`

	Groups         []GroupLine     `json:"groups"`
	TotalCosts     decimal.Decimal `json:"totalCosts"`
	PrevTotalCosts decimal.Decimal `json:"prevTotalCosts"`
	CostTrend      Trend           `json:"costTrend"`

	GrossProfit     decimal.Decimal `json:"grossProfit"`
	PrevGrossProfit decimal.Decimal `json:"prevGrossProfit"`
	ProfitMargin    decimal.Decimal `json:"profitMargin"`
	ProfitTrend     Trend           `json:"profitTrend"`

	Uncategorized   []core.UncategorizedLine `json:"uncategorized"`
	Ignored         core.IgnoredSummary      `json:"ignored"`
	Waterfall       Waterfall                `json:"waterfall"`
	Cashflow        Cashflow                 `json:"cashflow"`
	CashflowKPIs    CashflowKPIs             `json:"cashflowKpis"`
	Categories      []string                 `json:"categories"`
	Distributions   core.DistributionTable   `json:"distributions"`
	LabourProjected *decimal.Decimal         `json:"labourProjected,omitempty"`
}

// Build derives totals, trends and the waterfall. Only groups named in
// GroupOrder count toward costs.
func Build(in Input) *Report {
	r := &Report{
		Period:            in.Period,
		Tab:               in.Tab,
		Offset:            in.Offset,
		Label:             in.Label,
		StartDate:         in.Range.StartDate(),
		EndDate:           in.Range.EndDate(),
		Revenue:           in.Revenue,
		PrevRevenue:       in.PrevRevenue,
		ActiveRevenue:     in.TabRevenue,
		PrevActiveRevenue: in.PrevTabRevenue,
		RevenueTrend:      TrendOf(in.TabRevenue, in.PrevTabRevenue),
		Groups:            []GroupLine{},
		TotalCosts:        in.Groups.TotalOf(in.GroupOrder),
		PrevTotalCosts:    in.PrevGroups.TotalOf(in.GroupOrder),
		Uncategorized:     in.Uncategorized,
		Ignored:           in.Ignored,
		Cashflow:          in.Cashflow,
		CashflowKPIs:      in.Cashflow.KPIs(in.Range),
		Categories:        in.Categories,
		Distributions:     in.Distributions,
		LabourProjected:   in.LabourProjected,
	}
	if r.Uncategorized == nil {
		r.Uncategorized = []core.UncategorizedLine{}
	}
	if r.Distributions == nil {
		r.Distributions = core.DistributionTable{}
	}

	for _, key := range in.GroupOrder {
		g, ok := in.Groups[key]
		if !ok {
			continue
		}
		prev := decimal.Zero
		if p, ok := in.PrevGroups[key]; ok {
			prev = p.Total
		}
		r.Groups = append(r.Groups, GroupLine{
			Key:        key,
			Label:      g.Label,
			Icon:       g.Icon,
			Total:      g.Total,
			PrevTotal:  prev,
			DeltaPct:   DeltaPercent(g.Total, prev),
			Categories: g.Categories,
			Share:      g.Share,
		})
	}

	r.CostTrend = TrendOf(r.TotalCosts, r.PrevTotalCosts)
	r.GrossProfit = r.ActiveRevenue.Sub(r.TotalCosts)
	r.PrevGrossProfit = r.PrevActiveRevenue.Sub(r.PrevTotalCosts)
	r.ProfitTrend = TrendOf(r.GrossProfit, r.PrevGrossProfit)
	if r.ActiveRevenue.IsPositive() {
		r.ProfitMargin = core.Percent(r.GrossProfit, r.ActiveRevenue)
	}
	r.Waterfall = BuildWaterfall(r.ActiveRevenue, in.Groups, in.GroupOrder, r.GrossProfit)
	return r
}
