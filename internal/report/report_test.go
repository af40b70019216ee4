package report

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bizreview/internal/core"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func equalAll(t *testing.T, name string, got []decimal.Decimal, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: got %d buckets, want %d", name, len(got), len(want))
	}
	for i, w := range want {
		if !got[i].Equal(dec(w)) {
			t.Fatalf("%s[%d] = %s, want %s", name, i, got[i], w)
		}
	}
}

func TestBuildCashflowMonthly(t *testing.T) {
	revenueIDs := map[string]string{"acc-cafe": "cafe"}
	daybook := []core.DaybookLine{
		{AccountID: "acc-cafe", Side: core.SideCredit, Amount: dec("100"), Date: "2025-03-01"},
		{AccountID: "acc-cafe", Side: core.SideDebit, Amount: dec("999"), Date: "2025-03-01"},
		{AccountID: "acc-other", Side: core.SideCredit, Amount: dec("999"), Date: "2025-03-01"},
		{AccountID: "acc-cafe", Side: core.SideCredit, Amount: dec("50"), Date: "2025-03-31"},
	}
	invoices := []core.Invoice{
		{Amount: dec("200"), Date: "2025-03-08T10:00:00Z"},
		{Amount: dec("999"), Date: ""},
	}
	bills := []core.LedgerLine{
		{Amount: dec("80"), Date: "2025-03-15"},
		{Amount: dec("20"), Date: "2025-03-29"},
	}

	cf := BuildCashflow(core.Monthly, daybook, bills, invoices, revenueIDs)

	if len(cf.Labels) != 5 || cf.Labels[0] != "Wk 1" {
		t.Fatalf("labels = %v", cf.Labels)
	}
	equalAll(t, "inflow", cf.Inflow, "100", "200", "0", "0", "50")
	equalAll(t, "outflow", cf.Outflow, "0", "0", "80", "0", "20")
	equalAll(t, "net", cf.Net, "100", "200", "-80", "0", "30")

	k := cf.KPIs(core.MonthKey{Year: 2025, Month: 3}.Range())
	if !k.TotalInflow.Equal(dec("350")) || !k.TotalOutflow.Equal(dec("100")) || !k.NetCashflow.Equal(dec("250")) {
		t.Fatalf("kpis = %+v", k)
	}
	if !k.DailyBurn.Mul(dec("31")).Round(6).Equal(dec("100")) {
		t.Fatalf("daily burn = %s", k.DailyBurn)
	}
}

func TestBuildCashflowBuckets(t *testing.T) {
	bills := []core.LedgerLine{
		{Amount: dec("1"), Date: "2025-03-10"}, // Monday
		{Amount: dec("2"), Date: "2025-03-16"}, // Sunday
		{Amount: dec("3"), Date: "2025-12-01"},
	}
	weekly := BuildCashflow(core.Weekly, nil, bills, nil, nil)
	if len(weekly.Labels) != 7 {
		t.Fatalf("weekly labels = %v", weekly.Labels)
	}
	if !weekly.Outflow[0].Equal(dec("4")) || !weekly.Outflow[6].Equal(dec("2")) {
		t.Fatalf("weekly outflow = %v", weekly.Outflow)
	}

	yearly := BuildCashflow(core.Yearly, nil, bills, nil, nil)
	if len(yearly.Labels) != 12 || !yearly.Outflow[2].Equal(dec("3")) || !yearly.Outflow[11].Equal(dec("3")) {
		t.Fatalf("yearly outflow = %v", yearly.Outflow)
	}
}

func TestTrendOf(t *testing.T) {
	tests := []struct {
		curr, prev string
		want       Trend
	}{
		{"1010", "1000", TrendUp},
		{"1004", "1000", TrendFlat},
		{"996", "1000", TrendFlat},
		{"990", "1000", TrendDown},
		{"0", "0", TrendFlat},
		{"10", "0", TrendUp},
		{"-100", "-50", TrendDown},
	}
	for _, tt := range tests {
		if got := TrendOf(dec(tt.curr), dec(tt.prev)); got != tt.want {
			t.Fatalf("TrendOf(%s, %s) = %s, want %s", tt.curr, tt.prev, got, tt.want)
		}
	}
	if got := DeltaPercent(dec("150"), dec("100")); !got.Equal(dec("50")) {
		t.Fatalf("DeltaPercent = %s", got)
	}
	if got := DeltaPercent(dec("150"), decimal.Zero); !got.IsZero() {
		t.Fatalf("DeltaPercent with zero prev = %s", got)
	}
}

func group(key, label, total string) *core.CostGroup {
	g := core.NewCostGroup(key, label, "")
	if total != "0" {
		g.Category(label).Add(core.LineRef{ID: key, Amount: dec(total)})
	}
	g.Recompute()
	return g
}

func TestBuild(t *testing.T) {
	march := core.MonthKey{Year: 2025, Month: 3}
	in := Input{
		Period:         core.Monthly,
		Tab:            "cafe",
		Label:          "This Month",
		Range:          march.Range(),
		TabRevenue:     dec("10000"),
		PrevTabRevenue: dec("8000"),
		Groups: core.Groups{
			"cafe":   group("cafe", "Café Costs", "3000"),
			"fixed":  group("fixed", "Fixed Costs", "1000"),
			"other":  group("other", "Other", "0"),
			"coffee": group("coffee", "Coffee", "999"),
		},
		PrevGroups: core.Groups{
			"cafe":  group("cafe", "Café Costs", "2000"),
			"fixed": group("fixed", "Fixed Costs", "1000"),
		},
		GroupOrder: []string{"cafe", "fixed", "other", "labour"},
	}

	r := Build(in)

	if !r.TotalCosts.Equal(dec("4000")) || !r.PrevTotalCosts.Equal(dec("3000")) {
		t.Fatalf("costs = %s / %s", r.TotalCosts, r.PrevTotalCosts)
	}
	if !r.GrossProfit.Equal(dec("6000")) || !r.PrevGrossProfit.Equal(dec("5000")) {
		t.Fatalf("profit = %s / %s", r.GrossProfit, r.PrevGrossProfit)
	}
	if !r.ProfitMargin.Equal(dec("60")) {
		t.Fatalf("margin = %s", r.ProfitMargin)
	}
	if r.RevenueTrend != TrendUp || r.CostTrend != TrendUp || r.ProfitTrend != TrendUp {
		t.Fatalf("trends = %s %s %s", r.RevenueTrend, r.CostTrend, r.ProfitTrend)
	}
	if len(r.Groups) != 3 || r.Groups[0].Key != "cafe" || !r.Groups[0].DeltaPct.Equal(dec("50")) {
		t.Fatalf("groups = %+v", r.Groups)
	}

	wantLabels := []string{"Revenue", "Café Costs", "Fixed Costs", "Gross Profit"}
	if len(r.Waterfall.Labels) != len(wantLabels) {
		t.Fatalf("waterfall = %v", r.Waterfall.Labels)
	}
	for i, l := range wantLabels {
		if r.Waterfall.Labels[i] != l {
			t.Fatalf("waterfall = %v", r.Waterfall.Labels)
		}
	}
	equalAll(t, "waterfall", r.Waterfall.Values, "10000", "-3000", "-1000", "6000")

	if r.StartDate != "2025-03-01" || r.EndDate != "2025-03-31" {
		t.Fatalf("range = %s..%s", r.StartDate, r.EndDate)
	}
	if r.Uncategorized == nil || r.Distributions == nil {
		t.Fatal("empty collections should serialize as empty, not null")
	}
}

func TestBuildNoRevenue(t *testing.T) {
	r := Build(Input{
		Period:     core.Weekly,
		Range:      core.RangeFor(core.Weekly, 0, time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC)),
		Groups:     core.Groups{"fixed": group("fixed", "Fixed Costs", "500")},
		GroupOrder: []string{"fixed"},
	})
	if !r.ProfitMargin.IsZero() {
		t.Fatalf("margin = %s", r.ProfitMargin)
	}
	if !r.GrossProfit.Equal(dec("-500")) || r.ProfitTrend != TrendDown {
		t.Fatalf("profit = %s trend %s", r.GrossProfit, r.ProfitTrend)
	}
}
