package report

import (
	"github.com/shopspring/decimal"

	"bizreview/internal/core"
)

var (
	weekdayLabels = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}
	weekLabels    = []string{"Wk 1", "Wk 2", "Wk 3", "Wk 4", "Wk 5"}
	monthLabels   = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}
)

// Cashflow is inflow and outflow bucketed over a period: days of the week,
// weeks of the month, or months of the year.
type Cashflow struct {
	Labels  []string          `json:"labels"`
	Inflow  []decimal.Decimal `json:"inflow"`
	Outflow []decimal.Decimal `json:"outflow"`
	Net     []decimal.Decimal `json:"net"`
}

type CashflowKPIs struct {
	TotalInflow  decimal.Decimal `json:"totalInflow"`
	TotalOutflow decimal.Decimal `json:"totalOutflow"`
	NetCashflow  decimal.Decimal `json:"netCashflow"`
	DailyBurn    decimal.Decimal `json:"dailyBurn"`
}

// BuildCashflow buckets credit journal lines on revenue accounts and all
// invoices as inflow, and bill lines as outflow. Undated lines are skipped.
func BuildCashflow(p core.Period, daybook []core.DaybookLine, bills []core.LedgerLine, invoices []core.Invoice, revenueIDs map[string]string) Cashflow {
	labels, bucket := bucketer(p)
	n := len(labels)
	cf := Cashflow{
		Labels:  append([]string(nil), labels...),
		Inflow:  zeros(n),
		Outflow: zeros(n),
		Net:     zeros(n),
	}

	for _, l := range daybook {
		if l.Side != core.SideCredit {
			continue
		}
		if _, ok := revenueIDs[l.AccountID]; !ok {
			continue
		}
		if b, ok := bucket(l.Date); ok {
			cf.Inflow[b] = cf.Inflow[b].Add(l.Amount)
		}
	}
	for _, inv := range invoices {
		if b, ok := bucket(inv.Date); ok {
			cf.Inflow[b] = cf.Inflow[b].Add(inv.Amount)
		}
	}
	for _, l := range bills {
		if b, ok := bucket(l.Date); ok {
			cf.Outflow[b] = cf.Outflow[b].Add(l.Amount)
		}
	}
	for i := range cf.Net {
		cf.Net[i] = cf.Inflow[i].Sub(cf.Outflow[i])
	}
	return cf
}

// KPIs totals the buckets; daily burn spreads outflow over the range.
func (cf Cashflow) KPIs(r core.DateRange) CashflowKPIs {
	k := CashflowKPIs{TotalInflow: sum(cf.Inflow), TotalOutflow: sum(cf.Outflow)}
	k.NetCashflow = k.TotalInflow.Sub(k.TotalOutflow)
	if days := r.Days(); days > 0 {
		k.DailyBurn = k.TotalOutflow.Div(decimal.NewFromInt(int64(days)))
	}
	return k
}

func bucketer(p core.Period) ([]string, func(string) (int, bool)) {
	switch p {
	case core.Weekly:
		return weekdayLabels, func(s string) (int, bool) {
			d, err := core.ParseDate(s)
			if err != nil {
				return 0, false
			}
			return (int(d.Weekday()) + 6) % 7, true
		}
	case core.Yearly:
		return monthLabels, func(s string) (int, bool) {
			d, err := core.ParseDate(s)
			if err != nil {
				return 0, false
			}
			return int(d.Month()) - 1, true
		}
	default:
		return weekLabels, func(s string) (int, bool) {
			d, err := core.ParseDate(s)
			if err != nil {
				return 0, false
			}
			return min((d.Day()-1)/7, 4), true
		}
	}
}

func zeros(n int) []decimal.Decimal {
	out := make([]decimal.Decimal, n)
	for i := range out {
		out[i] = decimal.Zero
	}
	return out
}

func sum(values []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
