// Package revenue sums credit-side journal lines and invoices into the
// configured revenue streams.
package revenue

import (
	"github.com/shopspring/decimal"

	"bizreview/internal/core"
	"bizreview/internal/rules"
)

// Aggregator maps revenue account ids to streams. It is stateless.
type Aggregator struct {
	rules *rules.RuleTable
}

func NewAggregator(rt *rules.RuleTable) *Aggregator {
	return &Aggregator{rules: rt}
}

// AccountIDs returns the account ids of every configured revenue account
// present in the account table, mapped to their stream.
func (a *Aggregator) AccountIDs(accounts core.AccountTable) map[string]string {
	out := make(map[string]string)
	for _, s := range a.rules.RevenueStreams() {
		if acc, ok := accounts[s.Account]; ok && acc.ID != "" {
			out[acc.ID] = s.Stream
		}
	}
	return out
}

// Aggregate returns per-stream revenue. Every configured stream is present,
// zero when nothing was booked to it. Invoices whose account number is not a
// revenue code count toward the total only.
func (a *Aggregator) Aggregate(daybook []core.DaybookLine, invoices []core.Invoice, accounts core.AccountTable) core.Revenue {
	out := core.Revenue{Streams: make(map[string]decimal.Decimal)}
	for _, s := range a.rules.RevenueStreams() {
		out.Streams[s.Stream] = decimal.Zero
	}

	byID := a.AccountIDs(accounts)
	for _, l := range daybook {
		if l.Side != core.SideCredit {
			continue
		}
		stream, ok := byID[l.AccountID]
		if !ok {
			continue
		}
		out.Streams[stream] = out.Streams[stream].Add(l.Amount)
		out.Total = out.Total.Add(l.Amount)
	}

	for _, inv := range invoices {
		if stream, ok := a.rules.RevenueStream(inv.AccountNo); ok {
			out.Streams[stream] = out.Streams[stream].Add(inv.Amount)
		}
		out.Total = out.Total.Add(inv.Amount)
	}
	return out
}

// ForTab returns the revenue of the tab's streams. Unknown tabs have none.
func (a *Aggregator) ForTab(r core.Revenue, tab string) decimal.Decimal {
	t, ok := a.rules.Tab(tab)
	if !ok {
		return decimal.Zero
	}
	return r.ForStreams(t.Revenue)
}
