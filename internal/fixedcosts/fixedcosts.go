// Package fixedcosts shares the fixed-cost group between tabs.
//
// Fixed costs are booked once for the whole business; each tab reports
// its percentage of them. A default split applies to every month unless a
// month-specific split has been stored.
package fixedcosts

import (
	"fmt"
	"math"

	"bizreview/internal/core"
)

// GroupKey is the cost group the allocation applies to.
const GroupKey = "fixed"

// Allocation maps a tab to its percentage of the fixed costs.
type Allocation struct {
	Tabs map[string]float64 `json:"tabs"`
}

// Document is the persisted form: a default plus per-month overrides keyed "YYYY-MM".
type Document struct {
	Default Allocation            `json:"default"`
	Months  map[string]Allocation `json:"months,omitempty"`
}

func DefaultTabs() map[string]float64 {
	return map[string]float64{"cafe": 90, "events": 0, "b2b": 10, "webshop": 0}
}

func DefaultDocument() Document {
	return Document{Default: Allocation{Tabs: DefaultTabs()}, Months: map[string]Allocation{}}
}

// For resolves the allocation of month: built-in defaults, then the stored
// default, then the month override.
func (d Document) For(month core.MonthKey) Allocation {
	tabs := DefaultTabs()
	for k, v := range d.Default.Tabs {
		tabs[k] = v
	}
	if m, ok := d.Months[month.String()]; ok {
		for k, v := range m.Tabs {
			tabs[k] = v
		}
	}
	return Allocation{Tabs: tabs}
}

// Set stores alloc as the default, or for one month when month is non-nil.
func (d *Document) Set(month *core.MonthKey, alloc Allocation) {
	if month == nil {
		d.Default = alloc
		return
	}
	if d.Months == nil {
		d.Months = make(map[string]Allocation)
	}
	d.Months[month.String()] = alloc
}

// Validate requires each share in 0..100 and no more than 100 in total,
// allowing half a point of rounding slack.
func (a Allocation) Validate() error {
	if len(a.Tabs) == 0 {
		return core.NewValidationError("tabs", nil, core.ErrMissingField)
	}
	sum := 0.0
	for tab, p := range a.Tabs {
		if p < 0 || p > 100 || math.IsNaN(p) {
			return core.NewValidationError("tabs."+tab, p, core.ErrInvalidAllocation)
		}
		sum += p
	}
	if sum > 100.5 {
		return core.NewValidationError("tabs", fmt.Sprintf("%.1f", sum), core.ErrInvalidAllocation)
	}
	return nil
}

// Compute returns the tab's share of raw as a new group. Lines and totals
// are scaled, so Total is raw.Total times the share. Categories that scale
// to exactly zero are dropped; credits are kept. raw is not modified.
func Compute(raw *core.CostGroup, alloc Allocation, tab string) *core.CostGroup {
	pct := alloc.Tabs[tab]
	if raw == nil {
		g := core.NewCostGroup(GroupKey, "Fixed Costs", "")
		g.Share = &core.Share{Percent: pct}
		return g
	}

	g := core.NewCostGroup(raw.Key, raw.Label, raw.Icon)
	for name, cat := range raw.Categories {
		scaled := &core.CategoryTotals{
			Lines:        make([]core.LineRef, 0, len(cat.Lines)),
			Months:       cat.Months,
			HasCarryOver: cat.HasCarryOver,
		}
		for _, l := range cat.Lines {
			l.Amount = core.ApplyPercent(l.Amount, pct)
			scaled.Add(l)
		}
		if !scaled.Total.IsZero() {
			g.Categories[name] = scaled
		}
	}
	g.Recompute()
	g.Share = &core.Share{RawTotal: raw.Total, Percent: pct}
	return g
}
