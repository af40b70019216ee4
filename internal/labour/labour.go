// Package labour computes the labour cost group of a tab from the raw
// labour total and a percentage allocation per tab and role.
package labour

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"bizreview/internal/core"
)

// SupplierName labels the synthetic allocation lines.
const SupplierName = "Labour allocation"

// percentTolerance absorbs rounding in user-entered percentages.
const percentTolerance = 0.5

// Allocations splits the labour total first across tabs, then within a tab
// across roles. Deduction is removed from the total before any split.
type Allocations struct {
	Tabs      map[string]float64            `json:"tabs"`
	Roles     map[string]map[string]float64 `json:"roles"`
	Deduction decimal.Decimal               `json:"deduction"`
}

func DefaultAllocations() Allocations {
	return Allocations{
		Tabs: map[string]float64{"cafe": 25, "events": 25, "b2b": 25, "webshop": 25},
		Roles: map[string]map[string]float64{
			"cafe":    {"Operations": 40, "Management": 20, "Production": 20, "Marketing": 10, "Cleaning": 10},
			"events":  {"Operations": 40, "Planning": 30, "Production": 30},
			"b2b":     {"Sales": 40, "Roasting": 30, "Testing": 15, "Packaging": 15},
			"webshop": {"Development": 60, "Packaging/Shipping": 40},
		},
		Deduction: decimal.Zero,
	}
}

// WithDefaults fills every tab and role the stored allocation does not
// mention from DefaultAllocations.
func (a Allocations) WithDefaults() Allocations {
	def := DefaultAllocations()
	out := Allocations{
		Tabs:      def.Tabs,
		Roles:     def.Roles,
		Deduction: a.Deduction,
	}
	for tab, pct := range a.Tabs {
		out.Tabs[tab] = pct
	}
	for tab, roles := range a.Roles {
		merged, ok := out.Roles[tab]
		if !ok {
			merged = make(map[string]float64, len(roles))
			out.Roles[tab] = merged
		}
		for role, pct := range roles {
			merged[role] = pct
		}
	}
	return out
}

// Validate requires non-negative percentages that sum to 100 per level,
// and a non-negative deduction.
func (a Allocations) Validate() error {
	if a.Deduction.IsNegative() {
		return core.NewValidationError("deduction", a.Deduction.String(), core.ErrInvalidAllocation)
	}
	if err := validatePercentages("tabs", a.Tabs); err != nil {
		return err
	}
	for _, tab := range sortedKeys(a.Roles) {
		if err := validatePercentages("roles."+tab, a.Roles[tab]); err != nil {
			return err
		}
	}
	return nil
}

func validatePercentages(field string, pcts map[string]float64) error {
	if len(pcts) == 0 {
		return nil
	}
	sum := 0.0
	for name, p := range pcts {
		if p < 0 || p > 100 || math.IsNaN(p) {
			return core.NewValidationError(field+"."+name, p, core.ErrInvalidAllocation)
		}
		sum += p
	}
	if math.Abs(sum-100) > percentTolerance {
		return core.NewValidationError(field, fmt.Sprintf("%.1f", sum), core.ErrInvalidAllocation)
	}
	return nil
}

// Total sums bill lines and debit-side journal lines booked to accounts
// whose code starts with prefix.
func Total(lines []core.LedgerLine, daybook []core.DaybookLine, accounts core.AccountTable, prefix string) decimal.Decimal {
	ids := accounts.IDsWithPrefix(prefix)
	total := decimal.Zero
	for _, l := range lines {
		if _, ok := ids[l.AccountID]; ok {
			total = total.Add(l.Amount)
		}
	}
	for _, l := range daybook {
		if l.Side != core.SideDebit {
			continue
		}
		if _, ok := ids[l.AccountID]; ok {
			total = total.Add(l.Amount)
		}
	}
	return total
}

// Compute builds the labour group of tab. Each role with a positive share
// gets one category holding one synthetic line.
func Compute(total decimal.Decimal, alloc Allocations, tab, label, icon string) *core.CostGroup {
	net := total.Sub(alloc.Deduction)
	if net.IsNegative() {
		net = decimal.Zero
	}
	tabPct := alloc.Tabs[tab]
	tabTotal := core.ApplyPercent(net, tabPct)

	g := core.NewCostGroup(core.LabourGroupKey, label, icon)
	for _, role := range sortedKeys(alloc.Roles[tab]) {
		amount := core.ApplyPercent(tabTotal, alloc.Roles[tab][role])
		if !amount.IsPositive() {
			continue
		}
		g.Category(role).Add(core.LineRef{
			ID:           "labour-" + tab + "-" + role,
			SupplierName: SupplierName,
			Amount:       amount,
		})
	}
	g.Recompute()
	g.Share = &core.Share{RawTotal: total, Deduction: alloc.Deduction, Percent: tabPct}
	return g
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
