// Package distribution spreads a category's monthly cost evenly over
// several consecutive months.
//
// For a rule of M months the current month shows 1/M of its own cost plus
// 1/M of the same category's cost in each of the M-1 preceding months,
// taken from already-classified snapshots. Summed over M consecutive months
// a single cost is reported exactly once.
package distribution

import (
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"bizreview/internal/core"
)

// MaxMonths caps a spread regardless of what a stored rule says.
const MaxMonths = 24

// Engine applies distribution rules. It keeps no state between calls.
type Engine struct {
	logger *slog.Logger
}

func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Apply rewrites the categories of current that have an active rule.
// Historical snapshots are read, never modified. Labour is exempt.
func (e *Engine) Apply(current core.Groups, rules core.DistributionTable, historical core.HistoricalSnapshots, month core.MonthKey) {
	if len(rules) == 0 {
		return
	}

	touched := make(map[string]*core.CostGroup)
	for _, key := range sortedKeys(rules) {
		months := rules[key].Months
		if months <= 1 {
			continue
		}
		if months > MaxMonths {
			months = MaxMonths
		}
		groupKey, category, ok := core.SplitDistributionKey(key)
		if !ok {
			e.logger.Debug("skipping malformed distribution key", "key", key)
			continue
		}
		if groupKey == core.LabourGroupKey {
			continue
		}
		group, ok := current[groupKey]
		if !ok || group == nil {
			continue
		}

		divisor := decimal.NewFromInt(int64(months))
		spread := &core.CategoryTotals{Lines: []core.LineRef{}, Months: months}
		found := false

		if cat, ok := group.Categories[category]; ok {
			found = true
			for _, l := range cat.Lines {
				spread.Add(share(l, divisor, false))
			}
		}

		for i := 1; i < months; i++ {
			hk := month.Offset(-i).String()
			hist, ok := historical[hk][groupKey]
			if !ok || hist == nil {
				continue
			}
			cat, ok := hist.Categories[category]
			if !ok {
				continue
			}
			found = true
			for _, l := range cat.Lines {
				spread.Add(share(l, divisor, true))
				spread.HasCarryOver = true
			}
		}

		if !found {
			continue
		}
		group.Categories[category] = spread
		touched[groupKey] = group
	}

	for _, g := range touched {
		g.Recompute()
	}
}

// LookbackMonths lists the months whose snapshots Apply may read for month.
func LookbackMonths(month core.MonthKey, rules core.DistributionTable) []core.MonthKey {
	max := 1
	for key, rule := range rules {
		g, _, ok := core.SplitDistributionKey(key)
		if !ok || g == core.LabourGroupKey {
			continue
		}
		if rule.Months > max {
			max = rule.Months
		}
	}
	if max > MaxMonths {
		max = MaxMonths
	}
	out := make([]core.MonthKey, 0, max-1)
	for i := 1; i < max; i++ {
		out = append(out, month.Offset(-i))
	}
	return out
}

// LookbackKeys is LookbackMonths rendered as snapshot keys.
func LookbackKeys(month core.MonthKey, rules core.DistributionTable) []string {
	months := LookbackMonths(month, rules)
	keys := make([]string, len(months))
	for i, m := range months {
		keys[i] = m.String()
	}
	return keys
}

// Active reports whether any rule spreads over more than one month.
func Active(rules core.DistributionTable) bool {
	return len(LookbackMonths(core.MonthKey{Year: 2000, Month: 1}, rules)) > 0
}

func share(l core.LineRef, divisor decimal.Decimal, carried bool) core.LineRef {
	l.Amount = l.Amount.Div(divisor)
	l.Carried = carried
	return l
}

func sortedKeys(rules core.DistributionTable) []string {
	keys := make([]string, 0, len(rules))
	for k := range rules {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
