// Package categorize assigns ledger lines to cost groups and categories.
package categorize

import (
	"log/slog"

	"bizreview/internal/core"
	"bizreview/internal/rules"
)

// Classifier applies a shared RuleTable. It holds no per-call state and is
// safe for concurrent use.
type Classifier struct {
	rules  *rules.RuleTable
	logger *slog.Logger
}

// NewClassifier returns a classifier over the given rule table. A nil
// logger falls back to slog.Default().
func NewClassifier(rt *rules.RuleTable, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{rules: rt, logger: logger}
}

// Rules exposes the rule table the classifier was built with.
func (c *Classifier) Rules() *rules.RuleTable {
	return c.rules
}

// Classify places every non-zero line in exactly one of: a category, the
// uncategorized list, or the ignored summary. Input lines are not modified.
//
// Priority per line: zero amount, ignored account, override, supplier-split
// account, account rule, uncategorized.
func (c *Classifier) Classify(lines []core.LedgerLine, accounts core.AccountTable, overrides core.OverrideTable) core.Classification {
	result := core.Classification{
		Groups:        c.rules.NewGroups(),
		Uncategorized: []core.UncategorizedLine{},
	}
	codeByID := accounts.CodeByID()

	for _, line := range lines {
		if line.Amount.IsZero() {
			continue
		}

		code := codeByID[line.AccountID]
		supplier := line.Supplier()

		if c.rules.IsIgnored(code) {
			result.Ignored.Count++
			result.Ignored.Total = result.Ignored.Total.Add(line.Amount)
			continue
		}

		if category, ok := overrides[line.ID]; ok && category != "" {
			c.record(result.Groups, c.rules.GroupForCategory(category), category, line, supplier)
			continue
		}

		if group, matcher, ok := c.rules.SplitAccount(code); ok {
			if category, ok := matcher.Match(supplier); ok {
				c.record(result.Groups, group, category, line, supplier)
			} else {
				result.Uncategorized = append(result.Uncategorized, c.uncategorized(line, supplier))
			}
			continue
		}

		if group, category, ok := c.rules.AccountRule(code); ok {
			if label, ok := c.rules.SubLabel(code, supplier); ok {
				category = label
			}
			c.record(result.Groups, group, category, line, supplier)
			continue
		}

		result.Uncategorized = append(result.Uncategorized, c.uncategorized(line, supplier))
	}

	for _, g := range result.Groups {
		g.Recompute()
	}
	return result
}

func (c *Classifier) record(groups core.Groups, groupKey, category string, line core.LedgerLine, supplier string) {
	g, ok := groups[groupKey]
	if !ok {
		// Only reachable with a default group missing from a hand-built table.
		def, _ := c.rules.Group(core.DefaultGroupKey)
		g = core.NewCostGroup(groupKey, def.Label, def.Icon)
		groups[groupKey] = g
	}
	g.Category(category).Add(core.LineRef{
		ID:           line.ID,
		SupplierName: supplier,
		Amount:       line.Amount,
		Date:         line.Date,
	})
}

func (c *Classifier) uncategorized(line core.LedgerLine, supplier string) core.UncategorizedLine {
	u := core.UncategorizedLine{
		ID:           line.ID,
		SupplierName: supplier,
		Amount:       line.Amount,
		Description:  line.Description,
		Date:         line.Date,
	}
	if s, ok := c.rules.Suggest(supplier); ok {
		u.Suggestion = s
	}
	c.logger.Debug("line left uncategorized",
		"line_id", line.ID,
		"account_id", line.AccountID,
		"supplier", supplier,
		"suggestion", u.Suggestion)
	return u
}
