// Package sheets exports monthly cost totals to spreadsheets.
package sheets

import (
	"context"
	"sort"

	"bizreview/internal/core"
)

// Header is the first row of every export sheet.
var Header = []string{"Month", "Group", "Category", "Total"}

// ReportExporter receives one month's classified groups. Exporting the
// same month twice replaces the earlier rows.
type ReportExporter interface {
	ExportMonth(ctx context.Context, month core.MonthKey, groups core.Groups) error
}

// Rows flattens groups into [month, group, category, total] rows, ordered
// by group key then category name. Empty categories are skipped.
func Rows(month core.MonthKey, groups core.Groups) [][]string {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	m := month.String()
	var rows [][]string
	for _, k := range keys {
		g := groups[k]
		if g == nil {
			continue
		}
		for _, name := range g.CategoryNames() {
			c := g.Categories[name]
			if c == nil || c.Total.IsZero() {
				continue
			}
			rows = append(rows, []string{m, g.Key, name, c.Total.StringFixed(2)})
		}
	}
	return rows
}
