package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// LineRef is a line as recorded inside a category.
type LineRef struct {
	ID           string          `json:"id"`
	SupplierName string          `json:"supplierName"`
	Amount       decimal.Decimal `json:"amount"`
	Date         string          `json:"date"`
	// Carried marks a share of a cost incurred in an earlier month.
	Carried bool `json:"carried,omitempty"`
}

// CategoryTotals keeps Total equal to the sum of Lines.
type CategoryTotals struct {
	Total        decimal.Decimal `json:"total"`
	Lines        []LineRef       `json:"lines"`
	Months       int             `json:"months,omitempty"`
	HasCarryOver bool            `json:"hasCarryOver,omitempty"`
}

// Add appends a line and updates the running total.
func (c *CategoryTotals) Add(ref LineRef) {
	c.Total = c.Total.Add(ref.Amount)
	c.Lines = append(c.Lines, ref)
}

func (c *CategoryTotals) Clone() *CategoryTotals {
	out := *c
	out.Lines = append([]LineRef(nil), c.Lines...)
	return &out
}

// Share describes how a group was derived from a raw total by an allocation.
type Share struct {
	RawTotal  decimal.Decimal `json:"rawTotal"`
	Deduction decimal.Decimal `json:"deduction"`
	Percent   float64         `json:"percent"`
}

// CostGroup is a top-level bucket. Total is always re-derived by Recompute.
type CostGroup struct {
	Key        string                     `json:"key"`
	Label      string                     `json:"label"`
	Icon       string                     `json:"icon,omitempty"`
	Total      decimal.Decimal            `json:"total"`
	Categories map[string]*CategoryTotals `json:"categories"`
	Share      *Share                     `json:"share,omitempty"`
}

func NewCostGroup(key, label, icon string) *CostGroup {
	return &CostGroup{
		Key:        key,
		Label:      label,
		Icon:       icon,
		Categories: make(map[string]*CategoryTotals),
	}
}

// Category returns the named category, creating it when absent.
func (g *CostGroup) Category(name string) *CategoryTotals {
	if g.Categories == nil {
		g.Categories = make(map[string]*CategoryTotals)
	}
	c, ok := g.Categories[name]
	if !ok {
		c = &CategoryTotals{Lines: []LineRef{}}
		g.Categories[name] = c
	}
	return c
}

// Recompute sets Total to the sum of category totals.
func (g *CostGroup) Recompute() {
	total := decimal.Zero
	for _, c := range g.Categories {
		total = total.Add(c.Total)
	}
	g.Total = total
}

// CategoryNames returns the category names in sorted order.
func (g *CostGroup) CategoryNames() []string {
	names := make([]string, 0, len(g.Categories))
	for name := range g.Categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (g *CostGroup) Clone() *CostGroup {
	out := *g
	out.Categories = make(map[string]*CategoryTotals, len(g.Categories))
	for name, c := range g.Categories {
		out.Categories[name] = c.Clone()
	}
	if g.Share != nil {
		share := *g.Share
		out.Share = &share
	}
	return &out
}

// Groups maps a group key to its cost group.
type Groups map[string]*CostGroup

func (gs Groups) Total() decimal.Decimal {
	total := decimal.Zero
	for _, g := range gs {
		total = total.Add(g.Total)
	}
	return total
}

// TotalOf sums the listed groups, skipping absent keys.
func (gs Groups) TotalOf(keys []string) decimal.Decimal {
	total := decimal.Zero
	for _, k := range keys {
		if g, ok := gs[k]; ok {
			total = total.Add(g.Total)
		}
	}
	return total
}

func (gs Groups) Clone() Groups {
	out := make(Groups, len(gs))
	for k, g := range gs {
		out[k] = g.Clone()
	}
	return out
}

// UncategorizedLine is a line no rule or override could place.
type UncategorizedLine struct {
	ID           string          `json:"id"`
	SupplierName string          `json:"supplierName"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	Date         string          `json:"date"`
	Suggestion   string          `json:"suggestion,omitempty"`
}

// IgnoredSummary accounts for lines excluded by the ignore set or prefixes.
type IgnoredSummary struct {
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// Classification is the result of one classifier pass.
type Classification struct {
	Groups        Groups              `json:"groups"`
	Uncategorized []UncategorizedLine `json:"uncategorized"`
	Ignored       IgnoredSummary      `json:"ignored"`
}

func (c Classification) UncategorizedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, u := range c.Uncategorized {
		total = total.Add(u.Amount)
	}
	return total
}

// HistoricalSnapshots maps "YYYY-MM" to the classified groups of that month.
type HistoricalSnapshots map[string]Groups

// CategorizedTotal sums every group total.
func (c Classification) CategorizedTotal() decimal.Decimal {
	return c.Groups.Total()
}

// Revenue holds per-stream revenue for one period. Total also includes
// invoices that could not be attributed to a stream.
type Revenue struct {
	Streams map[string]decimal.Decimal `json:"streams"`
	Total   decimal.Decimal            `json:"total"`
}

// ForStreams sums the listed streams; unknown streams count as zero.
func (r Revenue) ForStreams(streams []string) decimal.Decimal {
	total := decimal.Zero
	for _, s := range streams {
		total = total.Add(r.Streams[s])
	}
	return total
}
