package report

import (
	"github.com/shopspring/decimal"

	"bizreview/internal/core"
)

// Waterfall walks from revenue through each cost group to gross profit.
type Waterfall struct {
	Labels []string          `json:"labels"`
	Values []decimal.Decimal `json:"values"`
}

// BuildWaterfall lists groups in the given order, skipping groups without
// a positive total. Costs are negated.
func BuildWaterfall(revenue decimal.Decimal, groups core.Groups, order []string, profit decimal.Decimal) Waterfall {
	w := Waterfall{
		Labels: []string{"Revenue"},
		Values: []decimal.Decimal{revenue},
	}
	for _, key := range order {
		g, ok := groups[key]
		if !ok || !g.Total.IsPositive() {
			continue
		}
		w.Labels = append(w.Labels, g.Label)
		w.Values = append(w.Values, g.Total.Neg())
	}
	w.Labels = append(w.Labels, "Gross Profit")
	w.Values = append(w.Values, profit)
	return w
}
