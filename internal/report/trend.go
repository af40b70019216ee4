package report

import "github.com/shopspring/decimal"

type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
	TrendFlat Trend = "flat"
)

var (
	upperBand = decimal.RequireFromString("1.005")
	lowerBand = decimal.RequireFromString("0.995")
)

// TrendOf compares curr against prev with a half-percent dead band.
func TrendOf(curr, prev decimal.Decimal) Trend {
	switch {
	case curr.GreaterThan(prev.Mul(upperBand)):
		return TrendUp
	case curr.LessThan(prev.Mul(lowerBand)):
		return TrendDown
	default:
		return TrendFlat
	}
}

// DeltaPercent returns the change from prev to curr in percent, zero when
// prev is zero.
func DeltaPercent(curr, prev decimal.Decimal) decimal.Decimal {
	if prev.IsZero() {
		return decimal.Zero
	}
	return curr.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100))
}
