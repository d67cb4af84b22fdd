package models

import "github.com/shopspring/decimal"

// LotSize holds the LOT_SIZE filter of a symbol
type LotSize struct {
	MinQty   decimal.Decimal
	MaxQty   decimal.Decimal
	StepSize decimal.Decimal
}

// IsDust reports whether qty is below the smallest tradeable quantity
func (l LotSize) IsDust(qty decimal.Decimal) bool {
	return qty.LessThan(l.MinQty)
}

// Adjust truncates qty to the given decimal places and aligns it down to the
// step size. The result never exceeds qty.
func (l LotSize) Adjust(qty decimal.Decimal, places int32) decimal.Decimal {
	adjusted := qty.Truncate(places)
	if l.StepSize.IsPositive() {
		adjusted = adjusted.Div(l.StepSize).Floor().Mul(l.StepSize)
	}
	if l.MaxQty.IsPositive() && adjusted.GreaterThan(l.MaxQty) {
		adjusted = l.MaxQty
	}
	return adjusted
}
