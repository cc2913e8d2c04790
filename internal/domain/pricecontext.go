package domain

import "github.com/shopspring/decimal"

// PriceContext carries the market price context for a single coin:
// the current price from the bulk ticker snapshot and the past close
// for each lookback window. Missing data is represented by nil.
type PriceContext struct {
	Current *decimal.Decimal
	Closes  map[string]*decimal.Decimal
}

// WindowChange is the ROI movement over one lookback window.
type WindowChange struct {
	UnleveragedNow  decimal.Decimal
	UnleveragedPast decimal.Decimal
	Delta           decimal.Decimal
	LeveragedNow    decimal.Decimal
	LeveragedDelta  decimal.Decimal
}
