package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// PositionSummary is the numeric view of a single open position, derived
// from the raw account state every poll iteration.
type PositionSummary struct {
	Size       decimal.Decimal
	Entry      *decimal.Decimal
	Unrealized decimal.Decimal
	// Value is |size * entry|, zero when the entry price is unknown.
	Value decimal.Decimal
	// ROI is Unrealized / Value, nil when Value is zero.
	ROI      *decimal.Decimal
	Leverage *decimal.Decimal
}

// NewPositionSummary derives notional value and ROI from the raw fields.
func NewPositionSummary(size decimal.Decimal, entry *decimal.Decimal, unrealized decimal.Decimal, leverage *decimal.Decimal) PositionSummary {
	s := PositionSummary{
		Size:       size,
		Entry:      entry,
		Unrealized: unrealized,
		Leverage:   leverage,
	}

	if entry != nil {
		s.Value = size.Mul(*entry).Abs()
	}
	if !s.Value.IsZero() {
		roi := unrealized.Div(s.Value)
		s.ROI = &roi
	}

	return s
}

// LeveragedROI returns ROI multiplied by leverage, nil when either is unknown.
func (s PositionSummary) LeveragedROI() *decimal.Decimal {
	if s.ROI == nil || s.Leverage == nil {
		return nil
	}
	v := s.ROI.Mul(*s.Leverage)
	return &v
}

// Snapshot maps a coin identifier to its position summary for one poll
// iteration.
type Snapshot map[string]PositionSummary

// Coins returns the coin identifiers in sorted order.
func (s Snapshot) Coins() []string {
	coins := make([]string, 0, len(s))
	for coin := range s {
		coins = append(coins, coin)
	}
	sort.Strings(coins)
	return coins
}

// TotalValue sums the notional values of all positions in the snapshot.
func (s Snapshot) TotalValue() decimal.Decimal {
	total := decimal.Zero
	for _, pos := range s {
		total = total.Add(pos.Value)
	}
	return total
}
