// Package diff classifies changes between two account snapshots.
package diff

import (
	"github.com/shopspring/decimal"

	"walletwatch/internal/domain"
)

// epsilon below which a size difference does not count as a change
var epsilon = decimal.New(1, -9)

// Diff compares the previous and current snapshots and classifies
// per-coin changes into added, removed and modified. It is a pure
// function: identical inputs always yield identical output, with records
// ordered by coin name. The first iteration only establishes the
// baseline and never reports changes.
func Diff(previous, current domain.Snapshot, totalPortfolioValue decimal.Decimal, iteration uint64) domain.ChangeSet {
	var set domain.ChangeSet
	if iteration <= 1 {
		return set
	}

	for _, coin := range current.Coins() {
		cur := current[coin]
		prev, known := previous[coin]
		if !known {
			set.Added = append(set.Added, added(coin, cur, totalPortfolioValue))
			continue
		}

		deltaSize := cur.Size.Sub(prev.Size)
		if deltaSize.Abs().LessThanOrEqual(epsilon) {
			continue
		}
		set.Modified = append(set.Modified, modified(coin, prev, cur, deltaSize, totalPortfolioValue))
	}

	for _, coin := range previous.Coins() {
		if _, still := current[coin]; still {
			continue
		}
		set.Removed = append(set.Removed, removed(coin, previous[coin], totalPortfolioValue))
	}

	return set
}

func added(coin string, cur domain.PositionSummary, total decimal.Decimal) domain.ChangeRecord {
	ratioWithin := decimal.Zero
	if !cur.Size.IsZero() {
		ratioWithin = decimal.NewFromInt(1)
	}

	return domain.ChangeRecord{
		Coin:             coin,
		Kind:             domain.ChangeAdded,
		Current:          &cur,
		DeltaSize:        cur.Size,
		DeltaValue:       cur.Value,
		RatioWithinCoin:  &ratioWithin,
		RatioOfPortfolio: ratioOfPortfolio(cur.Value, total),
	}
}

func removed(coin string, prev domain.PositionSummary, total decimal.Decimal) domain.ChangeRecord {
	deltaValue := prev.Value.Neg()

	var ratioWithin *decimal.Decimal
	if !prev.Size.IsZero() {
		one := decimal.NewFromInt(1)
		ratioWithin = &one
	}

	return domain.ChangeRecord{
		Coin:             coin,
		Kind:             domain.ChangeRemoved,
		Previous:         &prev,
		DeltaSize:        prev.Size.Neg(),
		DeltaValue:       deltaValue,
		RatioWithinCoin:  ratioWithin,
		RatioOfPortfolio: ratioOfPortfolio(deltaValue, total),
	}
}

func modified(coin string, prev, cur domain.PositionSummary, deltaSize, total decimal.Decimal) domain.ChangeRecord {
	// value delta uses the current entry price, falling back to the
	// previous one when the current is unknown
	entry := cur.Entry
	if entry == nil {
		entry = prev.Entry
	}
	deltaValue := decimal.Zero
	if entry != nil {
		deltaValue = deltaSize.Mul(*entry)
	}

	var ratioWithin *decimal.Decimal
	switch {
	case cur.Size.Abs().GreaterThan(epsilon):
		r := deltaSize.Abs().Div(cur.Size.Abs())
		ratioWithin = &r
	case prev.Size.Abs().GreaterThan(epsilon):
		r := deltaSize.Abs().Div(prev.Size.Abs())
		ratioWithin = &r
	}

	return domain.ChangeRecord{
		Coin:             coin,
		Kind:             domain.ChangeModified,
		Previous:         &prev,
		Current:          &cur,
		DeltaSize:        deltaSize,
		DeltaValue:       deltaValue,
		RatioWithinCoin:  ratioWithin,
		RatioOfPortfolio: ratioOfPortfolio(deltaValue, total),
	}
}

func ratioOfPortfolio(deltaValue, total decimal.Decimal) *decimal.Decimal {
	if !total.IsPositive() {
		return nil
	}
	r := deltaValue.Abs().Div(total)
	return &r
}
