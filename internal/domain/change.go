package domain

import "github.com/shopspring/decimal"

// ChangeKind classifies how a position differs between two snapshots.
type ChangeKind int

const (
	// ChangeAdded marks a coin present now but absent before.
	ChangeAdded ChangeKind = iota
	// ChangeRemoved marks a coin present before but absent now.
	ChangeRemoved
	// ChangeModified marks a coin whose size changed beyond epsilon.
	ChangeModified
)

// ChangeRecord describes one classified position change.
type ChangeRecord struct {
	Coin string
	Kind ChangeKind
	// Previous is nil for added positions.
	Previous *PositionSummary
	// Current is nil for removed positions.
	Current    *PositionSummary
	DeltaSize  decimal.Decimal
	DeltaValue decimal.Decimal
	// RatioWithinCoin is the fraction of the coin's own position that
	// changed, nil when both sizes are negligible.
	RatioWithinCoin *decimal.Decimal
	// RatioOfPortfolio is |DeltaValue| over the total portfolio value,
	// nil when the total is zero or unknown.
	RatioOfPortfolio *decimal.Decimal
}

// ChangeSet groups the classified changes of one diff run.
type ChangeSet struct {
	Added    []ChangeRecord
	Removed  []ChangeRecord
	Modified []ChangeRecord
}

// Empty reports whether no change was detected.
func (c ChangeSet) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Modified) == 0
}
