package diff

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"walletwatch/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func position(size, entry, unrealized string) domain.PositionSummary {
	return domain.NewPositionSummary(dec(size), decPtr(entry), dec(unrealized), nil)
}

func TestFirstIterationEstablishesBaselineOnly(t *testing.T) {
	current := domain.Snapshot{
		"BTC": position("1.5", "100", "10"),
		"ETH": position("-2", "50", "-5"),
	}

	set := Diff(nil, current, dec("1000"), 1)
	require.True(t, set.Empty())
}

func TestAddedPosition(t *testing.T) {
	previous := domain.Snapshot{}
	current := domain.Snapshot{"BTC": position("1.5", "100", "0")}

	set := Diff(previous, current, dec("1500"), 2)
	require.Len(t, set.Added, 1)
	require.Empty(t, set.Removed)
	require.Empty(t, set.Modified)

	rec := set.Added[0]
	require.Equal(t, "BTC", rec.Coin)
	require.Equal(t, domain.ChangeAdded, rec.Kind)
	require.Nil(t, rec.Previous)
	require.True(t, rec.DeltaSize.Equal(dec("1.5")))
	require.True(t, rec.DeltaValue.Equal(dec("150")))

	require.NotNil(t, rec.RatioWithinCoin)
	require.True(t, rec.RatioWithinCoin.Equal(dec("1")))
	require.NotNil(t, rec.RatioOfPortfolio)
	require.True(t, rec.RatioOfPortfolio.Equal(dec("0.1")))
}

func TestAddedZeroSizePosition(t *testing.T) {
	current := domain.Snapshot{"BTC": position("0", "100", "0")}

	set := Diff(domain.Snapshot{}, current, dec("1500"), 2)
	require.Len(t, set.Added, 1)
	require.NotNil(t, set.Added[0].RatioWithinCoin)
	require.True(t, set.Added[0].RatioWithinCoin.IsZero())
}

func TestRemovedShortPosition(t *testing.T) {
	previous := domain.Snapshot{"SOL": position("-3", "50", "7")}
	current := domain.Snapshot{}

	set := Diff(previous, current, dec("1000"), 3)
	require.Len(t, set.Removed, 1)

	rec := set.Removed[0]
	require.Equal(t, domain.ChangeRemoved, rec.Kind)
	require.Nil(t, rec.Current)
	require.True(t, rec.DeltaSize.Equal(dec("3")))
	// prior value is |(-3)*50| = 150, so the change removes 150 of value
	require.True(t, rec.DeltaValue.Equal(dec("-150")))
	require.NotNil(t, rec.RatioWithinCoin)
	require.True(t, rec.RatioWithinCoin.Equal(dec("1")))
}

func TestSizeChangeWithinEpsilonIsIgnored(t *testing.T) {
	previous := domain.Snapshot{"BTC": position("2.0", "100", "0")}
	current := domain.Snapshot{"BTC": position("2.0000000005", "100", "0")}

	set := Diff(previous, current, dec("1000"), 2)
	require.True(t, set.Empty())
}

func TestModifiedPosition(t *testing.T) {
	previous := domain.Snapshot{"ETH": position("1", "100", "0")}
	current := domain.Snapshot{"ETH": position("2.5", "110", "5")}

	set := Diff(previous, current, dec("1000"), 2)
	require.Len(t, set.Modified, 1)

	rec := set.Modified[0]
	require.Equal(t, domain.ChangeModified, rec.Kind)
	require.True(t, rec.DeltaSize.Equal(dec("1.5")))
	// value delta uses the current entry price
	require.True(t, rec.DeltaValue.Equal(dec("165")))
	require.NotNil(t, rec.RatioWithinCoin)
	require.True(t, rec.RatioWithinCoin.Equal(dec("0.6")))
	require.NotNil(t, rec.RatioOfPortfolio)
	require.True(t, rec.RatioOfPortfolio.Equal(dec("0.165")))
}

func TestModifiedFallsBackToPreviousEntryPrice(t *testing.T) {
	previous := domain.Snapshot{"ETH": position("1", "100", "0")}
	current := domain.Snapshot{
		"ETH": domain.NewPositionSummary(dec("2"), nil, decimal.Zero, nil),
	}

	set := Diff(previous, current, dec("1000"), 2)
	require.Len(t, set.Modified, 1)
	require.True(t, set.Modified[0].DeltaValue.Equal(dec("100")))
}

func TestUnknownEntryPriceYieldsZeroValueDelta(t *testing.T) {
	previous := domain.Snapshot{
		"XYZ": domain.NewPositionSummary(dec("1"), nil, decimal.Zero, nil),
	}
	current := domain.Snapshot{
		"XYZ": domain.NewPositionSummary(dec("2"), nil, decimal.Zero, nil),
	}

	set := Diff(previous, current, dec("1000"), 2)
	require.Len(t, set.Modified, 1)
	require.True(t, set.Modified[0].DeltaValue.IsZero())
}

func TestRatioOfPortfolioUndefinedWithoutTotal(t *testing.T) {
	current := domain.Snapshot{"BTC": position("1", "100", "0")}

	set := Diff(domain.Snapshot{}, current, decimal.Zero, 2)
	require.Len(t, set.Added, 1)
	require.Nil(t, set.Added[0].RatioOfPortfolio)
}

func TestDiffIsDeterministic(t *testing.T) {
	previous := domain.Snapshot{
		"BTC": position("1", "100", "0"),
		"ETH": position("2", "50", "0"),
		"SOL": position("3", "10", "0"),
	}
	current := domain.Snapshot{
		"BTC":  position("1.5", "100", "0"),
		"DOGE": position("100", "0.1", "0"),
		"SOL":  position("3", "10", "0"),
	}

	first := Diff(previous, current, dec("1000"), 5)
	second := Diff(previous, current, dec("1000"), 5)
	require.Equal(t, first, second)

	require.Len(t, first.Added, 1)
	require.Len(t, first.Removed, 1)
	require.Len(t, first.Modified, 1)
}
