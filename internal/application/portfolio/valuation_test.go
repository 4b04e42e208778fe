package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func priced(symbol string, value float64, tag string) Holding {
	return Holding{Mint: symbol + "-mint", Symbol: symbol, Amount: 1, USDPrice: value, USDValue: value, Priced: true, Tag: tag}
}

func TestValue_TotalsAndOrdering(t *testing.T) {
	v := NewValuator(1.0, 50)

	s := v.Value([]Holding{
		priced("WIF", 150, TagCG),
		priced("JUP", 900, TagDEX),
		priced("BONK", 40, TagCG),
		{Mint: "x-mint", Symbol: "X", Amount: 5, Tag: TagNA},
	})

	assert.InDelta(t, 1090.0, s.TotalUSD, 1e-9)
	assert.Equal(t, 3, s.IncludedCount)
	assert.Equal(t, 1, s.ExcludedCount)
	assert.Equal(t, "Excludes 1 unpriced tokens.", s.Notes)

	require.Len(t, s.Holdings, 3)
	assert.Equal(t, "JUP", s.Holdings[0].Symbol)
	assert.Equal(t, "WIF", s.Holdings[1].Symbol)
	assert.Equal(t, "BONK", s.Holdings[2].Symbol)
}

func TestValue_HaircutSubtotalStaysOutOfTotal(t *testing.T) {
	v := NewValuator(1.0, 50)

	s := v.Value([]Holding{
		priced("WIF", 100, TagCG),
		priced("SHALLOW", 80, TagEst50),
	})

	assert.InDelta(t, 100.0, s.TotalUSD, 1e-9)
	assert.InDelta(t, 40.0, s.HaircutSubtotalUSD, 1e-9)
	assert.Equal(t, 1, s.IncludedCount)
	assert.Contains(t, s.Notes, "Haircut subtotal: $40.00")

	// The haircut value is what renders in the holdings list.
	require.Len(t, s.Holdings, 2)
	assert.InDelta(t, 40.0, s.Holdings[1].USDValue, 1e-9)
}

func TestValue_DustFiltered(t *testing.T) {
	v := NewValuator(1.0, 50)

	s := v.Value([]Holding{
		priced("WIF", 100, TagCG),
		priced("DUST", 0.42, TagCG),
	})

	assert.InDelta(t, 100.0, s.TotalUSD, 1e-9)
	assert.Equal(t, 1, s.IncludedCount)
	require.Len(t, s.Holdings, 1)
}

func TestValue_UnpricedNeverDust(t *testing.T) {
	v := NewValuator(1.0, 50)

	// An NA holding has zero value but is excluded, not dust-filtered.
	s := v.Value([]Holding{{Mint: "m", Symbol: "X", Amount: 2, Tag: TagNA}})
	assert.Equal(t, 1, s.ExcludedCount)
}
