package regime

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/soulscout/soulscout/internal/domain/state"
	"github.com/soulscout/soulscout/internal/models"
)

// token builds a snapshot entry whose 24h return and VWAP position are
// controlled by the open and close prices.
func token(symbol string, open, close float64) state.TokenState {
	history := []models.MarketUpdate{
		{Symbol: symbol, Price: open, Bar5m: models.Bar{VUSD: 100}, TsMs: 0},
		{Symbol: symbol, Price: close, Bar5m: models.Bar{VUSD: 100}, TsMs: 60_000},
	}
	return state.TokenState{
		Symbol:  symbol,
		Latest:  history[len(history)-1],
		History: history,
	}
}

func TestAssess_RiskOn(t *testing.T) {
	d := NewDetector()
	// SOL up, majority up, above VWAP: all three indicators positive.
	snap := []state.TokenState{
		token("SOL", 1.0, 1.2),
		token("WIF", 1.0, 1.5),
		token("BONK", 1.0, 1.1),
	}

	a := d.Assess(snap)
	assert.Equal(t, RiskOn, a.Regime)
	assert.True(t, a.SolPositive)
	assert.True(t, a.MedianPositive)
	assert.True(t, a.AboveVWAPMajority)
	assert.Equal(t, -10, a.ThresholdAdj)
	assert.Equal(t, 30.0, a.SizeAdjPct)
}

func TestAssess_RiskOff(t *testing.T) {
	d := NewDetector()
	snap := []state.TokenState{
		token("SOL", 1.0, 0.8),
		token("WIF", 1.0, 0.7),
		token("BONK", 1.0, 0.9),
	}

	a := d.Assess(snap)
	assert.Equal(t, RiskOff, a.Regime)
	assert.Equal(t, 10, a.ThresholdAdj)
	assert.Equal(t, -30.0, a.SizeAdjPct)
}

func TestAssess_ConfiguredAdjustments(t *testing.T) {
	d := NewDetectorWithAdjustments(-5, 15)

	riskOn := []state.TokenState{
		token("SOL", 1.0, 1.2),
		token("WIF", 1.0, 1.5),
		token("BONK", 1.0, 1.1),
	}
	assert.Equal(t, -5, d.Assess(riskOn).ThresholdAdj)

	riskOff := []state.TokenState{
		token("SOL", 1.0, 0.8),
		token("WIF", 1.0, 0.7),
	}
	assert.Equal(t, 15, d.Assess(riskOff).ThresholdAdj)
}

func TestAssess_NeutralOnSingleIndicator(t *testing.T) {
	d := NewDetector()
	// SOL up but every other token (the median and VWAP majority) down.
	snap := []state.TokenState{
		token("SOL", 1.0, 1.1),
		token("WIF", 1.0, 0.5),
		token("BONK", 1.0, 0.6),
		token("JUP", 1.0, 0.7),
		token("MEW", 1.0, 0.8),
	}

	a := d.Assess(snap)
	assert.True(t, a.SolPositive)
	assert.False(t, a.MedianPositive)
	assert.False(t, a.AboveVWAPMajority)
	assert.Equal(t, Neutral, a.Regime)
	assert.Equal(t, 0, a.ThresholdAdj)
	assert.Equal(t, 0.0, a.SizeAdjPct)
}

func TestAssess_EmptySnapshotIsRiskOff(t *testing.T) {
	d := NewDetector()
	a := d.Assess(nil)
	// No indicator can be positive without data.
	assert.Equal(t, RiskOff, a.Regime)
}

func TestAssess_PureFunctionOfSnapshot(t *testing.T) {
	d := NewDetector()
	snap := []state.TokenState{
		token("SOL", 1.0, 1.2),
		token("WIF", 1.0, 1.5),
	}
	assert.Equal(t, d.Assess(snap), d.Assess(snap))
}
