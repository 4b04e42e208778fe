package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soulscout/soulscout/internal/domain/signals"
	"github.com/soulscout/soulscout/internal/domain/state"
	"github.com/soulscout/soulscout/internal/models"
)

func strongSignals() signals.Scores {
	return signals.Scores{
		S1: 1.0, S2: 1.0, S3: 1.0, S4: 1.0, S5: 0.9,
		S6: 0.9, S7: 0.9, S8: 1.0, S9: 0.9, S10: 1.0, N1: 1.0,
	}
}

func matureState() state.TokenState {
	return state.TokenState{
		Symbol: "WIF",
		Latest: models.MarketUpdate{
			Price: 1.0, LiqUSD: 300_000, Vol24hUSD: 1_200_000,
			SpreadPct: 0.4, Impact1PctPct: 0.3, AgeHours: 500,
			Bar5m: models.Bar{VUSD: 1000}, Bar15m: models.Bar{VUSD: 3000},
			DQ: models.DQOk,
		},
	}
}

func TestNewScorer_BadWeights(t *testing.T) {
	_, err := NewScorer(Weights{})
	assert.ErrorIs(t, err, ErrBadWeights)

	_, err = NewScorer(Weights{S1: -0.5, S2: 0.2})
	assert.ErrorIs(t, err, ErrBadWeights)

	_, err = NewScorer(DefaultWeights())
	assert.NoError(t, err)
}

func TestCompute_Deterministic(t *testing.T) {
	s, err := NewScorer(DefaultWeights())
	require.NoError(t, err)

	ts := matureState()
	sc := strongSignals()

	a := s.Compute(ts, sc)
	b := s.Compute(ts, sc)
	assert.Equal(t, a, b)
}

func TestCompute_StrongTokenIsActionableRange(t *testing.T) {
	s, _ := NewScorer(DefaultWeights())
	res := s.Compute(matureState(), strongSignals())

	assert.GreaterOrEqual(t, res.Confidence, 70.0)
	assert.False(t, res.RugCapApplied)
	assert.False(t, res.YoungAndRisky)
	assert.False(t, res.DQForcedHeadsUp)
	assert.Zero(t, res.Penalties)
}

func TestCompute_RugCap(t *testing.T) {
	s, _ := NewScorer(DefaultWeights())

	ts := matureState()
	ts.Latest.AgeHours = 2 // S7 would be 0.3 for a 2h-old token

	sc := strongSignals()
	sc.S7 = 0.29

	res := s.Compute(ts, sc)
	assert.True(t, res.RugCapApplied)
	assert.True(t, res.YoungAndRisky)
	assert.LessOrEqual(t, res.Raw, 55.0)
	// Age penalty pushes final C below the heads-up floor.
	assert.LessOrEqual(t, res.Confidence, 55.0-15.0)
}

func TestCompute_DataQualityGate(t *testing.T) {
	s, _ := NewScorer(DefaultWeights())

	// Degraded tag plus two missing bars plus missing liquidity and volume:
	// DQ = 1 - 5*0.08 = 0.60 < 0.7.
	ts := matureState()
	ts.Latest.DQ = models.DQDegraded
	ts.Latest.Bar5m.VUSD = 0
	ts.Latest.Bar15m.VUSD = 0

	sc := strongSignals()
	sc.S1 = 0.0
	sc.S2 = 0.0

	res := s.Compute(ts, sc)
	assert.InDelta(t, 0.60, res.DataQuality, 1e-9)
	assert.True(t, res.DQForcedHeadsUp)
}

func TestCompute_DegradedTagAndMissingBars(t *testing.T) {
	// Scenario: incoming tag degraded and both bars missing -> DQ <= 0.68.
	s, _ := NewScorer(DefaultWeights())

	ts := matureState()
	ts.Latest.DQ = models.DQDegraded
	ts.Latest.Bar5m.VUSD = 0
	ts.Latest.Bar15m.VUSD = 0

	res := s.Compute(ts, strongSignals())
	assert.LessOrEqual(t, res.DataQuality, 0.68)
	assert.True(t, res.DQForcedHeadsUp)
}

func TestCompute_Penalties(t *testing.T) {
	s, _ := NewScorer(DefaultWeights())

	ts := matureState()
	ts.Latest.AgeHours = 30   // +5
	ts.Latest.SpreadPct = 2.0 // +5
	ts.Latest.Impact1PctPct = 1.2

	sc := strongSignals()
	sc.S9 = 0.4 // +3
	sc.N1 = 0.9 // +10

	res := s.Compute(ts, sc)
	assert.InDelta(t, 5+5+5+3+10, res.Penalties, 1e-9)
	assert.Contains(t, res.Reasons, "Not on widely mirrored lists")
	assert.InDelta(t, res.Raw-res.Penalties, res.Confidence, 1e-9)
}

func TestCompute_ThinLiquidityHeadsUpRange(t *testing.T) {
	// Scenario: liq 80k, vol 250k, healthy otherwise -> C lands in 60-69.
	s, _ := NewScorer(DefaultWeights())

	ts := matureState()
	ts.Latest.LiqUSD = 80_000
	ts.Latest.Vol24hUSD = 250_000
	ts.Latest.SpreadPct = 0.8
	ts.Latest.Impact1PctPct = 0.4
	ts.Latest.AgeHours = 200

	sc := signals.Scores{
		S1: 0.5, S2: 0.5,
		S3: signals.FDVLiqScore(100),
		S4: signals.MomentumScore(5, 10),
		S5: 0.5, S6: 0.5,
		S7: 0.9,
		S8: signals.ExecutionScore(0.8, 0.4),
		S9: 0.5, S10: 1.0, N1: 1.0,
	}

	res := s.Compute(ts, sc)
	assert.GreaterOrEqual(t, res.Confidence, 60.0)
	assert.Less(t, res.Confidence, 70.0)
}

func TestCompute_ConfidenceNeverNegative(t *testing.T) {
	s, _ := NewScorer(DefaultWeights())

	ts := matureState()
	ts.Latest.AgeHours = 1
	ts.Latest.SpreadPct = 2.4
	ts.Latest.Impact1PctPct = 1.4

	res := s.Compute(ts, signals.Scores{N1: 0.9})
	assert.GreaterOrEqual(t, res.Confidence, 0.0)
}
