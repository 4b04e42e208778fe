package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soulscout/soulscout/internal/domain/bands"
	"github.com/soulscout/soulscout/internal/domain/regime"
	"github.com/soulscout/soulscout/internal/domain/scoring"
	"github.com/soulscout/soulscout/internal/domain/signals"
	"github.com/soulscout/soulscout/internal/domain/state"
	"github.com/soulscout/soulscout/internal/domain/throttle"
	"github.com/soulscout/soulscout/internal/models"
)

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	scorer, err := scoring.NewScorer(scoring.DefaultWeights())
	require.NoError(t, err)
	return NewPipeline(state.NewStore(), signals.NewCalculator(nil), scorer,
		throttle.NewEngine(throttle.DefaultConfig()), 70)
}

// healthyUpdate is a mature, liquid, well-routed token snapshot.
func healthyUpdate(price float64, tsMs int64) models.MarketUpdate {
	return models.MarketUpdate{
		Symbol:        "WIF",
		Pool:          "pool1",
		Price:         price,
		LiqUSD:        300_000,
		Vol24hUSD:     1_200_000,
		SpreadPct:     0.4,
		Impact1PctPct: 0.3,
		AgeHours:      500,
		Route:         models.Route{OK: true, Hops: 1, DevPct: 0.3},
		Bar5m:         models.Bar{C: price, VUSD: 1000},
		Bar15m:        models.Bar{C: price, VUSD: 3000},
		DQ:            models.DQOk,
		TsMs:          tsMs,
	}
}

// feed seeds minute-spaced history directly into the store and runs only
// the final update through the full pipeline, so the decision under test
// is not shadowed by throttle records from the warm-up.
func feed(p *Pipeline, prices []float64, a regime.Assessment) Outcome {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	for i := 0; i < len(prices)-1; i++ {
		md := healthyUpdate(prices[i], base+int64(i)*60_000)
		p.store.Update(md.Symbol, md)
	}
	last := len(prices) - 1
	return p.Process(healthyUpdate(prices[last], base+int64(last)*60_000), a)
}

func series(segments ...[2]float64) []float64 {
	var out []float64
	for _, seg := range segments {
		for i := 0; i < int(seg[0]); i++ {
			out = append(out, seg[1])
		}
	}
	return out
}

func TestProcess_SpikeWithoutConfirmationDowngrades(t *testing.T) {
	p := newTestPipeline(t)

	// +18% in the last hour with no retest or pullback pattern: entry
	// confirmation is required and absent, so even a high confidence
	// lands at heads_up.
	prices := series([2]float64{67, 1.00}, [2]float64{3, 1.18})
	out := feed(p, prices, regime.Assessment{})

	assert.Equal(t, bands.HeadsUp, out.Band)
	assert.GreaterOrEqual(t, out.Confidence, 60.0)
	require.NotNil(t, out.Alert)
	assert.Equal(t, "heads_up", out.Alert.Severity)
	assert.Contains(t, out.Alert.Lines, "Entry unconfirmed after momentum spike")
}

func TestProcess_ActionablePasses(t *testing.T) {
	p := newTestPipeline(t)

	// Settled 3% off an earlier high: entry needs no confirmation, the
	// swing high leaves enough upside over cost, and C lands in 70-85.
	prices := series([2]float64{10, 1.00}, [2]float64{30, 1.06}, [2]float64{30, 1.03})
	out := feed(p, prices, regime.Assessment{})

	assert.Equal(t, bands.Actionable, out.Band)
	assert.GreaterOrEqual(t, out.Confidence, 70.0)
	assert.Less(t, out.Confidence, 85.0)
	require.NotNil(t, out.Alert)
	assert.Equal(t, "actionable", out.Alert.Severity)
	assert.Equal(t, "Trim 25% at +15%; 25% at +30%; trail rest", out.Alert.Plan)
	assert.Equal(t, "direct", out.Alert.SolPath)
}

func TestProcess_HighConviction(t *testing.T) {
	p := newTestPipeline(t)

	// Same shape but with positive 1h momentum pushes C past 85 with no
	// risk flags set.
	prices := series([2]float64{20, 1.00}, [2]float64{20, 1.06}, [2]float64{30, 1.03})
	out := feed(p, prices, regime.Assessment{})

	assert.Equal(t, bands.HighConviction, out.Band)
	assert.GreaterOrEqual(t, out.Confidence, 85.0)
}

func TestProcess_RiskOffRegimeRaisesThreshold(t *testing.T) {
	p := newTestPipeline(t)

	// The same actionable-range series fails a risk-off threshold of 80.
	prices := series([2]float64{10, 1.00}, [2]float64{30, 1.06}, [2]float64{30, 1.03})
	out := feed(p, prices, regime.Assessment{Regime: regime.RiskOff, ThresholdAdj: 10})

	assert.Equal(t, bands.HeadsUp, out.Band)
}

func TestProcess_DegradedUpdateNeverActionable(t *testing.T) {
	p := newTestPipeline(t)

	md := healthyUpdate(0, time.Now().UnixMilli())
	md.Price = 0
	md.DQ = models.DQDegraded

	out := p.Process(md, regime.Assessment{})
	assert.Contains(t, []bands.Band{bands.None, bands.HeadsUp}, out.Band)
}

func TestProcess_RepeatIsSuppressedByThrottle(t *testing.T) {
	p := newTestPipeline(t)

	prices := series([2]float64{10, 1.00}, [2]float64{30, 1.06}, [2]float64{30, 1.03})
	first := feed(p, prices, regime.Assessment{})
	require.NotNil(t, first.Alert)

	// Re-processing an identical update within cooldown and dedup TTL
	// classifies the same but admits nothing.
	last := healthyUpdate(1.03, time.Date(2025, 6, 1, 1, 9, 0, 0, time.UTC).UnixMilli())
	second := p.Process(last, regime.Assessment{})

	assert.Equal(t, first.Band, second.Band)
	assert.True(t, second.Suppressed)
	assert.Nil(t, second.Alert)
	assert.Equal(t, throttle.FilterCooldown, second.Filter)
}
