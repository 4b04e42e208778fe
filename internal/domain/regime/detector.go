package regime

import (
	"sort"

	"github.com/soulscout/soulscout/internal/domain/state"
)

// Regime is the market-wide risk state.
type Regime int

const (
	Neutral Regime = iota
	RiskOn
	RiskOff
)

func (r Regime) String() string {
	switch r {
	case RiskOn:
		return "risk_on"
	case RiskOff:
		return "risk_off"
	default:
		return "neutral"
	}
}

// solSymbol anchors the first indicator to SOL's own 24h return.
const solSymbol = "SOL"

// Assessment is the regime verdict plus the threshold and sizing deltas it
// implies. The regime adjusts thresholds, never confidence.
type Assessment struct {
	Regime            Regime
	SolPositive       bool
	MedianPositive    bool
	AboveVWAPMajority bool
	ThresholdAdj      int
	SizeAdjPct        float64
	Description       string
}

// Detector classifies the market from three indicators: SOL 24h return,
// the cross-token median 24h return, and the fraction of tokens trading
// above their 24h volume-weighted price proxy.
type Detector struct {
	riskOnAdj  int
	riskOffAdj int
}

// NewDetector returns a detector with the default -10/+10 threshold
// adjustments.
func NewDetector() *Detector {
	return NewDetectorWithAdjustments(-10, 10)
}

// NewDetectorWithAdjustments sets the threshold deltas applied in risk-on
// and risk-off markets.
func NewDetectorWithAdjustments(riskOnAdj, riskOffAdj int) *Detector {
	return &Detector{riskOnAdj: riskOnAdj, riskOffAdj: riskOffAdj}
}

// Assess is a pure function of the store snapshot. Two or three positive
// indicators mean risk-on (lower threshold, +30% size), zero means
// risk-off (higher threshold, -30%), exactly one is neutral.
func (d *Detector) Assess(snapshot []state.TokenState) Assessment {
	a := Assessment{
		SolPositive:       solReturn(snapshot) > 0,
		MedianPositive:    median24hReturn(snapshot) > 0,
		AboveVWAPMajority: aboveVWAPRatio(snapshot) > 0.5,
	}

	positive := 0
	for _, ok := range []bool{a.SolPositive, a.MedianPositive, a.AboveVWAPMajority} {
		if ok {
			positive++
		}
	}

	switch {
	case positive >= 2:
		a.Regime = RiskOn
		a.ThresholdAdj = d.riskOnAdj
		a.SizeAdjPct = 30.0
		a.Description = "Risk-On: lower threshold, larger size"
	case positive == 0:
		a.Regime = RiskOff
		a.ThresholdAdj = d.riskOffAdj
		a.SizeAdjPct = -30.0
		a.Description = "Risk-Off: higher threshold, smaller size"
	default:
		a.Regime = Neutral
		a.Description = "Neutral: base parameters"
	}

	return a
}

func solReturn(snapshot []state.TokenState) float64 {
	for i := range snapshot {
		if snapshot[i].Symbol == solSymbol {
			return snapshot[i].M24h()
		}
	}
	return 0
}

func median24hReturn(snapshot []state.TokenState) float64 {
	if len(snapshot) == 0 {
		return 0
	}
	returns := make([]float64, 0, len(snapshot))
	for i := range snapshot {
		returns = append(returns, snapshot[i].M24h())
	}
	sort.Float64s(returns)
	return returns[len(returns)/2]
}

// aboveVWAPRatio weighs each token's 24h history by 5-minute bar volume to
// form a VWAP proxy, then counts tokens trading above it. Tokens with no
// traded volume are excluded; an empty market reads as an even 0.5.
func aboveVWAPRatio(snapshot []state.TokenState) float64 {
	above, total := 0, 0
	for i := range snapshot {
		ts := &snapshot[i]

		vwap, volSum := 0.0, 0.0
		for _, md := range ts.History {
			vwap += md.Price * md.Bar5m.VUSD
			volSum += md.Bar5m.VUSD
		}
		if volSum <= 0 {
			continue
		}
		vwap /= volSum

		if ts.Latest.Price > vwap {
			above++
		}
		total++
	}

	if total == 0 {
		return 0.5
	}
	return float64(above) / float64(total)
}
