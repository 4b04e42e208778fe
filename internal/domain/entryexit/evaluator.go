package entryexit

import (
	"math"

	"github.com/soulscout/soulscout/internal/domain/state"
	"github.com/soulscout/soulscout/internal/models"
)

// spikeThresholdPct is the 1h momentum beyond which an entry needs
// confirmation before an actionable alert may fire.
const spikeThresholdPct = 12.0

// lagAllowancePct is added to execution cost in the net-edge check to
// account for alert-to-fill latency.
const lagAllowancePct = 0.30

// upsideCapPct caps the credible upside to the 24h swing high.
const upsideCapPct = 15.0

// DefaultExitPlan is the template attached to every alert.
const DefaultExitPlan = "Trim 25% at +15%; 25% at +30%; trail rest"

// Confirmation reports whether a spiking token has shown an acceptable
// entry pattern.
type Confirmation struct {
	Confirmed bool
	Method    string
	Reason    string
}

// NetEdge reports the upside-versus-cost gate: passes iff U >= 2K.
type NetEdge struct {
	UpsidePct float64
	CostPct   float64
	Passes    bool
	Reason    string
}

// Sizing is the suggested position size after volatility, liquidity and
// regime caps.
type Sizing struct {
	SizeSOL      float64
	SizeUSD      float64
	EstImpactPct float64
	Rationale    string
}

// CheckEntryConfirmation requires a confirmation pattern only when m1h has
// spiked past +12%. Either retest-and-hold or a 2-5% quick pullback counts.
func CheckEntryConfirmation(ts state.TokenState) Confirmation {
	if ts.M1h() <= spikeThresholdPct {
		return Confirmation{Confirmed: true, Method: "not_required", Reason: "m1h within normal range"}
	}

	if checkRetestHold(ts) {
		return Confirmation{Confirmed: true, Method: "retest_hold", Reason: "Retest and hold confirmed"}
	}
	if checkQuickPullback(ts) {
		return Confirmation{Confirmed: true, Method: "quick_pullback", Reason: "Quick pullback confirmed"}
	}

	return Confirmation{Method: "none", Reason: "Awaiting entry confirmation (spike cap)"}
}

// checkRetestHold looks for a prior high over entries 20..5 back, a
// pullback below 98% of it within the last 5 entries, and a 5-minute close
// back above the high.
func checkRetestHold(ts state.TokenState) bool {
	n := len(ts.History)
	if n < 20 {
		return false
	}

	high := maxPrice(ts.History[n-20 : n-5])
	pullbackLow := math.Min(ts.Latest.Price, minPriceOf(ts.History[n-5:]))

	return pullbackLow < high*0.98 && ts.Latest.Bar5m.C > high
}

// checkQuickPullback looks over a 30-entry window for a 2-5% pullback from
// the high of entries 30..15 back, with the 15-minute close back above it.
func checkQuickPullback(ts state.TokenState) bool {
	n := len(ts.History)
	if n < 30 {
		return false
	}

	high := maxPrice(ts.History[n-30 : n-15])
	if high <= 0 {
		return false
	}
	low := math.Min(ts.Latest.Price, minPriceOf(ts.History[n-15:]))

	pullbackPct := (high - low) / high * 100.0
	return pullbackPct >= 2.0 && pullbackPct <= 5.0 && ts.Latest.Bar15m.C > high
}

// SwingHigh24h is the highest retained price, capped at +15% above current.
func SwingHigh24h(ts state.TokenState) float64 {
	if len(ts.History) == 0 {
		return ts.Latest.Price * (1 + upsideCapPct/100.0)
	}
	high := ts.Latest.Price
	for _, md := range ts.History {
		if md.Price > high {
			high = md.Price
		}
	}
	return math.Min(high, ts.Latest.Price*(1+upsideCapPct/100.0))
}

// CheckNetEdge passes when the capped upside to the 24h swing high covers
// at least twice the execution cost (spread + impact + lag allowance).
func CheckNetEdge(ts state.TokenState) NetEdge {
	edge := NetEdge{}

	if ts.Latest.Price > 0 {
		swingHigh := SwingHigh24h(ts)
		edge.UpsidePct = math.Min(upsideCapPct, (swingHigh-ts.Latest.Price)/ts.Latest.Price*100.0)
	}
	edge.CostPct = ts.Latest.SpreadPct + ts.Latest.Impact1PctPct + lagAllowancePct

	edge.Passes = edge.UpsidePct >= 2.0*edge.CostPct
	if edge.Passes {
		edge.Reason = "Net edge positive"
	} else {
		edge.Reason = "Insufficient upside vs execution cost"
	}
	return edge
}

// SuggestSizing caps size by an ATR proxy (~0.6% of wallet risk per 1x
// ATR), by pool depth (0.8% of liquidity), and by a 30%-of-wallet ceiling,
// then applies the regime size adjustment.
func SuggestSizing(ts state.TokenState, walletSOL, regimeSizeAdjPct, solPriceUSD float64) Sizing {
	s := Sizing{Rationale: "ATR and liquidity capped"}
	if ts.Latest.Price <= 0 || solPriceUSD <= 0 {
		return s
	}

	atrProxy := ts.Latest.Price * 0.05
	atrCapSOL := walletSOL * 0.006 / (atrProxy / ts.Latest.Price)

	liqCapSOL := ts.Latest.LiqUSD * 0.008 / solPriceUSD

	s.SizeSOL = math.Min(atrCapSOL, liqCapSOL)
	s.SizeSOL *= 1.0 + regimeSizeAdjPct/100.0
	s.SizeSOL = math.Min(s.SizeSOL, walletSOL*0.30)

	s.SizeUSD = s.SizeSOL * solPriceUSD
	if ts.Latest.LiqUSD > 0 {
		s.EstImpactPct = ts.Latest.Impact1PctPct * (s.SizeUSD / ts.Latest.LiqUSD) * 100.0
	}
	return s
}

func maxPrice(window []models.MarketUpdate) float64 {
	high := 0.0
	for _, md := range window {
		if md.Price > high {
			high = md.Price
		}
	}
	return high
}

func minPriceOf(window []models.MarketUpdate) float64 {
	low := math.Inf(1)
	for _, md := range window {
		if md.Price < low {
			low = md.Price
		}
	}
	return low
}
