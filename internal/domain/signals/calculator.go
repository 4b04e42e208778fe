package signals

import (
	"math"

	"github.com/soulscout/soulscout/internal/domain/state"
	"github.com/soulscout/soulscout/internal/models"
)

// neutral is returned by any history-driven signal that lacks enough data.
const neutral = 0.5

// Scores carries the ten factors S1-S10 in [0,1] plus the list-hygiene
// factor N1 (1.0 recognized, 0.9 otherwise).
type Scores struct {
	S1  float64 // liquidity
	S2  float64 // 24h volume
	S3  float64 // FDV / liquidity
	S4  float64 // momentum
	S5  float64 // drawdown structure
	S6  float64 // volatility
	S7  float64 // rug risk
	S8  float64 // execution cost
	S9  float64 // volume trend
	S10 float64 // route health
	N1  float64 // token list hygiene
}

// defaultRecognized mirrors the widely-mirrored Solana token lists the
// hygiene factor checks against.
var defaultRecognized = []string{"SOL", "USDC", "USDT", "BONK", "JUP", "WIF", "JTO"}

// Calculator computes signal scores from a token snapshot. All derivations
// are pure; insufficient history yields the neutral 0.5.
type Calculator struct {
	recognized map[string]struct{}
}

// NewCalculator builds a calculator; an empty recognized list falls back to
// the default widely-mirrored set.
func NewCalculator(recognized []string) *Calculator {
	if len(recognized) == 0 {
		recognized = defaultRecognized
	}
	set := make(map[string]struct{}, len(recognized))
	for _, sym := range recognized {
		set[sym] = struct{}{}
	}
	return &Calculator{recognized: set}
}

// Compute evaluates every signal against the snapshot.
func (c *Calculator) Compute(ts state.TokenState) Scores {
	md := ts.Latest
	return Scores{
		S1:  LiquidityScore(md.LiqUSD),
		S2:  VolumeScore(md.Vol24hUSD),
		S3:  FDVLiqScore(fdvLiqRatio(md)),
		S4:  MomentumScore(ts.M1h(), ts.M24h()),
		S5:  StructureScore(ts.History),
		S6:  VolatilityScore(ts.History),
		S7:  RugRiskScore(md.AgeHours),
		S8:  ExecutionScore(md.SpreadPct, md.Impact1PctPct),
		S9:  VolumeTrendScore(ts.History),
		S10: RouteScore(md.Route),
		N1:  c.HygieneScore(ts.Symbol),
	}
}

// fdvLiqRatio would divide fully-diluted value by pool liquidity; no FDV
// feed is wired yet, so the ratio pins to 100 (mildly penalized by S3).
func fdvLiqRatio(_ models.MarketUpdate) float64 {
	return 100.0
}

// LiquidityScore: below 25k is untradeable, 25k-150k heads-up only, 150k
// and above clears the actionable floor.
func LiquidityScore(liqUSD float64) float64 {
	switch {
	case liqUSD < 25_000:
		return 0.0
	case liqUSD < 150_000:
		return 0.5
	default:
		return 1.0
	}
}

// VolumeScore: the 24h turnover floors are 50k and 500k.
func VolumeScore(vol24hUSD float64) float64 {
	switch {
	case vol24hUSD < 50_000:
		return 0.0
	case vol24hUSD < 500_000:
		return 0.5
	default:
		return 1.0
	}
}

// FDVLiqScore prefers a ratio of 5-50 and interpolates linearly outside it,
// flooring at 0.4 below 2 and 0.3 above 150.
func FDVLiqScore(ratio float64) float64 {
	switch {
	case ratio >= 5.0 && ratio <= 50.0:
		return 1.0
	case ratio > 150.0:
		return 0.3
	case ratio < 2.0:
		return 0.4
	case ratio < 5.0:
		return 0.4 + (ratio/5.0)*0.6
	default: // 50 < ratio <= 150
		excess := math.Min(100.0, ratio-50.0)
		return 1.0 - (excess/100.0)*0.7
	}
}

// MomentumScore starts at 0.5 and rewards m1h in +1..+12 and m24h in
// +2..+60; spikes past the band earn less (they require entry
// confirmation) and negative momentum is penalized.
func MomentumScore(m1h, m24h float64) float64 {
	score := 0.5

	switch {
	case m1h >= 1.0 && m1h <= 12.0:
		score += 0.25
	case m1h > 12.0:
		score += 0.10
	case m1h < 0:
		score -= 0.20
	}

	switch {
	case m24h >= 2.0 && m24h <= 60.0:
		score += 0.25
	case m24h > 60.0:
		score += 0.10
	case m24h < 0:
		score -= 0.20
	}

	return clamp01(score)
}

// StructureScore compares the minimum of the most recent 10 entries against
// the minimum of the 10 before them: higher lows score 0.9, lower lows 0.3.
func StructureScore(history []models.MarketUpdate) float64 {
	n := len(history)
	if n < 20 {
		return neutral
	}

	prevLow := minPrice(history[n-20 : n-10])
	recentLow := minPrice(history[n-10:])

	switch {
	case recentLow > prevLow*1.02:
		return 0.9
	case recentLow < prevLow*0.98:
		return 0.3
	default:
		return 0.6
	}
}

// VolatilityScore uses the coefficient of variation over the last 60
// prices: calm tape scores 0.9, chaotic tape 0.3.
func VolatilityScore(history []models.MarketUpdate) float64 {
	n := len(history)
	if n < 60 {
		return neutral
	}

	window := history[n-60:]
	mean := 0.0
	for _, md := range window {
		mean += md.Price
	}
	mean /= float64(len(window))
	if mean <= 0 {
		return neutral
	}

	variance := 0.0
	for _, md := range window {
		d := md.Price - mean
		variance += d * d
	}
	variance /= float64(len(window))

	cv := math.Sqrt(variance) / mean
	switch {
	case cv < 0.05:
		return 0.9
	case cv > 0.20:
		return 0.3
	default:
		return 0.7
	}
}

// RugRiskScore penalizes young tokens; authority and holder-concentration
// checks would fold in here once an on-chain feed exists.
func RugRiskScore(ageHours float64) float64 {
	switch {
	case ageHours < 24.0:
		return 0.3
	case ageHours < 72.0:
		return 0.6
	default:
		return 0.9
	}
}

// ExecutionScore hard-gates to 0 past spread 2.5% or impact 1.5%, then
// discounts proportionally within the acceptable range.
func ExecutionScore(spreadPct, impactPct float64) float64 {
	if spreadPct > 2.5 || impactPct > 1.5 {
		return 0.0
	}
	score := 1.0 - (spreadPct/2.5)*0.3 - (impactPct/1.5)*0.3
	return math.Max(0.0, score)
}

// VolumeTrendScore compares 5m-bar volume over the last 50 entries against
// the 50 before them.
func VolumeTrendScore(history []models.MarketUpdate) float64 {
	n := len(history)
	if n < 100 {
		return neutral
	}

	recent := 0.0
	for _, md := range history[n-50:] {
		recent += md.Bar5m.VUSD
	}
	old := 0.0
	for _, md := range history[n-100 : n-50] {
		old += md.Bar5m.VUSD
	}

	switch {
	case recent > old*1.2:
		return 0.9
	case recent < old*0.8:
		return 0.4
	default:
		return 0.6
	}
}

// RouteScore zeroes unroutable paths and paths over 3 hops, then discounts
// per extra hop and per point of quote deviation.
func RouteScore(r models.Route) float64 {
	if !r.OK || r.Hops > 3 {
		return 0.0
	}
	score := 1.0 - float64(r.Hops-1)*0.15 - r.DevPct*0.3
	return clamp01(score)
}

// HygieneScore returns 1.0 for symbols on the recognized widely-mirrored
// lists and 0.9 otherwise (worth a 10-point confidence penalty).
func (c *Calculator) HygieneScore(symbol string) float64 {
	if _, ok := c.recognized[symbol]; ok {
		return 1.0
	}
	return 0.9
}

func minPrice(window []models.MarketUpdate) float64 {
	low := window[0].Price
	for _, md := range window[1:] {
		if md.Price < low {
			low = md.Price
		}
	}
	return low
}

func clamp01(v float64) float64 {
	return math.Max(0.0, math.Min(1.0, v))
}
