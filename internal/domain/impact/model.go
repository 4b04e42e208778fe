package impact

import "math"

// Impact1Pct estimates the percent price impact of buying 1% of pool
// liquidity against a constant-product pool. Invalid pools report an
// effectively untradeable impact.
func Impact1Pct(reserveBase, reserveQuote, liquidityUSD float64) float64 {
	if liquidityUSD <= 0 || reserveBase <= 0 || reserveQuote <= 0 {
		return 999.0
	}

	purchaseUSD := liquidityUSD * 0.01
	k := reserveBase * reserveQuote

	newReserveQuote := reserveQuote + purchaseUSD
	newReserveBase := k / newReserveQuote
	tokensReceived := reserveBase - newReserveBase
	if tokensReceived <= 0 {
		return 999.0
	}

	priceBefore := reserveQuote / reserveBase
	effectivePrice := purchaseUSD / tokensReceived

	impactPct := (effectivePrice - priceBefore) / priceBefore * 100.0
	return math.Max(0.0, impactPct)
}

// SpreadEstimate derives a spread proxy from pool depth: deeper pools
// quote tighter. Real tick data would replace this.
func SpreadEstimate(reserveBase, reserveQuote float64) float64 {
	if reserveBase <= 0 || reserveQuote <= 0 {
		return 10.0
	}

	depth := math.Sqrt(reserveBase * reserveQuote)
	spread := 100.0 / math.Max(1.0, depth/100_000.0)

	return math.Min(10.0, math.Max(0.01, spread))
}
