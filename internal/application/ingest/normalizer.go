package ingest

import (
	"github.com/soulscout/soulscout/internal/domain/impact"
	"github.com/soulscout/soulscout/internal/infrastructure/providers"
	"github.com/soulscout/soulscout/internal/models"
)

// NormalizedPool is the venue-independent pool view with derived
// execution metrics attached.
type NormalizedPool struct {
	Address       string
	Symbol        string
	MintBase      string
	MintQuote     string
	Dex           string
	Price         float64
	LiqUSD        float64
	Vol24hUSD     float64
	SpreadPct     float64
	Impact1PctPct float64
	DQ            string
}

// Normalize maps a venue pool snapshot into the normalized form. Pools
// missing price or liquidity are tagged degraded rather than dropped;
// downstream scoring discounts them.
func Normalize(p providers.PoolData) NormalizedPool {
	out := NormalizedPool{
		Address:   p.Address,
		Symbol:    p.Symbol,
		MintBase:  p.MintBase,
		MintQuote: p.MintQuote,
		Dex:       p.Source,
		Price:     p.Price,
		LiqUSD:    p.LiquidityUSD,
		Vol24hUSD: p.Volume24hUSD,
		DQ:        models.DQOk,
	}
	if out.Address == "" {
		out.Address = "unknown"
	}

	// Venues that do not report reserves get a neutral default so the
	// impact model still produces a usable estimate.
	reserveBase := p.ReserveBase
	reserveQuote := p.ReserveQuote
	if reserveBase <= 0 {
		reserveBase = 1_000_000.0
	}
	if reserveQuote <= 0 {
		reserveQuote = 1_000_000.0
	}

	out.SpreadPct = impact.SpreadEstimate(reserveBase, reserveQuote)
	out.Impact1PctPct = impact.Impact1Pct(reserveBase, reserveQuote, out.LiqUSD)

	if out.LiqUSD == 0 || out.Price == 0 {
		out.DQ = models.DQDegraded
	}
	return out
}
