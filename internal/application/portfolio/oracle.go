package portfolio

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/soulscout/soulscout/internal/infrastructure/providers"
)

// Liquidity floors for trusting a DEX quote outright or with a haircut.
const (
	dexTrustLiqUSD   = 75_000.0
	dexHaircutLiqUSD = 25_000.0
)

type symbolPricer interface {
	PriceUSD(ctx context.Context, symbol string) (float64, bool, error)
}

type poolLookup interface {
	PoolInfoByMint(ctx context.Context, mint string) (providers.PoolInfo, bool, error)
}

// Oracle prices a holding through the cascade: CoinGecko listing, then a
// DEX pool deep enough to trust, then a shallow pool with the EST_50
// haircut, then NA.
type Oracle struct {
	cg  symbolPricer
	dex poolLookup
}

func NewOracle(cg symbolPricer, dex poolLookup) *Oracle {
	return &Oracle{cg: cg, dex: dex}
}

// Price fills USDPrice, USDValue, Priced and Tag on the holding.
// Provider errors are treated as a miss so the cascade continues.
func (o *Oracle) Price(ctx context.Context, h *Holding) {
	price, listed, err := o.cg.PriceUSD(ctx, h.Symbol)
	if err != nil {
		log.Debug().Err(err).Str("symbol", h.Symbol).Msg("coingecko lookup failed")
	}
	if listed {
		h.USDPrice, h.USDValue, h.Priced, h.Tag = price, h.Amount*price, true, TagCG
		return
	}

	info, found, err := o.dex.PoolInfoByMint(ctx, h.Mint)
	if err != nil {
		log.Debug().Err(err).Str("mint", h.Mint).Msg("dex lookup failed")
	}
	if found && info.LiquidityUSD >= dexTrustLiqUSD {
		h.USDPrice, h.USDValue, h.Priced, h.Tag = info.Price, h.Amount*info.Price, true, TagDEX
		return
	}
	if found && info.LiquidityUSD >= dexHaircutLiqUSD {
		h.USDPrice, h.USDValue, h.Priced, h.Tag = info.Price, h.Amount*info.Price, true, TagEst50
		return
	}

	h.Tag = TagNA
}
