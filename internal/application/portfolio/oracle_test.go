package portfolio

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/soulscout/soulscout/internal/infrastructure/providers"
)

type fakeCG struct {
	prices map[string]float64
	err    error
}

func (f *fakeCG) PriceUSD(ctx context.Context, symbol string) (float64, bool, error) {
	if f.err != nil {
		return 0, false, f.err
	}
	p, ok := f.prices[symbol]
	return p, ok, nil
}

type fakeDEX struct {
	pools map[string]providers.PoolInfo
	err   error
}

func (f *fakeDEX) PoolInfoByMint(ctx context.Context, mint string) (providers.PoolInfo, bool, error) {
	if f.err != nil {
		return providers.PoolInfo{}, false, f.err
	}
	p, ok := f.pools[mint]
	return p, ok, nil
}

func TestOracle_Cascade(t *testing.T) {
	o := NewOracle(
		&fakeCG{prices: map[string]float64{"WIF": 2.5}},
		&fakeDEX{pools: map[string]providers.PoolInfo{
			"deep-mint":    {Price: 1.2, LiquidityUSD: 90_000},
			"shallow-mint": {Price: 0.8, LiquidityUSD: 40_000},
			"thin-mint":    {Price: 0.1, LiquidityUSD: 10_000},
		}},
	)
	ctx := context.Background()

	tests := []struct {
		name    string
		holding Holding
		tag     string
		value   float64
		priced  bool
	}{
		{name: "coingecko listed", holding: Holding{Symbol: "WIF", Mint: "wif-mint", Amount: 10}, tag: TagCG, value: 25, priced: true},
		{name: "deep dex pool", holding: Holding{Symbol: "DEEP", Mint: "deep-mint", Amount: 10}, tag: TagDEX, value: 12, priced: true},
		{name: "shallow pool haircut tag", holding: Holding{Symbol: "SHAL", Mint: "shallow-mint", Amount: 10}, tag: TagEst50, value: 8, priced: true},
		{name: "thin pool unpriced", holding: Holding{Symbol: "THIN", Mint: "thin-mint", Amount: 10}, tag: TagNA},
		{name: "unknown everywhere", holding: Holding{Symbol: "GHOST", Mint: "ghost-mint", Amount: 10}, tag: TagNA},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := tt.holding
			o.Price(ctx, &h)
			assert.Equal(t, tt.tag, h.Tag)
			assert.Equal(t, tt.priced, h.Priced)
			if tt.priced {
				assert.InDelta(t, tt.value, h.USDValue, 1e-9)
			}
		})
	}
}

func TestOracle_ProviderErrorFallsThrough(t *testing.T) {
	o := NewOracle(
		&fakeCG{err: assert.AnError},
		&fakeDEX{pools: map[string]providers.PoolInfo{
			"deep-mint": {Price: 1.2, LiquidityUSD: 90_000},
		}},
	)

	h := Holding{Symbol: "DEEP", Mint: "deep-mint", Amount: 1}
	o.Price(context.Background(), &h)
	assert.Equal(t, TagDEX, h.Tag)
}
