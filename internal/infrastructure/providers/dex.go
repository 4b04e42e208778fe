package providers

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// PoolData is one AMM pool snapshot as reported by a DEX API.
type PoolData struct {
	Address      string  `json:"address"`
	Symbol       string  `json:"symbol"`
	MintBase     string  `json:"mint_base"`
	MintQuote    string  `json:"mint_quote"`
	Price        float64 `json:"price"`
	LiquidityUSD float64 `json:"liquidity_usd"`
	Volume24hUSD float64 `json:"volume_24h_usd"`
	ReserveBase  float64 `json:"reserve_base"`
	ReserveQuote float64 `json:"reserve_quote"`
	Source       string  `json:"source"`
}

// PoolInfo is the valuation view of the deepest pool for a mint.
type PoolInfo struct {
	Price        float64
	LiquidityUSD float64
	Source       string
}

// DEX aggregates Raydium and Orca pool endpoints. Raydium is tried
// first; Orca fills in mints Raydium does not carry.
type DEX struct {
	raydiumBase string
	orcaBase    string
	client      *Client
}

func NewDEX(raydiumBase, orcaBase string, timeout time.Duration) *DEX {
	return &DEX{
		raydiumBase: strings.TrimRight(raydiumBase, "/"),
		orcaBase:    strings.TrimRight(orcaBase, "/"),
		client:      NewClient("dex", timeout, 2),
	}
}

// Pools lists the tracked pools across both venues. A venue failure is
// degraded service, not a hard error: the other venue's pools still flow.
func (d *DEX) Pools(ctx context.Context) ([]PoolData, error) {
	var out []PoolData

	raydium, rayErr := d.venuePools(ctx, d.raydiumBase, "raydium")
	out = append(out, raydium...)

	orca, orcaErr := d.venuePools(ctx, d.orcaBase, "orca")
	out = append(out, orca...)

	if rayErr != nil && orcaErr != nil {
		return nil, fmt.Errorf("all venues failed: raydium: %v; orca: %v", rayErr, orcaErr)
	}
	return out, nil
}

func (d *DEX) venuePools(ctx context.Context, base, source string) ([]PoolData, error) {
	var pools []PoolData
	if err := d.client.GetJSON(ctx, base+"/pools", &pools); err != nil {
		return nil, err
	}
	for i := range pools {
		pools[i].Source = source
	}
	return pools, nil
}

// PoolInfoByMint returns the deepest pool pricing the mint, or false
// when neither venue carries it.
func (d *DEX) PoolInfoByMint(ctx context.Context, mint string) (PoolInfo, bool, error) {
	pools, err := d.Pools(ctx)
	if err != nil {
		return PoolInfo{}, false, err
	}

	best := PoolInfo{}
	found := false
	for _, p := range pools {
		if p.MintBase != mint {
			continue
		}
		if !found || p.LiquidityUSD > best.LiquidityUSD {
			best = PoolInfo{Price: p.Price, LiquidityUSD: p.LiquidityUSD, Source: p.Source}
			found = true
		}
	}
	return best, found, nil
}
