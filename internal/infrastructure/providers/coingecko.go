package providers

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// CoinGecko resolves USD prices for listed tokens. Unlisted tokens are
// not an error; callers fall through to the DEX oracle.
type CoinGecko struct {
	baseURL string
	client  *Client
}

func NewCoinGecko(baseURL string, timeout time.Duration) *CoinGecko {
	return &CoinGecko{
		baseURL: strings.TrimRight(baseURL, "/"),
		// Free tier allows roughly 30 calls per minute.
		client: NewClient("coingecko", timeout, 0.5),
	}
}

// PriceUSD returns the USD price and whether the token is listed.
func (g *CoinGecko) PriceUSD(ctx context.Context, symbol string) (float64, bool, error) {
	id := strings.ToLower(symbol)
	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", g.baseURL, id)

	var resp map[string]map[string]float64
	if err := g.client.GetJSON(ctx, url, &resp); err != nil {
		return 0, false, err
	}

	entry, ok := resp[id]
	if !ok {
		return 0, false, nil
	}
	price, ok := entry["usd"]
	if !ok {
		return 0, false, nil
	}
	return price, true, nil
}
