package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/soulscout/soulscout/internal/models"
)

const usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

// Jupiter quotes aggregator routes. Route quality feeds the execution
// signal: an unroutable token is untradeable regardless of score.
type Jupiter struct {
	baseURL string
	client  *Client
}

func NewJupiter(baseURL string, timeout time.Duration) *Jupiter {
	return &Jupiter{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  NewClient("jupiter", timeout, 5),
	}
}

type jupiterQuote struct {
	RoutePlan []struct {
		SwapInfo struct {
			Label string `json:"label"`
		} `json:"swapInfo"`
	} `json:"routePlan"`
	PriceImpactPct string `json:"priceImpactPct"`
}

// RouteToUSDC quotes a small probe swap from mint into USDC. A failed
// quote reports Route.OK=false rather than an error: tokens without
// routes are expected.
func (j *Jupiter) RouteToUSDC(ctx context.Context, mint string) models.Route {
	url := fmt.Sprintf("%s/quote?inputMint=%s&outputMint=%s&amount=1000000",
		j.baseURL, mint, usdcMint)

	var quote jupiterQuote
	if err := j.client.GetJSON(ctx, url, &quote); err != nil {
		return models.Route{OK: false}
	}
	if len(quote.RoutePlan) == 0 {
		return models.Route{OK: false}
	}

	devPct := 0.0
	fmt.Sscanf(quote.PriceImpactPct, "%f", &devPct)

	return models.Route{
		OK:     true,
		Hops:   len(quote.RoutePlan),
		DevPct: devPct,
	}
}
