package providers

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const tokenProgramID = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"

// TokenAccount is one SPL token balance held by a wallet, with the raw
// amount already scaled by decimals.
type TokenAccount struct {
	Mint     string
	Amount   float64
	Decimals int
}

// SolanaRPC talks JSON-RPC to a rotating set of endpoints. A failed call
// rotates to the next endpoint before surfacing the error.
type SolanaRPC struct {
	urls   []string
	client *Client

	mu      sync.Mutex
	current int
}

func NewSolanaRPC(urls []string, timeout time.Duration) (*SolanaRPC, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("at least one RPC url is required")
	}
	return &SolanaRPC{
		urls:   urls,
		client: NewClient("solana-rpc", timeout, 10),
	}, nil
}

func (s *SolanaRPC) endpoint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.urls[s.current]
}

func (s *SolanaRPC) rotate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = (s.current + 1) % len(s.urls)
	log.Warn().Str("endpoint", s.urls[s.current]).Msg("rotated solana rpc endpoint")
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type tokenAccountsResponse struct {
	Result struct {
		Value []struct {
			Account struct {
				Data struct {
					Parsed struct {
						Info struct {
							Mint        string `json:"mint"`
							TokenAmount struct {
								Amount   string `json:"amount"`
								Decimals int    `json:"decimals"`
							} `json:"tokenAmount"`
						} `json:"info"`
					} `json:"parsed"`
				} `json:"data"`
			} `json:"account"`
		} `json:"value"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// TokenAccountsByOwner lists non-zero SPL balances for a wallet.
func (s *SolanaRPC) TokenAccountsByOwner(ctx context.Context, wallet string) ([]TokenAccount, error) {
	payload := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "getTokenAccountsByOwner",
		Params: []any{
			wallet,
			map[string]string{"programId": tokenProgramID},
			map[string]string{"encoding": "jsonParsed"},
		},
	}

	var resp tokenAccountsResponse
	if err := s.client.PostJSON(ctx, s.endpoint(), payload, &resp); err != nil {
		s.rotate()
		return nil, fmt.Errorf("token accounts for %s: %w", wallet, err)
	}
	if resp.Error != nil {
		s.rotate()
		return nil, fmt.Errorf("token accounts for %s: rpc error %d: %s",
			wallet, resp.Error.Code, resp.Error.Message)
	}

	var out []TokenAccount
	for _, v := range resp.Result.Value {
		info := v.Account.Data.Parsed.Info
		raw, err := strconv.ParseUint(info.TokenAmount.Amount, 10, 64)
		if err != nil || raw == 0 {
			continue
		}
		out = append(out, TokenAccount{
			Mint:     info.Mint,
			Amount:   float64(raw) / math.Pow10(info.TokenAmount.Decimals),
			Decimals: info.TokenAmount.Decimals,
		})
	}
	return out, nil
}

// Healthy probes the current endpoint.
func (s *SolanaRPC) Healthy(ctx context.Context) bool {
	payload := rpcRequest{JSONRPC: "2.0", ID: 1, Method: "getHealth", Params: []any{}}

	var resp struct {
		Result string `json:"result"`
	}
	if err := s.client.PostJSON(ctx, s.endpoint(), payload, &resp); err != nil {
		s.rotate()
		return false
	}
	return resp.Result == "ok"
}
