package models

import "time"

// Data-quality tags carried on every MarketUpdate.
const (
	DQOk       = "ok"
	DQDegraded = "degraded"
)

// Route describes the best swap path back to the quote asset.
type Route struct {
	OK     bool    `json:"ok"`
	Hops   int     `json:"hops"`
	DevPct float64 `json:"deviation_percent"`
}

// Bar is a single OHLCV bar attached to a MarketUpdate.
type Bar struct {
	O    float64 `json:"o"`
	H    float64 `json:"h"`
	L    float64 `json:"l"`
	C    float64 `json:"c"`
	VUSD float64 `json:"v_usd"`
}

// MarketUpdate is the normalized per-pool unit flowing from the ingestor
// to analytics. Price, liquidity and volume are non-negative; when any
// required field is missing or zero the DQ tag must be "degraded".
type MarketUpdate struct {
	Symbol        string  `json:"symbol"`
	Pool          string  `json:"pool"`
	MintBase      string  `json:"mint_base"`
	MintQuote     string  `json:"mint_quote"`
	Price         float64 `json:"price"`
	LiqUSD        float64 `json:"liq_usd"`
	Vol24hUSD     float64 `json:"vol24h_usd"`
	SpreadPct     float64 `json:"spread_pct"`
	Impact1PctPct float64 `json:"impact_1pct_pct"`
	AgeHours      float64 `json:"age_hours"`
	Route         Route   `json:"route"`
	Bar5m         Bar     `json:"bar_5m"`
	Bar15m        Bar     `json:"bar_15m"`
	DQ            string  `json:"dq"`
	TsMs          int64   `json:"ts_ms"`
}

// PriceTick is a raw trade observation before bar synthesis.
type PriceTick struct {
	Price     float64 `json:"price"`
	VolumeUSD float64 `json:"volume_usd"`
	TsMs      int64   `json:"ts_ms"`
}

// OHLCVBar is an emitted fixed-interval bar. Degraded marks bars built
// from fewer than three ticks.
type OHLCVBar struct {
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Close     float64 `json:"c"`
	VolumeUSD float64 `json:"v_usd"`
	TsMs      int64   `json:"ts_ms"`
	Degraded  bool    `json:"degraded"`
}

// Alert is the outbound payload published to the alerts stream.
type Alert struct {
	Severity     string   `json:"severity"`
	Symbol       string   `json:"symbol"`
	Price        float64  `json:"price"`
	Confidence   int      `json:"confidence"`
	Lines        []string `json:"lines"`
	Plan         string   `json:"plan"`
	SolPath      string   `json:"sol_path"`
	EstImpactPct float64  `json:"est_impact_pct"`
	CorrID       string   `json:"corr_id,omitempty"`
	Ts           string   `json:"ts"`
}

// CommandFrom identifies the requesting user and their role.
type CommandFrom struct {
	TgUserID int64  `json:"tg_user_id"`
	Role     string `json:"role"`
}

// Command is the request envelope published by the gateway.
type Command struct {
	Type   string         `json:"type"`
	Cmd    string         `json:"cmd"`
	CorrID string         `json:"corr_id"`
	Ts     string         `json:"ts"`
	Args   map[string]any `json:"args"`
	From   CommandFrom    `json:"from"`
}

// Reply is the response envelope correlated back to a Command.
type Reply struct {
	CorrID  string         `json:"corr_id"`
	OK      bool           `json:"ok"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
	Ts      string         `json:"ts"`
}

// Outbound is a rendered Telegram-HTML message ready for delivery. A zero
// ChatID means the owner chat.
type Outbound struct {
	ChatID    int64  `json:"chat_id,omitempty"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
	CorrID    string `json:"corr_id,omitempty"`
	Ts        string `json:"ts"`
}

// AuditEvent records a user-visible action on the audit stream.
type AuditEvent struct {
	Kind   string `json:"kind"`
	Actor  string `json:"actor"`
	Detail string `json:"detail"`
	Ts     string `json:"ts"`
}

// ISO8601 renders t the way every envelope timestamps itself.
func ISO8601(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// NowISO8601 is the envelope timestamp for the current instant.
func NowISO8601() string {
	return ISO8601(time.Now())
}
