package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/soulscout/soulscout/internal/domain/scoring"
)

// Config carries every service's tunables. Values come from the
// environment with production defaults; a .env file is honored in dev.
type Config struct {
	ServiceName string
	LogLevel    string

	RedisURL string
	PgDSN    string

	StreamMarket   string
	StreamAlerts   string
	StreamOutbound string
	StreamRequests string
	StreamReplies  string
	StreamAudit    string

	ListenAddr string
	ListenPort int

	// Analytics thresholds and throttle windows.
	ActionableBaseThreshold  int
	RiskOnAdj                int
	RiskOffAdj               int
	GlobalActionableMaxPerHr int
	CooldownActionableHours  int
	CooldownHeadsUpHours     int
	ReentryGuardHours        int
	DedupTTLSeconds          int
	WatchWindowMin           int
	PipelineWorkers          int
	StateMaxAgeHours         int

	// External call bounds.
	HTTPTimeout time.Duration
	BlockMs     int

	// Provider endpoints.
	CoinGeckoBase   string
	RaydiumBase     string
	OrcaBase        string
	JupiterBase     string
	RPCUrls         []string
	PoolStreamURL   string
	PollIntervalSec int

	// Gateway.
	TgBotToken       string
	TgOwnerID        int64
	RateLimitPerMin  int
	GuestDefaultMins int

	// Portfolio.
	DustMinUSD float64
	HaircutPct int

	// Optional YAML file with signal weights and the recognized list.
	TuningFile string
}

// Load reads the environment for the named service. Missing required
// values are a startup failure, not a runtime one.
func Load(service string) (Config, error) {
	// .env is a developer convenience; absence is normal in production.
	_ = godotenv.Load()

	cfg := Config{
		ServiceName: service,
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379"),
		PgDSN:    getEnv("PG_DSN", ""),

		StreamMarket:   getEnv("STREAM_MARKET", "soul.market.updates"),
		StreamAlerts:   getEnv("STREAM_ALERTS", "soul.alerts"),
		StreamOutbound: getEnv("STREAM_OUTBOUND", "soul.outbound.alerts"),
		StreamRequests: getEnv("STREAM_REQ", "soul.cmd.requests"),
		StreamReplies:  getEnv("STREAM_REP", "soul.cmd.replies"),
		StreamAudit:    getEnv("STREAM_AUDIT", "soul.audit"),

		ListenAddr: getEnv("LISTEN_ADDR", "0.0.0.0"),
		ListenPort: getEnvInt("LISTEN_PORT", 8083),

		ActionableBaseThreshold:  getEnvInt("ACTIONABLE_BASE_THRESHOLD", 70),
		RiskOnAdj:                getEnvInt("RISK_ON_ADJ", -10),
		RiskOffAdj:               getEnvInt("RISK_OFF_ADJ", 10),
		GlobalActionableMaxPerHr: getEnvInt("GLOBAL_ACTIONABLE_MAX_PER_HOUR", 5),
		CooldownActionableHours:  getEnvInt("COOLDOWN_ACTIONABLE_HOURS", 6),
		CooldownHeadsUpHours:     getEnvInt("COOLDOWN_HEADSUP_HOURS", 1),
		ReentryGuardHours:        getEnvInt("REENTRY_GUARD_HOURS", 12),
		DedupTTLSeconds:          getEnvInt("DEDUP_TTL_SECONDS", 21_600),
		WatchWindowMin:           getEnvInt("WATCH_WINDOW_MIN", 1_440),
		PipelineWorkers:          getEnvInt("PIPELINE_WORKERS", 4),
		StateMaxAgeHours:         getEnvInt("STATE_MAX_AGE_HOURS", 48),

		HTTPTimeout: time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 8)) * time.Second,
		BlockMs:     getEnvInt("BLOCK_MS", 1000),

		CoinGeckoBase:   getEnv("COINGECKO_BASE", "https://api.coingecko.com/api/v3"),
		RaydiumBase:     getEnv("RAYDIUM_BASE", "https://api.raydium.io/v2"),
		OrcaBase:        getEnv("ORCA_BASE", "https://api.orca.so"),
		JupiterBase:     getEnv("JUPITER_BASE", "https://quote-api.jup.ag/v6"),
		RPCUrls:         getEnvList("RPC_URLS", "https://api.mainnet-beta.solana.com"),
		PoolStreamURL:   getEnv("POOL_STREAM_URL", ""),
		PollIntervalSec: getEnvInt("POLL_INTERVAL_SECONDS", 30),

		TgBotToken:       getEnv("TG_BOT_TOKEN", ""),
		TgOwnerID:        getEnvInt64("TG_OWNER_ID", 0),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_MSGS_PER_MIN", 20),
		GuestDefaultMins: getEnvInt("GUEST_DEFAULT_MINUTES", 30),

		DustMinUSD: getEnvFloat("DUST_MIN_USD", 1.0),
		HaircutPct: getEnvInt("HAIRCUT_PCT", 50),

		TuningFile: getEnv("TUNING_FILE", ""),
	}

	if err := cfg.validate(service); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validate enforces the per-service required values.
func (c Config) validate(service string) error {
	switch service {
	case "analytics", "portfolio", "ingest":
		if c.PgDSN == "" {
			return fmt.Errorf("PG_DSN is required for %s", service)
		}
	case "gateway":
		if c.TgBotToken == "" {
			return fmt.Errorf("TG_BOT_TOKEN is required for gateway")
		}
		if c.TgOwnerID == 0 {
			return fmt.Errorf("TG_OWNER_ID is required for gateway")
		}
	}
	return nil
}

// Tuning is the optional YAML overlay: signal weights plus the recognized
// widely-mirrored token list.
type Tuning struct {
	Weights    scoring.Weights `yaml:"weights"`
	Recognized []string        `yaml:"recognized_tokens"`
}

// LoadTuning reads the tuning file when configured, falling back to the
// default weights otherwise.
func (c Config) LoadTuning() (Tuning, error) {
	t := Tuning{Weights: scoring.DefaultWeights()}
	if c.TuningFile == "" {
		return t, nil
	}

	body, err := os.ReadFile(c.TuningFile)
	if err != nil {
		return t, fmt.Errorf("read tuning file: %w", err)
	}
	if err := yaml.Unmarshal(body, &t); err != nil {
		return t, fmt.Errorf("parse tuning file: %w", err)
	}
	return t, nil
}

func getEnv(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func getEnvList(name, def string) []string {
	raw := getEnv(name, def)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvInt(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("var", name).Str("value", v).Int("default", def).Msg("invalid integer env value")
		return def
	}
	return n
}

func getEnvInt64(name string, def int64) int64 {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Warn().Str("var", name).Str("value", v).Msg("invalid integer env value")
		return def
	}
	return n
}

func getEnvFloat(name string, def float64) float64 {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Warn().Str("var", name).Str("value", v).Msg("invalid float env value")
		return def
	}
	return f
}
