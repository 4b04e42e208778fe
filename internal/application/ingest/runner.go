package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/soulscout/soulscout/internal/bus"
	"github.com/soulscout/soulscout/internal/domain/bars"
	"github.com/soulscout/soulscout/internal/infrastructure/providers"
	"github.com/soulscout/soulscout/internal/metrics"
	"github.com/soulscout/soulscout/internal/models"
)

// dailyBars approximates per-5m volume from a 24h figure.
const dailyBars = 288.0

type poolSource interface {
	Pools(ctx context.Context) ([]providers.PoolData, error)
}

type routeQuoter interface {
	RouteToUSDC(ctx context.Context, mint string) models.Route
}

type poolStore interface {
	Upsert(ctx context.Context, address, mintBase, mintQuote, dex string) (int64, error)
	Save5mStats(ctx context.Context, poolID int64, bar models.OHLCVBar,
		liqUSD, vol24hUSD, spreadPct, impactPct float64, route models.Route, dq string) error
	Save15mBar(ctx context.Context, poolID int64, bar models.OHLCVBar) error
	TrackFirstLiquidity(ctx context.Context, mint string, liqUSD float64, poolID int64) error
	FirstLiquidityTs(ctx context.Context, mint string) (time.Time, error)
}

type publisher interface {
	Append(ctx context.Context, stream string, payload any) (string, error)
}

type poolSynths struct {
	id   int64
	b5m  *bars.Synthesizer
	b15m *bars.Synthesizer
}

// Runner polls the DEX venues, synthesizes bars per pool and publishes
// normalized market updates for analytics.
type Runner struct {
	source  poolSource
	quoter  routeQuoter
	store   poolStore
	pub     publisher
	metrics *metrics.Registry

	stream       string
	pollInterval time.Duration

	pools    map[string]*poolSynths
	firstLiq map[string]time.Time
	now      func() time.Time
}

func NewRunner(source poolSource, quoter routeQuoter, store poolStore, pub publisher,
	reg *metrics.Registry, pollInterval time.Duration) *Runner {
	return &Runner{
		source:       source,
		quoter:       quoter,
		store:        store,
		pub:          pub,
		metrics:      reg,
		stream:       bus.StreamMarket,
		pollInterval: pollInterval,
		pools:        make(map[string]*poolSynths),
		firstLiq:     make(map[string]time.Time),
		now:          time.Now,
	}
}

// Run sweeps the venues on the poll interval and folds in websocket
// frames from streamCh as they arrive. streamCh may be nil.
func (r *Runner) Run(ctx context.Context, streamCh <-chan providers.PoolData) error {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	log.Info().Dur("interval", r.pollInterval).Msg("ingest loop started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("ingest loop stopped")
			return ctx.Err()
		case p, ok := <-streamCh:
			if !ok {
				streamCh = nil
				continue
			}
			r.handlePool(ctx, p)
		case <-ticker.C:
			if err := r.Poll(ctx); err != nil {
				log.Error().Err(err).Msg("poll sweep failed")
			}
		}
	}
}

// Poll fetches every venue pool once and processes each snapshot.
func (r *Runner) Poll(ctx context.Context) error {
	pools, err := r.source.Pools(ctx)
	if err != nil {
		if r.metrics != nil {
			r.metrics.ProviderCalls.WithLabelValues("dex", "error").Inc()
		}
		return fmt.Errorf("fetch pools: %w", err)
	}
	if r.metrics != nil {
		r.metrics.ProviderCalls.WithLabelValues("dex", "ok").Inc()
	}

	for _, p := range pools {
		r.handlePool(ctx, p)
	}
	log.Debug().Int("pools", len(pools)).Msg("poll sweep complete")
	return nil
}

func (r *Runner) handlePool(ctx context.Context, raw providers.PoolData) {
	n := Normalize(raw)
	nowMs := r.now().UnixMilli()

	ps, err := r.synthsFor(ctx, n)
	if err != nil {
		log.Error().Err(err).Str("pool", n.Address).Msg("pool registration failed")
		if r.metrics != nil {
			r.metrics.UpdatesProcessed.WithLabelValues("ingest", "error").Inc()
		}
		return
	}

	tick := models.PriceTick{
		Price:     n.Price,
		VolumeUSD: n.Vol24hUSD / dailyBars,
		TsMs:      nowMs,
	}
	ps.b5m.AddTick(tick)
	ps.b15m.AddTick(tick)

	route := r.quoter.RouteToUSDC(ctx, n.MintBase)

	for _, bar := range ps.b5m.CompletedBars() {
		if err := r.store.Save5mStats(ctx, ps.id, bar,
			n.LiqUSD, n.Vol24hUSD, n.SpreadPct, n.Impact1PctPct, route, n.DQ); err != nil {
			log.Error().Err(err).Str("pool", n.Address).Msg("persist 5m stats failed")
		}
	}
	for _, bar := range ps.b15m.CompletedBars() {
		if err := r.store.Save15mBar(ctx, ps.id, bar); err != nil {
			log.Error().Err(err).Str("pool", n.Address).Msg("persist 15m bar failed")
		}
	}

	if err := r.store.TrackFirstLiquidity(ctx, n.MintBase, n.LiqUSD, ps.id); err != nil {
		log.Warn().Err(err).Str("mint", n.MintBase).Msg("first liquidity tracking failed")
	}

	update := models.MarketUpdate{
		Symbol:        n.Symbol,
		Pool:          n.Address,
		MintBase:      n.MintBase,
		MintQuote:     n.MintQuote,
		Price:         n.Price,
		LiqUSD:        n.LiqUSD,
		Vol24hUSD:     n.Vol24hUSD,
		SpreadPct:     n.SpreadPct,
		Impact1PctPct: n.Impact1PctPct,
		AgeHours:      r.ageHours(ctx, n.MintBase),
		Route:         route,
		Bar5m:         r.currentBar(ps.b5m, n.Price),
		Bar15m:        r.currentBar(ps.b15m, n.Price),
		DQ:            n.DQ,
		TsMs:          nowMs,
	}

	if _, err := r.pub.Append(ctx, r.stream, update); err != nil {
		log.Error().Err(err).Str("symbol", n.Symbol).Msg("publish market update failed")
		if r.metrics != nil {
			r.metrics.BusErrors.WithLabelValues("ingest", "append").Inc()
		}
		return
	}
	if r.metrics != nil {
		r.metrics.UpdatesProcessed.WithLabelValues("ingest", "ok").Inc()
	}
}

func (r *Runner) synthsFor(ctx context.Context, n NormalizedPool) (*poolSynths, error) {
	if ps, ok := r.pools[n.Address]; ok {
		return ps, nil
	}

	id, err := r.store.Upsert(ctx, n.Address, n.MintBase, n.MintQuote, n.Dex)
	if err != nil {
		return nil, err
	}

	b5m, err := bars.NewSynthesizer(5 * time.Minute)
	if err != nil {
		return nil, err
	}
	b15m, err := bars.NewSynthesizer(15 * time.Minute)
	if err != nil {
		return nil, err
	}

	ps := &poolSynths{id: id, b5m: b5m, b15m: b15m}
	r.pools[n.Address] = ps
	return ps, nil
}

// ageHours reports time since the mint first crossed the liquidity
// tracking threshold, consulting the store once per mint.
func (r *Runner) ageHours(ctx context.Context, mint string) float64 {
	first, ok := r.firstLiq[mint]
	if !ok {
		ts, err := r.store.FirstLiquidityTs(ctx, mint)
		if err != nil {
			log.Warn().Err(err).Str("mint", mint).Msg("first liquidity lookup failed")
			return 0
		}
		first = ts
		if !ts.IsZero() {
			r.firstLiq[mint] = ts
		}
	}
	if first.IsZero() {
		return 0
	}
	return r.now().Sub(first).Hours()
}

func (r *Runner) currentBar(s *bars.Synthesizer, fallbackPrice float64) models.Bar {
	bar, ok := s.CurrentBar()
	if !ok {
		return models.Bar{C: fallbackPrice}
	}
	return models.Bar{O: bar.Open, H: bar.High, L: bar.Low, C: bar.Close, VUSD: bar.VolumeUSD}
}
