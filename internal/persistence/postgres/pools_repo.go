package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/soulscout/soulscout/internal/models"
)

// PoolsRepo stores the pool registry and the per-pool bar history the
// ingestor produces.
type PoolsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewPoolsRepo(db *sqlx.DB) *PoolsRepo {
	return &PoolsRepo{db: db, timeout: defaultQueryTimeout}
}

// Upsert registers a pool and returns its id.
func (r *PoolsRepo) Upsert(ctx context.Context, address, mintBase, mintQuote, dex string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var id int64
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO pools (address, mint_base, mint_quote, dex)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (address) DO UPDATE SET dex = $4
		RETURNING id`,
		address, mintBase, mintQuote, dex).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert pool %s: %w", address, err)
	}
	return id, nil
}

// Save5mStats stores one completed 5m bar together with the pool metrics
// current at close time.
func (r *PoolsRepo) Save5mStats(ctx context.Context, poolID int64, bar models.OHLCVBar,
	liqUSD, vol24hUSD, spreadPct, impactPct float64, route models.Route, dq string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pool_stats_5m
			(pool_id, ts, price, liq_usd, vol24h_usd, spread_pct, impact_1pct_pct,
			 route_ok, route_hops, route_dev_pct, dq)
		VALUES ($1, to_timestamp($2), $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (pool_id, ts) DO UPDATE SET
			price = $3, liq_usd = $4, vol24h_usd = $5`,
		poolID, bar.TsMs/1000, bar.Close, liqUSD, vol24hUSD, spreadPct, impactPct,
		route.OK, route.Hops, route.DevPct, dq)
	if err != nil {
		return fmt.Errorf("save 5m stats for pool %d: %w", poolID, err)
	}
	return nil
}

// Save15mBar stores one completed 15m OHLCV bar.
func (r *PoolsRepo) Save15mBar(ctx context.Context, poolID int64, bar models.OHLCVBar) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pool_stats_15m (pool_id, ts, o, h, l, c, v_usd)
		VALUES ($1, to_timestamp($2), $3, $4, $5, $6, $7)
		ON CONFLICT (pool_id, ts) DO UPDATE SET
			o = $3, h = $4, l = $5, c = $6, v_usd = $7`,
		poolID, bar.TsMs/1000, bar.Open, bar.High, bar.Low, bar.Close, bar.VolumeUSD)
	if err != nil {
		return fmt.Errorf("save 15m bar for pool %d: %w", poolID, err)
	}
	return nil
}

// TrackFirstLiquidity records when a mint first crossed the tracking
// threshold. Later sightings never move the timestamp.
func (r *PoolsRepo) TrackFirstLiquidity(ctx context.Context, mint string, liqUSD float64, poolID int64) error {
	if liqUSD < 25_000.0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO token_first_liq (mint, first_liq_ts, first_pool_id)
		VALUES ($1, now(), $2)
		ON CONFLICT (mint) DO NOTHING`,
		mint, poolID)
	if err != nil {
		return fmt.Errorf("track first liquidity for %s: %w", mint, err)
	}
	return nil
}

// FirstLiquidityTs returns when the mint first crossed the threshold, or
// zero time when unseen.
func (r *PoolsRepo) FirstLiquidityTs(ctx context.Context, mint string) (time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var ts time.Time
	err := r.db.QueryRowxContext(ctx,
		`SELECT first_liq_ts FROM token_first_liq WHERE mint = $1`, mint).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("first liquidity for %s: %w", mint, err)
	}
	return ts, nil
}
