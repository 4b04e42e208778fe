package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
)

const defaultQueryTimeout = 5 * time.Second

// Connect opens and verifies a pooled connection.
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Bootstrap creates the schema when absent. Services run it at startup;
// it is idempotent.
func Bootstrap(ctx context.Context, db *sqlx.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS alerts (
			id          BIGSERIAL PRIMARY KEY,
			ts          TIMESTAMPTZ NOT NULL,
			symbol      TEXT NOT NULL,
			severity    TEXT NOT NULL,
			price       DOUBLE PRECISION NOT NULL,
			confidence  DOUBLE PRECISION NOT NULL,
			corr_id     TEXT NOT NULL,
			body        JSONB NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS alerts_symbol_ts_idx ON alerts (symbol, ts DESC)`,
		`CREATE TABLE IF NOT EXISTS audit_events (
			id          BIGSERIAL PRIMARY KEY,
			ts          TIMESTAMPTZ NOT NULL,
			actor       TEXT NOT NULL,
			action      TEXT NOT NULL,
			detail      JSONB,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS wallets (
			address     TEXT PRIMARY KEY,
			label       TEXT NOT NULL DEFAULT '',
			added_by    BIGINT NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS pools (
			id          BIGSERIAL PRIMARY KEY,
			address     TEXT UNIQUE NOT NULL,
			mint_base   TEXT NOT NULL,
			mint_quote  TEXT NOT NULL,
			dex         TEXT NOT NULL,
			first_seen  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS pool_stats_5m (
			pool_id         BIGINT NOT NULL REFERENCES pools(id),
			ts              TIMESTAMPTZ NOT NULL,
			price           DOUBLE PRECISION,
			liq_usd         DOUBLE PRECISION,
			vol24h_usd      DOUBLE PRECISION,
			spread_pct      DOUBLE PRECISION,
			impact_1pct_pct DOUBLE PRECISION,
			route_ok        BOOLEAN,
			route_hops      INT,
			route_dev_pct   DOUBLE PRECISION,
			dq              TEXT,
			PRIMARY KEY (pool_id, ts)
		)`,
		`CREATE TABLE IF NOT EXISTS pool_stats_15m (
			pool_id  BIGINT NOT NULL REFERENCES pools(id),
			ts       TIMESTAMPTZ NOT NULL,
			o        DOUBLE PRECISION,
			h        DOUBLE PRECISION,
			l        DOUBLE PRECISION,
			c        DOUBLE PRECISION,
			v_usd    DOUBLE PRECISION,
			PRIMARY KEY (pool_id, ts)
		)`,
		`CREATE TABLE IF NOT EXISTS token_first_liq (
			mint           TEXT PRIMARY KEY,
			first_liq_ts   TIMESTAMPTZ NOT NULL,
			first_pool_id  BIGINT REFERENCES pools(id)
		)`,
		`CREATE TABLE IF NOT EXISTS portfolio_snapshots (
			id                   BIGSERIAL PRIMARY KEY,
			ts                   TIMESTAMPTZ NOT NULL DEFAULT now(),
			total_usd            DOUBLE PRECISION NOT NULL,
			included_count       INT NOT NULL,
			excluded_count       INT NOT NULL,
			haircut_subtotal_usd DOUBLE PRECISION NOT NULL,
			notes                TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS holding_values (
			snapshot_id   BIGINT NOT NULL REFERENCES portfolio_snapshots(id) ON DELETE CASCADE,
			mint          TEXT NOT NULL,
			symbol        TEXT NOT NULL,
			amount        DOUBLE PRECISION NOT NULL,
			usd_price     DOUBLE PRECISION,
			usd_value     DOUBLE PRECISION,
			valuation_tag TEXT NOT NULL,
			PRIMARY KEY (snapshot_id, mint)
		)`,
	}

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap schema: %w", err)
		}
	}
	return nil
}
