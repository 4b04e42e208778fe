package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Snapshot is one stored portfolio valuation run.
type Snapshot struct {
	ID                 int64     `db:"id"`
	Ts                 time.Time `db:"ts"`
	TotalUSD           float64   `db:"total_usd"`
	IncludedCount      int       `db:"included_count"`
	ExcludedCount      int       `db:"excluded_count"`
	HaircutSubtotalUSD float64   `db:"haircut_subtotal_usd"`
	Notes              string    `db:"notes"`
}

// HoldingValue is one valued position within a snapshot.
type HoldingValue struct {
	SnapshotID int64   `db:"snapshot_id"`
	Mint       string  `db:"mint"`
	Symbol     string  `db:"symbol"`
	Amount     float64 `db:"amount"`
	USDPrice   float64 `db:"usd_price"`
	USDValue   float64 `db:"usd_value"`
	Tag        string  `db:"valuation_tag"`
}

// SnapshotsRepo archives portfolio valuations for history queries.
type SnapshotsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewSnapshotsRepo(db *sqlx.DB) *SnapshotsRepo {
	return &SnapshotsRepo{db: db, timeout: defaultQueryTimeout}
}

// Save stores the summary row and its holdings in one transaction and
// returns the snapshot id.
func (r *SnapshotsRepo) Save(ctx context.Context, s Snapshot, holdings []HoldingValue) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowxContext(ctx, `
		INSERT INTO portfolio_snapshots
			(total_usd, included_count, excluded_count, haircut_subtotal_usd, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		s.TotalUSD, s.IncludedCount, s.ExcludedCount, s.HaircutSubtotalUSD, s.Notes).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}

	for _, h := range holdings {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO holding_values
				(snapshot_id, mint, symbol, amount, usd_price, usd_value, valuation_tag)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			id, h.Mint, h.Symbol, h.Amount, h.USDPrice, h.USDValue, h.Tag)
		if err != nil {
			return 0, fmt.Errorf("insert holding value: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit snapshot: %w", err)
	}
	return id, nil
}

// Latest returns the most recent snapshot, or nil when none exist.
func (r *SnapshotsRepo) Latest(ctx context.Context) (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var s Snapshot
	err := r.db.GetContext(ctx, &s, `
		SELECT id, ts, total_usd, included_count, excluded_count, haircut_subtotal_usd, notes
		FROM portfolio_snapshots ORDER BY ts DESC LIMIT 1`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}
	return &s, nil
}
