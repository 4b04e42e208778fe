package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ErrWalletExists marks an attempt to register an already tracked address.
var ErrWalletExists = errors.New("wallet already registered")

// Wallet is one tracked Solana address.
type Wallet struct {
	Address   string    `db:"address"`
	Label     string    `db:"label"`
	AddedBy   int64     `db:"added_by"`
	CreatedAt time.Time `db:"created_at"`
}

// WalletsRepo is the registry of wallets the portfolio service values.
type WalletsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewWalletsRepo(db *sqlx.DB) *WalletsRepo {
	return &WalletsRepo{db: db, timeout: defaultQueryTimeout}
}

// Add registers an address. Duplicate addresses return ErrWalletExists.
func (r *WalletsRepo) Add(ctx context.Context, address, label string, addedBy int64) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO wallets (address, label, added_by)
		VALUES ($1, $2, $3)`,
		address, label, addedBy)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrWalletExists
		}
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

// Remove deletes an address, reporting whether it was present.
func (r *WalletsRepo) Remove(ctx context.Context, address string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM wallets WHERE address = $1`, address)
	if err != nil {
		return false, fmt.Errorf("delete wallet: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete wallet: %w", err)
	}
	return n > 0, nil
}

// List returns every tracked wallet, oldest first.
func (r *WalletsRepo) List(ctx context.Context) ([]Wallet, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var out []Wallet
	if err := r.db.SelectContext(ctx, &out, `
		SELECT address, label, added_by, created_at
		FROM wallets ORDER BY created_at`); err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	return out, nil
}
