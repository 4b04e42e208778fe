package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/soulscout/soulscout/internal/models"
)

// ArchivedAlert is one persisted alert row.
type ArchivedAlert struct {
	ID         int64     `db:"id"`
	Ts         time.Time `db:"ts"`
	Symbol     string    `db:"symbol"`
	Severity   string    `db:"severity"`
	Price      float64   `db:"price"`
	Confidence float64   `db:"confidence"`
	CorrID     string    `db:"corr_id"`
	Body       []byte    `db:"body"`
	CreatedAt  time.Time `db:"created_at"`
}

// AlertsRepo archives every emitted alert for later review.
type AlertsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewAlertsRepo(db *sqlx.DB) *AlertsRepo {
	return &AlertsRepo{db: db, timeout: defaultQueryTimeout}
}

// Insert archives the alert. The full payload is stored as JSONB next to
// the indexed columns.
func (r *AlertsRepo) Insert(ctx context.Context, a models.Alert) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	ts, err := time.Parse(time.RFC3339, a.Ts)
	if err != nil {
		ts = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO alerts (ts, symbol, severity, price, confidence, corr_id, body)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ts, a.Symbol, a.Severity, a.Price, a.Confidence, a.CorrID, body)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// ListRecent returns the newest alerts for a symbol, newest first. An
// empty symbol lists across all symbols.
func (r *AlertsRepo) ListRecent(ctx context.Context, symbol string, limit int) ([]ArchivedAlert, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var out []ArchivedAlert
	var err error
	if symbol == "" {
		err = r.db.SelectContext(ctx, &out, `
			SELECT id, ts, symbol, severity, price, confidence, corr_id, body, created_at
			FROM alerts ORDER BY ts DESC LIMIT $1`, limit)
	} else {
		err = r.db.SelectContext(ctx, &out, `
			SELECT id, ts, symbol, severity, price, confidence, corr_id, body, created_at
			FROM alerts WHERE symbol = $1 ORDER BY ts DESC LIMIT $2`, symbol, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return out, nil
}
