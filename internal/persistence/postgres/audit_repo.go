package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// AuditRepo persists command audit events alongside the audit stream, so
// the trail survives stream trimming.
type AuditRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewAuditRepo(db *sqlx.DB) *AuditRepo {
	return &AuditRepo{db: db, timeout: defaultQueryTimeout}
}

// Record stores one audit event. detail may be nil.
func (r *AuditRepo) Record(ctx context.Context, actor, action string, detail map[string]any) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var body []byte
	if detail != nil {
		var err error
		body, err = json.Marshal(detail)
		if err != nil {
			return fmt.Errorf("marshal audit detail: %w", err)
		}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_events (ts, actor, action, detail)
		VALUES ($1, $2, $3, $4)`,
		time.Now().UTC(), actor, action, body)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}
