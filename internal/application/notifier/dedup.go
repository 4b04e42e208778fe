package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Dedup is the delivery-side duplicate filter. Analytics already dedups
// at admission, but redeliveries after a crashed send still reach this
// service; keeping the seen-set in Redis makes the filter survive
// restarts.
type Dedup struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewDedup(rdb redis.Cmdable, ttl time.Duration) *Dedup {
	return &Dedup{rdb: rdb, ttl: ttl}
}

func dedupKey(symbol, band, reasonHash string) string {
	return fmt.Sprintf("notifier:dedup:%s:%s:%s", symbol, band, reasonHash)
}

// Seen reports whether this (symbol, band, reasons) combination was
// already delivered within the TTL. Redis errors fail open.
func (d *Dedup) Seen(ctx context.Context, symbol, band, reasonHash string) bool {
	err := d.rdb.Get(ctx, dedupKey(symbol, band, reasonHash)).Err()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		log.Error().Err(err).Str("symbol", symbol).Msg("dedup check failed")
		return false
	}
	return true
}

// Record marks the combination as delivered.
func (d *Dedup) Record(ctx context.Context, symbol, band, reasonHash string) {
	if err := d.rdb.SetEx(ctx, dedupKey(symbol, band, reasonHash), "1", d.ttl).Err(); err != nil {
		log.Error().Err(err).Str("symbol", symbol).Msg("dedup record failed")
	}
}
