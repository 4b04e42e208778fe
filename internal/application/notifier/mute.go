package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// MuteState tracks per-user alert muting as Redis TTL keys, so a mute
// survives notifier restarts and expires on its own.
type MuteState struct {
	rdb redis.Cmdable
}

func NewMuteState(rdb redis.Cmdable) *MuteState {
	return &MuteState{rdb: rdb}
}

func muteKey(userID int64) string {
	return fmt.Sprintf("notifier:mute:%d", userID)
}

// Silence mutes alerts for the user for the given duration.
func (m *MuteState) Silence(ctx context.Context, userID int64, d time.Duration) error {
	if err := m.rdb.SetEx(ctx, muteKey(userID), "1", d).Err(); err != nil {
		return fmt.Errorf("set mute for %d: %w", userID, err)
	}
	log.Info().Int64("user", userID).Dur("for", d).Msg("alerts muted")
	return nil
}

// Resume clears the mute immediately.
func (m *MuteState) Resume(ctx context.Context, userID int64) error {
	if err := m.rdb.Del(ctx, muteKey(userID)).Err(); err != nil {
		return fmt.Errorf("clear mute for %d: %w", userID, err)
	}
	log.Info().Int64("user", userID).Msg("alerts resumed")
	return nil
}

// IsMuted reports whether the user is currently muted. Redis errors fail
// open: an unreachable mute store must not swallow alerts.
func (m *MuteState) IsMuted(ctx context.Context, userID int64) bool {
	err := m.rdb.Get(ctx, muteKey(userID)).Err()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		log.Error().Err(err).Int64("user", userID).Msg("mute check failed")
		return false
	}
	return true
}

// Remaining returns how long the current mute has left, zero when not
// muted.
func (m *MuteState) Remaining(ctx context.Context, userID int64) time.Duration {
	ttl, err := m.rdb.TTL(ctx, muteKey(userID)).Result()
	if err != nil || ttl < 0 {
		return 0
	}
	return ttl
}
