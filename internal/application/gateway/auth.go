package gateway

import (
	"context"
	"crypto/rand"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Role is the caller's privilege level.
type Role int

const (
	RoleUnknown Role = iota
	RoleGuest
	RoleOwner
)

func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleGuest:
		return "guest"
	default:
		return "unknown"
	}
}

var ownerOnly = map[string]bool{
	"silence":       true,
	"resume":        true,
	"add_wallet":    true,
	"remove_wallet": true,
	"guest":         true,
}

// Authenticator resolves roles: the configured owner id, then an active
// guest session in Redis, then unknown. Guest sessions and pairing PINs
// are TTL keys so access expires without bookkeeping.
type Authenticator struct {
	ownerID int64
	rdb     redis.Cmdable
}

func NewAuthenticator(ownerID int64, rdb redis.Cmdable) *Authenticator {
	return &Authenticator{ownerID: ownerID, rdb: rdb}
}

func guestPinKey(pin string) string { return "gateway:guest_pin:" + pin }

func guestSessionKey(userID int64) string {
	return fmt.Sprintf("gateway:guest_session:%d", userID)
}

// Authenticate resolves the caller's role. Redis errors degrade to
// unknown rather than failing the message.
func (a *Authenticator) Authenticate(ctx context.Context, userID int64) Role {
	if userID == a.ownerID {
		return RoleOwner
	}

	err := a.rdb.Get(ctx, guestSessionKey(userID)).Err()
	if err == nil {
		return RoleGuest
	}
	if err != redis.Nil {
		log.Error().Err(err).Int64("user", userID).Msg("guest session check failed")
	}
	return RoleUnknown
}

// Allowed reports whether the role may run the command. Unknown users
// only get the pairing surface.
func (a *Authenticator) Allowed(cmd string, role Role) bool {
	switch role {
	case RoleOwner:
		return true
	case RoleGuest:
		return !ownerOnly[cmd]
	default:
		return cmd == "start" || cmd == "help"
	}
}

// IssuePIN stores a fresh pairing PIN with the given lifetime and
// returns it.
func (a *Authenticator) IssuePIN(ctx context.Context, ttl time.Duration) (string, error) {
	pin, err := generatePIN(6)
	if err != nil {
		return "", err
	}
	if err := a.rdb.SetEx(ctx, guestPinKey(pin), strconv.FormatInt(a.ownerID, 10), ttl).Err(); err != nil {
		return "", fmt.Errorf("store guest pin: %w", err)
	}
	return pin, nil
}

// RedeemPIN checks a pairing PIN and, when valid, grants the user a
// guest session for ttl. The PIN is single-use.
func (a *Authenticator) RedeemPIN(ctx context.Context, pin string, userID int64, ttl time.Duration) (bool, error) {
	err := a.rdb.Get(ctx, guestPinKey(pin)).Err()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("verify guest pin: %w", err)
	}

	if err := a.rdb.Del(ctx, guestPinKey(pin)).Err(); err != nil {
		log.Warn().Err(err).Msg("guest pin delete failed")
	}
	if err := a.rdb.SetEx(ctx, guestSessionKey(userID), "1", ttl).Err(); err != nil {
		return false, fmt.Errorf("grant guest session: %w", err)
	}
	return true, nil
}

func generatePIN(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate pin: %w", err)
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = '0' + b%10
	}
	return string(out), nil
}
