package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticate_Roles(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	a := NewAuthenticator(42, rdb)
	ctx := context.Background()

	assert.Equal(t, RoleOwner, a.Authenticate(ctx, 42))

	mock.ExpectGet("gateway:guest_session:7").SetVal("1")
	assert.Equal(t, RoleGuest, a.Authenticate(ctx, 7))

	mock.ExpectGet("gateway:guest_session:9").RedisNil()
	assert.Equal(t, RoleUnknown, a.Authenticate(ctx, 9))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAllowed_Matrix(t *testing.T) {
	a := NewAuthenticator(42, nil)

	for _, cmd := range []string{"silence", "resume", "add_wallet", "remove_wallet", "guest", "balance", "health"} {
		assert.True(t, a.Allowed(cmd, RoleOwner), cmd)
	}

	assert.True(t, a.Allowed("balance", RoleGuest))
	assert.True(t, a.Allowed("signals", RoleGuest))
	assert.False(t, a.Allowed("silence", RoleGuest))
	assert.False(t, a.Allowed("add_wallet", RoleGuest))

	assert.True(t, a.Allowed("start", RoleUnknown))
	assert.True(t, a.Allowed("help", RoleUnknown))
	assert.False(t, a.Allowed("balance", RoleUnknown))
}

func TestRedeemPIN(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	a := NewAuthenticator(42, rdb)
	ctx := context.Background()

	mock.ExpectGet("gateway:guest_pin:123456").SetVal("42")
	mock.ExpectDel("gateway:guest_pin:123456").SetVal(1)
	mock.ExpectSetEx("gateway:guest_session:7", "1", 30*time.Minute).SetVal("OK")

	ok, err := a.RedeemPIN(ctx, "123456", 7, 30*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectGet("gateway:guest_pin:999999").RedisNil()
	ok, err = a.RedeemPIN(ctx, "999999", 7, 30*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGeneratePIN(t *testing.T) {
	pin, err := generatePIN(6)
	require.NoError(t, err)
	require.Len(t, pin, 6)
	for _, c := range pin {
		assert.True(t, c >= '0' && c <= '9')
	}
}
