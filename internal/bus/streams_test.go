package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateGroup_Idempotent(t *testing.T) {
	db, mock := redismock.NewClientMock()
	b := NewRedisBusWithClient(db)

	mock.ExpectXGroupCreateMkStream(StreamMarket, "analytics", "$").SetVal("OK")
	require.NoError(t, b.CreateGroup(context.Background(), StreamMarket, "analytics"))

	// Recreating an existing group returns BUSYGROUP, which is success.
	mock.ExpectXGroupCreateMkStream(StreamMarket, "analytics", "$").
		SetErr(errors.New("BUSYGROUP Consumer Group name already exists"))
	require.NoError(t, b.CreateGroup(context.Background(), StreamMarket, "analytics"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppend_WrapsPayloadInDataField(t *testing.T) {
	db, mock := redismock.NewClientMock()
	b := NewRedisBusWithClient(db)

	payload := map[string]any{"symbol": "WIF"}
	mock.ExpectXAdd(&redis.XAddArgs{
		Stream: StreamAlerts,
		Values: map[string]any{"data": `{"symbol":"WIF"}`},
	}).SetVal("1-1")

	id, err := b.Append(context.Background(), StreamAlerts, payload)
	require.NoError(t, err)
	assert.Equal(t, "1-1", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRead_MapsMessages(t *testing.T) {
	db, mock := redismock.NewClientMock()
	b := NewRedisBusWithClient(db)

	mock.ExpectXReadGroup(&redis.XReadGroupArgs{
		Group:    "analytics",
		Consumer: "worker-1",
		Streams:  []string{StreamMarket, ">"},
		Count:    10,
		Block:    time.Second,
	}).SetVal([]redis.XStream{{
		Stream: StreamMarket,
		Messages: []redis.XMessage{
			{ID: "1-1", Values: map[string]any{"data": `{"symbol":"WIF"}`}},
			{ID: "1-2", Values: map[string]any{}},
		},
	}})

	msgs, err := b.Read(context.Background(), StreamMarket, "analytics", "worker-1", 10, time.Second)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, "1-1", msgs[0].ID)
	var decoded struct {
		Symbol string `json:"symbol"`
	}
	require.NoError(t, msgs[0].Decode(&decoded))
	assert.Equal(t, "WIF", decoded.Symbol)

	// Entry without a data field surfaces with an empty payload.
	assert.Empty(t, msgs[1].Data)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRead_TimeoutIsNotAnError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	b := NewRedisBusWithClient(db)

	mock.ExpectXReadGroup(&redis.XReadGroupArgs{
		Group:    "analytics",
		Consumer: "worker-1",
		Streams:  []string{StreamMarket, ">"},
		Count:    10,
		Block:    time.Second,
	}).RedisNil()

	msgs, err := b.Read(context.Background(), StreamMarket, "analytics", "worker-1", 10, time.Second)
	assert.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestAck(t *testing.T) {
	db, mock := redismock.NewClientMock()
	b := NewRedisBusWithClient(db)

	mock.ExpectXAck(StreamMarket, "analytics", "1-1", "1-2").SetVal(2)
	require.NoError(t, b.Ack(context.Background(), StreamMarket, "analytics", "1-1", "1-2"))

	// No ids is a no-op.
	require.NoError(t, b.Ack(context.Background(), StreamMarket, "analytics"))

	assert.NoError(t, mock.ExpectationsWereMet())
}
