package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Default stream names. Producers and consumers are listed in the topology
// docs; every payload travels as serialized JSON under the single "data"
// field.
const (
	StreamMarket   = "soul.market.updates"
	StreamAlerts   = "soul.alerts"
	StreamOutbound = "soul.outbound.alerts"
	StreamRequests = "soul.cmd.requests"
	StreamReplies  = "soul.cmd.replies"
	StreamAudit    = "soul.audit"
)

// payloadField is the single envelope field on every stream entry.
const payloadField = "data"

// ErrNoPayload marks a stream entry without the data field; such messages
// are malformed and should be acked and dropped.
var ErrNoPayload = errors.New("stream entry has no data field")

// Message is one delivered stream entry.
type Message struct {
	ID     string
	Stream string
	Data   []byte
}

// Decode unmarshals the payload into v.
func (m Message) Decode(v any) error {
	return json.Unmarshal(m.Data, v)
}

// Bus is the consumer-group view of the stream bus. Reads are blocking up
// to the given duration; unacked messages are redelivered by the bus after
// its idle timeout, giving at-least-once delivery.
type Bus interface {
	CreateGroup(ctx context.Context, stream, group string) error
	Read(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]Message, error)
	Ack(ctx context.Context, stream, group string, ids ...string) error
	Append(ctx context.Context, stream string, payload any) (string, error)
	Ping(ctx context.Context) error
}

// RedisBus implements Bus over Redis Streams.
type RedisBus struct {
	rdb *redis.Client
}

// NewRedisBus connects from a redis:// URL.
func NewRedisBus(url string) (*RedisBus, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisBus{rdb: redis.NewClient(opts)}, nil
}

// NewRedisBusWithClient wraps an existing client (tests use redismock).
func NewRedisBusWithClient(c *redis.Client) *RedisBus {
	return &RedisBus{rdb: c}
}

// Client exposes the underlying connection for services that keep
// auxiliary keys (guest PINs, mute state) next to the streams.
func (b *RedisBus) Client() *redis.Client {
	return b.rdb
}

// CreateGroup registers a consumer group starting at "$" (only messages
// appended after creation), creating the stream if needed. Re-creating an
// existing group is not an error.
func (b *RedisBus) CreateGroup(ctx context.Context, stream, group string) error {
	err := b.rdb.XGroupCreateMkStream(ctx, stream, group, "$").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create group %s on %s: %w", group, stream, err)
	}
	return nil
}

// Read blocks up to block for at most count new messages for this
// consumer. A timeout with no messages returns an empty slice, not an
// error.
func (b *RedisBus) Read(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]Message, error) {
	res, err := b.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s as %s/%s: %w", stream, group, consumer, err)
	}

	var out []Message
	for _, str := range res {
		for _, msg := range str.Messages {
			raw, ok := msg.Values[payloadField]
			if !ok {
				out = append(out, Message{ID: msg.ID, Stream: str.Stream})
				continue
			}
			s, _ := raw.(string)
			out = append(out, Message{ID: msg.ID, Stream: str.Stream, Data: []byte(s)})
		}
	}
	return out, nil
}

// Ack confirms processing; the bus will not redeliver acked ids.
func (b *RedisBus) Ack(ctx context.Context, stream, group string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := b.rdb.XAck(ctx, stream, group, ids...).Err(); err != nil {
		return fmt.Errorf("ack on %s: %w", stream, err)
	}
	return nil
}

// Append serializes payload to JSON under the data field and appends it.
func (b *RedisBus) Append(ctx context.Context, stream string, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload for %s: %w", stream, err)
	}
	id, err := b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{payloadField: string(body)},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", stream, err)
	}
	return id, nil
}

// Ping verifies connectivity; services fail fast at startup when it fails.
func (b *RedisBus) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

// Close releases the connection.
func (b *RedisBus) Close() error {
	return b.rdb.Close()
}
