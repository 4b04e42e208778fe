package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soulscout/soulscout/internal/application/notifier"
	"github.com/soulscout/soulscout/internal/bus"
	"github.com/soulscout/soulscout/internal/config"
	"github.com/soulscout/soulscout/internal/models"
)

type sentMessage struct {
	ChatID int64
	Text   string
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []sentMessage
	updates []Update
}

func (f *fakeSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (f *fakeSender) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.updates
	f.updates = nil
	return out, nil
}

func (f *fakeSender) DeleteWebhook(ctx context.Context) {}

func (f *fakeSender) lastSent(t *testing.T) sentMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

type fakeBus struct {
	mu       sync.Mutex
	appended map[string][][]byte
	pingErr  error
}

func newFakeBus() *fakeBus {
	return &fakeBus{appended: make(map[string][][]byte)}
}

func (f *fakeBus) CreateGroup(ctx context.Context, stream, group string) error { return nil }
func (f *fakeBus) Read(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]bus.Message, error) {
	return nil, nil
}
func (f *fakeBus) Ack(ctx context.Context, stream, group string, ids ...string) error { return nil }
func (f *fakeBus) Ping(ctx context.Context) error                                    { return f.pingErr }

func (f *fakeBus) Append(ctx context.Context, stream string, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended[stream] = append(f.appended[stream], body)
	return "1-1", nil
}

func (f *fakeBus) appendedTo(stream string) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.appended[stream]...)
}

func testConfig() config.Config {
	return config.Config{
		StreamOutbound:   "soul.outbound.alerts",
		StreamRequests:   "soul.cmd.requests",
		StreamReplies:    "soul.cmd.replies",
		StreamAudit:      "soul.audit",
		TgOwnerID:        42,
		RateLimitPerMin:  20,
		GuestDefaultMins: 30,
		BlockMs:          20,
	}
}

func TestHandleMessage_UnknownUserDenied(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	tg := &fakeSender{}
	fb := newFakeBus()
	svc := NewService(tg, fb, NewAuthenticator(42, rdb), notifier.NewMuteState(rdb), rdb, nil, testConfig())

	mock.ExpectGet("gateway:guest_session:9").RedisNil()
	svc.handleMessage(context.Background(), 100, 9, "/balance")

	assert.Equal(t, "Access denied. This bot is private.", tg.lastSent(t).Text)
	assert.Empty(t, fb.appendedTo("soul.cmd.requests"))
}

func TestHandleMessage_GuestCannotSilence(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	tg := &fakeSender{}
	svc := NewService(tg, newFakeBus(), NewAuthenticator(42, rdb), notifier.NewMuteState(rdb), rdb, nil, testConfig())

	mock.ExpectGet("gateway:guest_session:7").SetVal("1")
	svc.handleMessage(context.Background(), 100, 7, "/silence 60")

	assert.Contains(t, tg.lastSent(t).Text, "permission")
}

func TestHandleMessage_HelpPerRole(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	tg := &fakeSender{}
	svc := NewService(tg, newFakeBus(), NewAuthenticator(42, rdb), notifier.NewMuteState(rdb), rdb, nil, testConfig())

	svc.handleMessage(context.Background(), 100, 42, "/help")
	assert.Contains(t, tg.lastSent(t).Text, "Owner Only")

	mock.ExpectGet("gateway:guest_session:7").SetVal("1")
	svc.handleMessage(context.Background(), 100, 7, "/help")
	assert.NotContains(t, tg.lastSent(t).Text, "Owner Only")
}

func TestHandleMessage_ForwardsPortfolioCommand(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	tg := &fakeSender{}
	fb := newFakeBus()
	svc := NewService(tg, fb, NewAuthenticator(42, rdb), notifier.NewMuteState(rdb), rdb, nil, testConfig())

	mock.Regexp().ExpectSetEx(`gateway:corr:.+`, `100`, corrTTL).SetVal("OK")
	svc.handleMessage(context.Background(), 100, 42, "/holdings 5")

	reqs := fb.appendedTo("soul.cmd.requests")
	require.Len(t, reqs, 1)

	var cmd models.Command
	require.NoError(t, json.Unmarshal(reqs[0], &cmd))
	assert.Equal(t, "holdings", cmd.Cmd)
	assert.Equal(t, float64(5), cmd.Args["limit"])
	assert.Equal(t, "owner", cmd.From.Role)
	assert.NotEmpty(t, cmd.CorrID)

	assert.Contains(t, tg.lastSent(t).Text, "Processing")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleMessage_SilenceMutesOwnerAlerts(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	tg := &fakeSender{}
	fb := newFakeBus()
	svc := NewService(tg, fb, NewAuthenticator(42, rdb), notifier.NewMuteState(rdb), rdb, nil, testConfig())

	mock.ExpectSetEx("notifier:mute:42", "1", 15*time.Minute).SetVal("OK")
	svc.handleMessage(context.Background(), 100, 42, "/silence 15")

	assert.Contains(t, tg.lastSent(t).Text, "muted for 15 minutes")

	audits := fb.appendedTo("soul.audit")
	require.Len(t, audits, 1)
	var ev models.AuditEvent
	require.NoError(t, json.Unmarshal(audits[0], &ev))
	assert.Equal(t, "alerts_silenced", ev.Kind)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleMessage_HealthReportsBusState(t *testing.T) {
	rdb, _ := redismock.NewClientMock()
	tg := &fakeSender{}
	fb := newFakeBus()
	svc := NewService(tg, fb, NewAuthenticator(42, rdb), notifier.NewMuteState(rdb), rdb, nil, testConfig())

	svc.handleMessage(context.Background(), 100, 42, "/health")
	assert.Contains(t, tg.lastSent(t).Text, "operational")

	fb.pingErr = assert.AnError
	svc.handleMessage(context.Background(), 100, 42, "/health")
	assert.Contains(t, tg.lastSent(t).Text, "Degraded")
}

func TestHandleMessage_RateLimit(t *testing.T) {
	rdb, _ := redismock.NewClientMock()
	tg := &fakeSender{}
	cfg := testConfig()
	cfg.RateLimitPerMin = 1
	svc := NewService(tg, newFakeBus(), NewAuthenticator(42, rdb), notifier.NewMuteState(rdb), rdb, nil, cfg)

	svc.handleMessage(context.Background(), 100, 42, "/health")
	svc.handleMessage(context.Background(), 100, 42, "/health")

	assert.Contains(t, tg.lastSent(t).Text, "Rate limit")
}

func TestHandleStart_GuestPairing(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	tg := &fakeSender{}
	fb := newFakeBus()
	svc := NewService(tg, fb, NewAuthenticator(42, rdb), notifier.NewMuteState(rdb), rdb, nil, testConfig())

	mock.ExpectGet("gateway:guest_pin:123456").SetVal("42")
	mock.ExpectDel("gateway:guest_pin:123456").SetVal(1)
	mock.ExpectSetEx("gateway:guest_session:7", "1", 30*time.Minute).SetVal("OK")

	svc.handleMessage(context.Background(), 100, 7, "/start 123456")
	assert.Contains(t, tg.lastSent(t).Text, "Guest access granted")

	audits := fb.appendedTo("soul.audit")
	require.Len(t, audits, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChatFor_FallsBackToOwner(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	svc := NewService(&fakeSender{}, newFakeBus(), NewAuthenticator(42, rdb), nil, rdb, nil, testConfig())
	ctx := context.Background()

	mock.ExpectGet("gateway:corr:c1").SetVal("99")
	assert.Equal(t, int64(99), svc.chatFor(ctx, "c1"))

	mock.ExpectGet("gateway:corr:c2").RedisNil()
	assert.Equal(t, int64(42), svc.chatFor(ctx, "c2"))

	require.NoError(t, mock.ExpectationsWereMet())
}
