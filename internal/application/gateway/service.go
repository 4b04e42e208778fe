package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/soulscout/soulscout/internal/application/notifier"
	"github.com/soulscout/soulscout/internal/bus"
	"github.com/soulscout/soulscout/internal/config"
	"github.com/soulscout/soulscout/internal/metrics"
	"github.com/soulscout/soulscout/internal/models"
)

const (
	gatewayGroup = "gateway"

	pollTimeout = 30 * time.Second
	corrTTL     = 2 * time.Minute
)

// sender is the Bot API surface the loops need; tests stub it.
type sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error)
	DeleteWebhook(ctx context.Context)
}

// Service is the Telegram edge: it long-polls updates, authenticates
// and parses commands, publishes requests, and forwards replies and
// outbound alerts back into chats.
type Service struct {
	tg       sender
	bus      bus.Bus
	auth     *Authenticator
	mute     *notifier.MuteState
	rdb      redis.Cmdable
	metrics  *metrics.Registry
	cfg      config.Config
	consumer string

	limiterMu sync.Mutex
	limiters  map[int64]*rate.Limiter

	lastUpdateID int64
}

func NewService(tg sender, b bus.Bus, auth *Authenticator, mute *notifier.MuteState,
	rdb redis.Cmdable, reg *metrics.Registry, cfg config.Config) *Service {
	return &Service{
		tg:       tg,
		bus:      b,
		auth:     auth,
		mute:     mute,
		rdb:      rdb,
		metrics:  reg,
		cfg:      cfg,
		consumer: "gateway-" + uuid.New().String()[:8],
		limiters: make(map[int64]*rate.Limiter),
	}
}

// Run blocks until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	if err := s.bus.CreateGroup(ctx, s.cfg.StreamReplies, gatewayGroup); err != nil {
		return err
	}
	if err := s.bus.CreateGroup(ctx, s.cfg.StreamOutbound, gatewayGroup); err != nil {
		return err
	}

	s.tg.DeleteWebhook(ctx)
	log.Info().Str("consumer", s.consumer).Msg("gateway started in poll mode")

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); s.pollLoop(ctx) }()
	go func() { defer wg.Done(); s.replyLoop(ctx) }()
	go func() { defer wg.Done(); s.outboundLoop(ctx) }()
	wg.Wait()

	log.Info().Msg("gateway stopped")
	return ctx.Err()
}

// pollLoop drains getUpdates and dispatches messages.
func (s *Service) pollLoop(ctx context.Context) {
	for ctx.Err() == nil {
		updates, err := s.tg.GetUpdates(ctx, s.lastUpdateID+1, pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("getUpdates failed")
			sleep(ctx, 5*time.Second)
			continue
		}

		for _, u := range updates {
			if u.UpdateID > s.lastUpdateID {
				s.lastUpdateID = u.UpdateID
			}
			if u.Message == nil || u.Message.Text == "" {
				continue
			}
			s.handleMessage(ctx, u.Message.Chat.ID, u.Message.From.ID, u.Message.Text)
		}
	}
}

func (s *Service) handleMessage(ctx context.Context, chatID, userID int64, text string) {
	if !s.allowRate(userID) {
		s.reply(ctx, chatID, "⚠️ Rate limit exceeded. Please wait a moment.")
		return
	}

	parsed, err := Parse(text)
	if err != nil {
		s.reply(ctx, chatID, err.Error())
		return
	}

	if parsed.Cmd == "start" {
		s.handleStart(ctx, chatID, userID, parsed)
		return
	}

	role := s.auth.Authenticate(ctx, userID)
	if role == RoleUnknown {
		s.reply(ctx, chatID, "Access denied. This bot is private.")
		return
	}
	if !s.auth.Allowed(parsed.Cmd, role) {
		s.reply(ctx, chatID, "⛔ You don't have permission for this command.")
		return
	}

	switch parsed.Cmd {
	case "help":
		s.reply(ctx, chatID, helpText(role))
	case "guest":
		s.handleGuest(ctx, chatID, parsed)
	case "silence":
		s.handleSilence(ctx, chatID, userID, parsed)
	case "resume":
		s.handleResume(ctx, chatID, userID)
	case "health":
		s.handleHealth(ctx, chatID)
	default:
		s.forwardCommand(ctx, chatID, userID, role, parsed)
	}
}

// forwardCommand publishes the request and remembers corr_id -> chat so
// the reply loop can route the answer.
func (s *Service) forwardCommand(ctx context.Context, chatID, userID int64, role Role, parsed ParsedCommand) {
	corrID := uuid.New().String()
	if err := s.rdb.SetEx(ctx, corrKey(corrID), chatID, corrTTL).Err(); err != nil {
		log.Error().Err(err).Msg("correlation store failed")
	}

	cmd := BuildCommand(parsed, userID, role, corrID)
	if _, err := s.bus.Append(ctx, s.cfg.StreamRequests, cmd); err != nil {
		log.Error().Err(err).Str("cmd", parsed.Cmd).Msg("request publish failed")
		if s.metrics != nil {
			s.metrics.BusErrors.WithLabelValues("gateway", "append").Inc()
		}
		s.reply(ctx, chatID, "⚠️ Something went wrong. Try again.")
		return
	}

	log.Info().Str("cmd", parsed.Cmd).Int64("user", userID).Str("corr_id", corrID).Msg("command published")
	s.reply(ctx, chatID, "⏳ Processing...")
}

func (s *Service) handleStart(ctx context.Context, chatID, userID int64, parsed ParsedCommand) {
	if s.auth.Authenticate(ctx, userID) == RoleOwner {
		s.reply(ctx, chatID, "\U0001F44B Welcome! You have full access.\n\nSend /help for commands.")
		return
	}

	if len(parsed.Args) > 0 {
		ttl := time.Duration(s.cfg.GuestDefaultMins) * time.Minute
		ok, err := s.auth.RedeemPIN(ctx, parsed.Args[0], userID, ttl)
		if err != nil {
			log.Error().Err(err).Msg("pin redeem failed")
		}
		if ok {
			s.audit(ctx, "guest_login", userID, "PIN authenticated")
			s.reply(ctx, chatID, "✅ Guest access granted!\n\nYou have read-only access.\nSend /help for commands.")
		} else {
			s.reply(ctx, chatID, "❌ Invalid or expired PIN.")
		}
		return
	}

	s.reply(ctx, chatID, "\U0001F512 This bot is private.\n\nIf you have a guest PIN, send: /start <PIN>")
}

func (s *Service) handleGuest(ctx context.Context, chatID int64, parsed ParsedCommand) {
	minutes := intArg(parsed.Args, 0, s.cfg.GuestDefaultMins)
	pin, err := s.auth.IssuePIN(ctx, time.Duration(minutes)*time.Minute)
	if err != nil {
		log.Error().Err(err).Msg("pin issue failed")
		s.reply(ctx, chatID, "⚠️ Could not generate a PIN. Try again.")
		return
	}

	s.audit(ctx, "guest_pin_issued", s.cfg.TgOwnerID, fmt.Sprintf("valid %dm", minutes))
	s.reply(ctx, chatID, fmt.Sprintf(
		"\U0001F511 Guest PIN: <code>%s</code>\n\nValid for %d minutes.\nGuest sends: /start %s",
		pin, minutes, pin))
}

func (s *Service) handleSilence(ctx context.Context, chatID, userID int64, parsed ParsedCommand) {
	minutes := intArg(parsed.Args, 0, 30)
	if err := s.mute.Silence(ctx, s.cfg.TgOwnerID, time.Duration(minutes)*time.Minute); err != nil {
		log.Error().Err(err).Msg("silence failed")
		s.reply(ctx, chatID, "⚠️ Could not mute alerts.")
		return
	}
	s.audit(ctx, "alerts_silenced", userID, fmt.Sprintf("%dm", minutes))
	s.reply(ctx, chatID, fmt.Sprintf("\U0001F507 Alerts muted for %d minutes.", minutes))
}

func (s *Service) handleResume(ctx context.Context, chatID, userID int64) {
	if err := s.mute.Resume(ctx, s.cfg.TgOwnerID); err != nil {
		log.Error().Err(err).Msg("resume failed")
		s.reply(ctx, chatID, "⚠️ Could not resume alerts.")
		return
	}
	s.audit(ctx, "alerts_resumed", userID, "")
	s.reply(ctx, chatID, "\U0001F514 Alerts resumed.")
}

func (s *Service) handleHealth(ctx context.Context, chatID int64) {
	if err := s.bus.Ping(ctx); err != nil {
		s.reply(ctx, chatID, "⚠️ Degraded: stream bus unreachable.")
		return
	}
	s.reply(ctx, chatID, "✅ All systems operational.")
}

// replyLoop routes command replies back to the requesting chat via the
// correlation key, falling back to the owner chat when it expired.
func (s *Service) replyLoop(ctx context.Context) {
	block := time.Duration(s.cfg.BlockMs) * time.Millisecond

	for ctx.Err() == nil {
		msgs, err := s.bus.Read(ctx, s.cfg.StreamReplies, gatewayGroup, s.consumer, 10, block)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("replies stream read failed")
			sleep(ctx, time.Second)
			continue
		}

		for _, msg := range msgs {
			var reply models.Reply
			if err := msg.Decode(&reply); err != nil {
				log.Warn().Str("id", msg.ID).Err(err).Msg("dropping malformed reply")
				s.ack(ctx, s.cfg.StreamReplies, msg.ID)
				continue
			}

			chatID := s.chatFor(ctx, reply.CorrID)
			text := reply.Message
			if !reply.OK {
				text = "⚠️ " + text
			}
			if err := s.tg.SendMessage(ctx, chatID, text); err != nil {
				log.Error().Err(err).Str("corr_id", reply.CorrID).Msg("reply delivery failed")
				continue
			}
			s.ack(ctx, s.cfg.StreamReplies, msg.ID)
		}
	}
}

// outboundLoop forwards rendered alerts to Telegram. Acks only after a
// successful send so a failed delivery is retried.
func (s *Service) outboundLoop(ctx context.Context) {
	block := time.Duration(s.cfg.BlockMs) * time.Millisecond

	for ctx.Err() == nil {
		msgs, err := s.bus.Read(ctx, s.cfg.StreamOutbound, gatewayGroup, s.consumer, 10, block)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("outbound stream read failed")
			sleep(ctx, time.Second)
			continue
		}

		for _, msg := range msgs {
			var out models.Outbound
			if err := msg.Decode(&out); err != nil || out.Text == "" {
				log.Warn().Str("id", msg.ID).Err(err).Msg("dropping malformed outbound message")
				s.ack(ctx, s.cfg.StreamOutbound, msg.ID)
				continue
			}

			chatID := out.ChatID
			if chatID == 0 {
				chatID = s.cfg.TgOwnerID
			}
			if err := s.tg.SendMessage(ctx, chatID, out.Text); err != nil {
				log.Error().Err(err).Msg("alert delivery failed")
				continue
			}
			s.ack(ctx, s.cfg.StreamOutbound, msg.ID)
		}
	}
}

func corrKey(corrID string) string { return "gateway:corr:" + corrID }

func (s *Service) chatFor(ctx context.Context, corrID string) int64 {
	id, err := s.rdb.Get(ctx, corrKey(corrID)).Int64()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Str("corr_id", corrID).Msg("correlation lookup failed")
		}
		return s.cfg.TgOwnerID
	}
	return id
}

func (s *Service) allowRate(userID int64) bool {
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()

	lim, ok := s.limiters[userID]
	if !ok {
		per := s.cfg.RateLimitPerMin
		if per < 1 {
			per = 20
		}
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(per)), per)
		s.limiters[userID] = lim
	}
	return lim.Allow()
}

func (s *Service) reply(ctx context.Context, chatID int64, text string) {
	if err := s.tg.SendMessage(ctx, chatID, text); err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("send failed")
	}
}

func (s *Service) audit(ctx context.Context, kind string, actor int64, detail string) {
	ev := models.AuditEvent{
		Kind:   kind,
		Actor:  fmt.Sprintf("tg:%d", actor),
		Detail: detail,
		Ts:     models.NowISO8601(),
	}
	if _, err := s.bus.Append(ctx, s.cfg.StreamAudit, ev); err != nil {
		log.Warn().Err(err).Str("kind", kind).Msg("audit publish failed")
	}
}

func (s *Service) ack(ctx context.Context, stream, id string) {
	if err := s.bus.Ack(ctx, stream, gatewayGroup, id); err != nil {
		log.Warn().Err(err).Str("id", id).Msg("ack failed; message will be redelivered")
	}
}

func helpText(role Role) string {
	help := "<b>SoulScout Commands</b>\n\n" +
		"<b>Portfolio:</b>\n" +
		"/balance - View portfolio balance\n" +
		"/holdings - View top holdings\n\n" +
		"<b>Signals:</b>\n" +
		"/signals [24h] - View trading signals\n\n"

	if role == RoleOwner {
		help += "<b>Control (Owner Only):</b>\n" +
			"/silence [minutes] - Mute alerts\n" +
			"/resume - Resume alerts\n" +
			"/add_wallet <address> - Track wallet\n" +
			"/remove_wallet <address> - Untrack wallet\n" +
			"/guest [minutes] - Generate guest PIN\n\n"
	}

	help += "<b>System:</b>\n" +
		"/health - System status\n" +
		"/help - Show this help"
	return help
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
