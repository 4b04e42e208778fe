package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/soulscout/soulscout/internal/bus"
	"github.com/soulscout/soulscout/internal/config"
	"github.com/soulscout/soulscout/internal/domain/throttle"
	"github.com/soulscout/soulscout/internal/metrics"
	"github.com/soulscout/soulscout/internal/models"
)

const alertsGroup = "notifier"

// Service consumes admitted alerts, renders them for Telegram and hands
// the result to the gateway via the outbound stream. Every delivery and
// suppression leaves an audit event.
type Service struct {
	bus      bus.Bus
	mute     *MuteState
	dedup    *Dedup
	metrics  *metrics.Registry
	cfg      config.Config
	consumer string
}

func NewService(b bus.Bus, mute *MuteState, dedup *Dedup, reg *metrics.Registry, cfg config.Config) *Service {
	return &Service{
		bus:      b,
		mute:     mute,
		dedup:    dedup,
		metrics:  reg,
		cfg:      cfg,
		consumer: "notifier-" + uuid.New().String()[:8],
	}
}

// Run blocks until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	if err := s.bus.CreateGroup(ctx, s.cfg.StreamAlerts, alertsGroup); err != nil {
		return err
	}
	log.Info().Str("consumer", s.consumer).Msg("notifier loop started")

	block := time.Duration(s.cfg.BlockMs) * time.Millisecond
	for ctx.Err() == nil {
		msgs, err := s.bus.Read(ctx, s.cfg.StreamAlerts, alertsGroup, s.consumer, 10, block)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if s.metrics != nil {
				s.metrics.BusErrors.WithLabelValues("notifier", "read").Inc()
			}
			log.Error().Err(err).Msg("alerts stream read failed")
			time.Sleep(time.Second)
			continue
		}

		for _, msg := range msgs {
			if s.handle(ctx, msg) {
				s.ack(ctx, msg.ID)
			}
		}
	}

	log.Info().Msg("notifier loop stopped")
	return ctx.Err()
}

// handle processes one alert and reports whether it may be acked. A
// failed outbound publish returns false so the bus redelivers.
func (s *Service) handle(ctx context.Context, msg bus.Message) bool {
	var alert models.Alert
	if err := msg.Decode(&alert); err != nil || alert.Symbol == "" {
		log.Warn().Str("id", msg.ID).Err(err).Msg("dropping malformed alert")
		return true
	}

	reasonHash := throttle.HashReasons(alert.Lines)

	if s.dedup != nil && s.dedup.Seen(ctx, alert.Symbol, alert.Severity, reasonHash) {
		s.audit(ctx, "alert_suppressed", alert, reasonHash)
		if s.metrics != nil {
			s.metrics.Suppressions.WithLabelValues("redis_dedup").Inc()
		}
		return true
	}

	if s.mute != nil && s.mute.IsMuted(ctx, s.cfg.TgOwnerID) {
		// Not recorded in the dedup set: the same alert may deliver
		// after the mute expires.
		s.audit(ctx, "alert_muted", alert, reasonHash)
		if s.metrics != nil {
			s.metrics.Suppressions.WithLabelValues("muted").Inc()
		}
		return true
	}

	formatted := FormatAlert(alert)
	for _, part := range formatted.Parts {
		out := models.Outbound{
			Text:      part,
			ParseMode: "HTML",
			CorrID:    alert.CorrID,
			Ts:        models.NowISO8601(),
		}
		if _, err := s.bus.Append(ctx, s.cfg.StreamOutbound, out); err != nil {
			log.Error().Err(err).Str("symbol", alert.Symbol).Msg("outbound publish failed")
			if s.metrics != nil {
				s.metrics.BusErrors.WithLabelValues("notifier", "append").Inc()
			}
			return false
		}
	}

	if s.dedup != nil {
		s.dedup.Record(ctx, alert.Symbol, alert.Severity, reasonHash)
	}
	if s.metrics != nil {
		s.metrics.AlertsEmitted.WithLabelValues(alert.Severity).Inc()
		s.metrics.UpdatesProcessed.WithLabelValues("notifier", "ok").Inc()
	}
	s.audit(ctx, "alert_sent", alert, reasonHash)

	log.Info().Str("symbol", alert.Symbol).Str("band", alert.Severity).
		Int("parts", len(formatted.Parts)).Msg("alert delivered to outbound stream")
	return true
}

func (s *Service) audit(ctx context.Context, kind string, alert models.Alert, reasonHash string) {
	ev := models.AuditEvent{
		Kind:   kind,
		Actor:  "notifier",
		Detail: fmt.Sprintf("%s %s %s", alert.Symbol, alert.Severity, reasonHash),
		Ts:     models.NowISO8601(),
	}
	if _, err := s.bus.Append(ctx, s.cfg.StreamAudit, ev); err != nil {
		log.Warn().Err(err).Str("kind", kind).Msg("audit publish failed")
	}
}

func (s *Service) ack(ctx context.Context, id string) {
	if err := s.bus.Ack(ctx, s.cfg.StreamAlerts, alertsGroup, id); err != nil {
		log.Warn().Err(err).Str("id", id).Msg("ack failed; message will be redelivered")
		if s.metrics != nil {
			s.metrics.BusErrors.WithLabelValues("notifier", "ack").Inc()
		}
	}
}
