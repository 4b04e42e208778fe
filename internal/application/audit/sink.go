package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/soulscout/soulscout/internal/bus"
	"github.com/soulscout/soulscout/internal/config"
	"github.com/soulscout/soulscout/internal/models"
)

const sinkGroup = "audit"

type recorder interface {
	Record(ctx context.Context, actor, action string, detail map[string]any) error
}

// Sink drains the audit stream into Postgres so the trail survives
// stream trimming. Every service appends audit events; one sink per
// deployment persists them.
type Sink struct {
	bus      bus.Bus
	repo     recorder
	cfg      config.Config
	consumer string
}

func NewSink(b bus.Bus, repo recorder, cfg config.Config) *Sink {
	return &Sink{
		bus:      b,
		repo:     repo,
		cfg:      cfg,
		consumer: "audit-" + uuid.New().String()[:8],
	}
}

// Run blocks until ctx is canceled.
func (s *Sink) Run(ctx context.Context) error {
	if err := s.bus.CreateGroup(ctx, s.cfg.StreamAudit, sinkGroup); err != nil {
		return err
	}

	block := time.Duration(s.cfg.BlockMs) * time.Millisecond
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		msgs, err := s.bus.Read(ctx, s.cfg.StreamAudit, sinkGroup, s.consumer, 32, block)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn().Err(err).Msg("audit stream read failed")
			time.Sleep(time.Second)
			continue
		}

		for _, msg := range msgs {
			if s.persist(ctx, msg) {
				if err := s.bus.Ack(ctx, s.cfg.StreamAudit, sinkGroup, msg.ID); err != nil {
					log.Warn().Err(err).Str("id", msg.ID).Msg("audit ack failed")
				}
			}
		}
	}
}

// persist reports whether the message should be acked. Malformed events
// are dropped; insert failures leave the event pending for redelivery.
func (s *Sink) persist(ctx context.Context, msg bus.Message) bool {
	var ev models.AuditEvent
	if err := msg.Decode(&ev); err != nil {
		log.Warn().Err(err).Str("id", msg.ID).Msg("dropping malformed audit event")
		return true
	}

	detail := map[string]any{"ts": ev.Ts}
	if ev.Detail != "" {
		detail["detail"] = ev.Detail
	}
	if err := s.repo.Record(ctx, ev.Actor, ev.Kind, detail); err != nil {
		log.Error().Err(err).Str("kind", ev.Kind).Msg("audit persist failed")
		return false
	}
	return true
}
