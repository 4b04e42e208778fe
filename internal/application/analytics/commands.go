package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/soulscout/soulscout/internal/models"
)

// commandLoop answers /signals requests from the command stream. Other
// commands on the shared stream belong to the portfolio consumer group
// and are acked untouched here.
func (s *Service) commandLoop(ctx context.Context) {
	block := time.Duration(s.cfg.BlockMs) * time.Millisecond

	for ctx.Err() == nil {
		msgs, err := s.bus.Read(ctx, s.cfg.StreamRequests, commandGroup, s.consumer, 10, block)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("command stream read failed")
			time.Sleep(time.Second)
			continue
		}

		for _, msg := range msgs {
			var cmd models.Command
			if err := msg.Decode(&cmd); err != nil {
				log.Warn().Str("id", msg.ID).Err(err).Msg("dropping malformed command")
				s.ack(ctx, s.cfg.StreamRequests, commandGroup, msg.ID)
				continue
			}

			if cmd.Cmd == "signals" {
				reply := s.handleSignals(cmd)
				if _, err := s.bus.Append(ctx, s.cfg.StreamReplies, reply); err != nil {
					log.Error().Err(err).Str("corr_id", cmd.CorrID).Msg("publish reply failed")
					// Leave unacked so the request is redelivered.
					continue
				}
			}
			s.ack(ctx, s.cfg.StreamRequests, commandGroup, msg.ID)
		}
	}
}

// handleSignals enumerates recent admitted alerts from the throttle
// ledger. The window comes from WATCH_WINDOW_MIN (24h out of the box)
// and is overridable per request.
func (s *Service) handleSignals(cmd models.Command) models.Reply {
	window := 24 * time.Hour
	if s.cfg.WatchWindowMin > 0 {
		window = time.Duration(s.cfg.WatchWindowMin) * time.Minute
	}
	if v, ok := cmd.Args["window_hours"].(float64); ok && v > 0 {
		window = time.Duration(v * float64(time.Hour))
	}

	stamps := s.engine.Recent(window)

	items := make([]map[string]any, 0, len(stamps))
	for _, st := range stamps {
		items = append(items, map[string]any{
			"symbol": st.Symbol,
			"band":   st.Band.String(),
			"ts":     models.ISO8601(time.UnixMilli(st.TsMs)),
		})
	}

	return models.Reply{
		CorrID:  cmd.CorrID,
		OK:      true,
		Message: fmt.Sprintf("%d alerts in the last %s", len(items), window),
		Data:    map[string]any{"alerts": items, "regime": s.currentAssessment().Regime.String()},
		Ts:      models.NowISO8601(),
	}
}
