package analytics

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/soulscout/soulscout/internal/bus"
	"github.com/soulscout/soulscout/internal/config"
	"github.com/soulscout/soulscout/internal/domain/regime"
	"github.com/soulscout/soulscout/internal/domain/state"
	"github.com/soulscout/soulscout/internal/domain/throttle"
	"github.com/soulscout/soulscout/internal/metrics"
	"github.com/soulscout/soulscout/internal/models"
)

const (
	marketGroup  = "analytics"
	commandGroup = "analytics-cmd"

	regimeRefreshInterval = time.Minute
	cleanupInterval       = 10 * time.Minute
)

type alertArchiver interface {
	Insert(ctx context.Context, a models.Alert) error
}

type job struct {
	msg    bus.Message
	update models.MarketUpdate
}

// Service is the analytics hot loop: it drains market updates under a
// consumer group, shards them by symbol across pipeline workers, and
// publishes admitted alerts.
type Service struct {
	bus      bus.Bus
	pipeline *Pipeline
	store    *state.Store
	detector *regime.Detector
	engine   *throttle.Engine
	archive  alertArchiver
	metrics  *metrics.Registry
	cfg      config.Config
	consumer string

	regimeMu   sync.RWMutex
	assessment regime.Assessment
}

// NewService wires the loop. archive may be nil when Postgres archiving
// is disabled.
func NewService(b bus.Bus, pipeline *Pipeline, store *state.Store, detector *regime.Detector,
	engine *throttle.Engine, archive alertArchiver, reg *metrics.Registry, cfg config.Config) *Service {
	return &Service{
		bus:      b,
		pipeline: pipeline,
		store:    store,
		detector: detector,
		engine:   engine,
		archive:  archive,
		metrics:  reg,
		cfg:      cfg,
		consumer: "analytics-" + uuid.New().String()[:8],
	}
}

// Run blocks until ctx is canceled. Workers drain their shards before
// returning so no message is processed after shutdown is observed.
func (s *Service) Run(ctx context.Context) error {
	if err := s.bus.CreateGroup(ctx, s.cfg.StreamMarket, marketGroup); err != nil {
		return err
	}
	if err := s.bus.CreateGroup(ctx, s.cfg.StreamRequests, commandGroup); err != nil {
		return err
	}

	workers := s.cfg.PipelineWorkers
	if workers < 1 {
		workers = 1
	}
	shards := make([]chan job, workers)
	for i := range shards {
		shards[i] = make(chan job, 64)
	}

	var wg sync.WaitGroup
	for i, ch := range shards {
		wg.Add(1)
		go func(i int, ch <-chan job) {
			defer wg.Done()
			s.worker(ctx, i, ch)
		}(i, ch)
	}

	wg.Add(3)
	go func() { defer wg.Done(); s.regimeLoop(ctx) }()
	go func() { defer wg.Done(); s.cleanupLoop(ctx) }()
	go func() { defer wg.Done(); s.commandLoop(ctx) }()

	log.Info().Int("workers", workers).Str("consumer", s.consumer).Msg("analytics loop started")

	s.readLoop(ctx, shards)

	for _, ch := range shards {
		close(ch)
	}
	wg.Wait()
	log.Info().Msg("analytics loop stopped")
	return ctx.Err()
}

// readLoop pulls batches from the market stream and shards them by
// symbol hash so each symbol is processed in arrival order.
func (s *Service) readLoop(ctx context.Context, shards []chan job) {
	block := time.Duration(s.cfg.BlockMs) * time.Millisecond

	for ctx.Err() == nil {
		msgs, err := s.bus.Read(ctx, s.cfg.StreamMarket, marketGroup, s.consumer, 100, block)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if s.metrics != nil {
				s.metrics.BusErrors.WithLabelValues("analytics", "read").Inc()
			}
			log.Error().Err(err).Msg("market stream read failed")
			time.Sleep(time.Second)
			continue
		}

		for _, msg := range msgs {
			var update models.MarketUpdate
			if err := msg.Decode(&update); err != nil || update.Symbol == "" {
				// Malformed payloads are acked and dropped.
				log.Warn().Str("id", msg.ID).Err(err).Msg("dropping malformed market update")
				s.ack(ctx, s.cfg.StreamMarket, marketGroup, msg.ID)
				continue
			}

			shard := shardFor(update.Symbol, len(shards))
			select {
			case shards[shard] <- job{msg: msg, update: update}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func shardFor(symbol string, n int) int {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return int(h.Sum32() % uint32(n))
}

// worker processes one shard. The ack is sent only after the pipeline
// and the alert publish complete; failures fall back on redelivery.
func (s *Service) worker(ctx context.Context, id int, ch <-chan job) {
	for j := range ch {
		start := time.Now()
		outcome := s.pipeline.Process(j.update, s.currentAssessment())

		published := true
		if outcome.Alert != nil {
			published = s.publishAlert(ctx, *outcome.Alert)
		}

		if s.metrics != nil {
			s.metrics.PipelineLatency.WithLabelValues("analytics").Observe(time.Since(start).Seconds())
			s.metrics.UpdatesProcessed.WithLabelValues("analytics", "ok").Inc()
			if outcome.Suppressed {
				s.metrics.Suppressions.WithLabelValues(outcome.Filter).Inc()
			}
		}

		if published {
			s.ack(ctx, s.cfg.StreamMarket, marketGroup, j.msg.ID)
		}
	}
}

func (s *Service) publishAlert(ctx context.Context, alert models.Alert) bool {
	if _, err := s.bus.Append(ctx, s.cfg.StreamAlerts, alert); err != nil {
		log.Error().Err(err).Str("symbol", alert.Symbol).Msg("publish alert failed")
		if s.metrics != nil {
			s.metrics.BusErrors.WithLabelValues("analytics", "append").Inc()
		}
		return false
	}

	if s.metrics != nil {
		s.metrics.AlertsEmitted.WithLabelValues(alert.Severity).Inc()
	}
	log.Info().Str("symbol", alert.Symbol).Str("band", alert.Severity).
		Int("confidence", alert.Confidence).Msg("alert published")

	if s.archive != nil {
		if err := s.archive.Insert(ctx, alert); err != nil {
			log.Warn().Err(err).Str("symbol", alert.Symbol).Msg("alert archive failed")
		}
	}
	return true
}

func (s *Service) ack(ctx context.Context, stream, group, id string) {
	if err := s.bus.Ack(ctx, stream, group, id); err != nil {
		log.Warn().Err(err).Str("id", id).Msg("ack failed; message will be redelivered")
		if s.metrics != nil {
			s.metrics.BusErrors.WithLabelValues("analytics", "ack").Inc()
		}
	}
}

// regimeLoop refreshes the cached market assessment. The regime is a
// pure function of the state snapshot, recomputed on a timer rather than
// per update.
func (s *Service) regimeLoop(ctx context.Context) {
	ticker := time.NewTicker(regimeRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a := s.detector.Assess(s.store.SnapshotAll())

			s.regimeMu.Lock()
			changed := a.Regime != s.assessment.Regime
			s.assessment = a
			s.regimeMu.Unlock()

			if changed {
				log.Info().Str("regime", a.Regime.String()).
					Int("threshold_adj", a.ThresholdAdj).Msg("regime changed")
			}
			if s.metrics != nil {
				s.metrics.ActiveRegime.Set(regimeGauge(a.Regime))
				s.metrics.TrackedTokens.Set(float64(s.store.Len()))
			}
		}
	}
}

func regimeGauge(r regime.Regime) float64 {
	switch r {
	case regime.RiskOff:
		return 0
	case regime.RiskOn:
		return 2
	default:
		return 1
	}
}

func (s *Service) currentAssessment() regime.Assessment {
	s.regimeMu.RLock()
	defer s.regimeMu.RUnlock()
	return s.assessment
}

// cleanupLoop evicts stale tokens and expired throttle records.
func (s *Service) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	maxAge := time.Duration(s.cfg.StateMaxAgeHours) * time.Hour
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			evicted := s.store.CleanupStale(maxAge)
			s.engine.Cleanup(24 * time.Hour)
			if evicted > 0 {
				log.Debug().Int("evicted", evicted).Msg("stale token state evicted")
			}
		}
	}
}

// Status feeds the health endpoint.
func (s *Service) Status() map[string]any {
	a := s.currentAssessment()
	return map[string]any{
		"regime":         a.Regime.String(),
		"tracked_tokens": s.store.Len(),
	}
}
