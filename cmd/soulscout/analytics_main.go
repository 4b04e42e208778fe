package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/soulscout/soulscout/internal/application/analytics"
	"github.com/soulscout/soulscout/internal/domain/regime"
	"github.com/soulscout/soulscout/internal/domain/scoring"
	"github.com/soulscout/soulscout/internal/domain/signals"
	"github.com/soulscout/soulscout/internal/domain/state"
	"github.com/soulscout/soulscout/internal/domain/throttle"
	httpiface "github.com/soulscout/soulscout/internal/interfaces/http"
	"github.com/soulscout/soulscout/internal/persistence/postgres"
)

func runAnalytics(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, b, err := bootstrap("analytics")
	if err != nil {
		return err
	}

	db, err := postgres.Connect(ctx, cfg.PgDSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := postgres.Bootstrap(ctx, db); err != nil {
		return err
	}

	tuning, err := cfg.LoadTuning()
	if err != nil {
		return err
	}
	scorer, err := scoring.NewScorer(tuning.Weights)
	if err != nil {
		return err
	}

	engine := throttle.NewEngine(throttle.Config{
		CooldownActionable: time.Duration(cfg.CooldownActionableHours) * time.Hour,
		CooldownHeadsUp:    time.Duration(cfg.CooldownHeadsUpHours) * time.Hour,
		GlobalMaxPerHour:   cfg.GlobalActionableMaxPerHr,
		DedupTTL:           time.Duration(cfg.DedupTTLSeconds) * time.Second,
		ReentryGuard:       time.Duration(cfg.ReentryGuardHours) * time.Hour,
	})

	store := state.NewStore()
	pipeline := analytics.NewPipeline(store, signals.NewCalculator(tuning.Recognized),
		scorer, engine, cfg.ActionableBaseThreshold)
	detector := regime.NewDetectorWithAdjustments(cfg.RiskOnAdj, cfg.RiskOffAdj)
	svc := analytics.NewService(b, pipeline, store, detector, engine,
		postgres.NewAlertsRepo(db), newMetrics(), cfg)

	go serveHTTP(ctx, cfg, map[string]httpiface.Checker{
		"redis":    b,
		"postgres": httpiface.CheckerFunc(db.PingContext),
	}, svc.Status)

	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
