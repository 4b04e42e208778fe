package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/soulscout/soulscout/internal/application/ingest"
	"github.com/soulscout/soulscout/internal/infrastructure/providers"
	httpiface "github.com/soulscout/soulscout/internal/interfaces/http"
	"github.com/soulscout/soulscout/internal/persistence/postgres"
)

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, b, err := bootstrap("ingest")
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

	dex := providers.NewDEX(cfg.RaydiumBase, cfg.OrcaBase, cfg.HTTPTimeout)
	jup := providers.NewJupiter(cfg.JupiterBase, cfg.HTTPTimeout)
	runner := ingest.NewRunner(dex, jup, postgres.NewPoolsRepo(db), b,
		newMetrics(), time.Duration(cfg.PollIntervalSec)*time.Second)

	// The websocket feed is optional; polling alone is a full ingestor.
	var streamCh chan providers.PoolData
	if cfg.PoolStreamURL != "" {
		streamCh = make(chan providers.PoolData, 64)
		go providers.NewPoolStream(cfg.PoolStreamURL).Run(ctx, streamCh)
	}

	go serveHTTP(ctx, cfg, map[string]httpiface.Checker{
		"redis":    b,
		"postgres": httpiface.CheckerFunc(db.PingContext),
	}, nil)

	if err := runner.Run(ctx, streamCh); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
