package main

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/soulscout/soulscout/internal/application/audit"
	"github.com/soulscout/soulscout/internal/application/portfolio"
	"github.com/soulscout/soulscout/internal/infrastructure/providers"
	httpiface "github.com/soulscout/soulscout/internal/interfaces/http"
	"github.com/soulscout/soulscout/internal/persistence/postgres"
)

const metadataTTL = time.Hour

func runPortfolio(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, b, err := bootstrap("portfolio")
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

	rpc, err := providers.NewSolanaRPC(cfg.RPCUrls, cfg.HTTPTimeout)
	if err != nil {
		return err
	}

	oracle := portfolio.NewOracle(
		providers.NewCoinGecko(cfg.CoinGeckoBase, cfg.HTTPTimeout),
		providers.NewDEX(cfg.RaydiumBase, cfg.OrcaBase, cfg.HTTPTimeout),
	)
	svc := portfolio.NewService(b,
		postgres.NewWalletsRepo(db), rpc, oracle,
		portfolio.NewValuator(cfg.DustMinUSD, cfg.HaircutPct),
		portfolio.NewMetadataCache(metadataTTL),
		postgres.NewSnapshotsRepo(db),
		newMetrics(), cfg)

	// The portfolio process owns the Postgres audit trail.
	sink := audit.NewSink(b, postgres.NewAuditRepo(db), cfg)
	go func() {
		if err := sink.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("audit sink stopped")
		}
	}()

	go serveHTTP(ctx, cfg, map[string]httpiface.Checker{
		"redis":    b,
		"postgres": httpiface.CheckerFunc(db.PingContext),
		"solana_rpc": httpiface.CheckerFunc(func(ctx context.Context) error {
			if !rpc.Healthy(ctx) {
				return errors.New("no healthy rpc endpoint")
			}
			return nil
		}),
	}, nil)

	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
