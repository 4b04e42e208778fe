package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/soulscout/soulscout/internal/bus"
	"github.com/soulscout/soulscout/internal/config"
	httpiface "github.com/soulscout/soulscout/internal/interfaces/http"
	"github.com/soulscout/soulscout/internal/metrics"
)

const (
	appName = "soulscout"
	version = "v1.0.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Solana memecoin signal scout",
		Version: version,
		Long: `SoulScout watches Solana DEX pools, scores momentum and liquidity
signals into banded alerts, and serves a private Telegram bot for
portfolio and signal queries. Each subcommand runs one service.`,
	}

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "ingest",
			Short: "Poll DEX venues and publish normalized market updates",
			RunE:  runIngest,
		},
		&cobra.Command{
			Use:   "analytics",
			Short: "Score market updates into banded alerts",
			RunE:  runAnalytics,
		},
		&cobra.Command{
			Use:   "notifier",
			Short: "Render admitted alerts for Telegram delivery",
			RunE:  runNotifier,
		},
		&cobra.Command{
			Use:   "gateway",
			Short: "Serve the Telegram bot edge",
			RunE:  runGateway,
		},
		&cobra.Command{
			Use:   "portfolio",
			Short: "Answer balance and holdings commands",
			RunE:  runPortfolio,
		},
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// bootstrap loads config, applies the log level, and connects the bus.
// Bus unavailability at startup is fatal.
func bootstrap(service string) (config.Config, *bus.RedisBus, error) {
	cfg, err := config.Load(service)
	if err != nil {
		return config.Config{}, nil, err
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	log.Info().Str("service", service).Str("version", version).Msg("starting")

	b, err := bus.NewRedisBus(cfg.RedisURL)
	if err != nil {
		return config.Config{}, nil, err
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.Ping(pingCtx); err != nil {
		return config.Config{}, nil, fmt.Errorf("stream bus unreachable: %w", err)
	}
	return cfg, b, nil
}

func newMetrics() *metrics.Registry {
	return metrics.NewRegistry(prometheus.DefaultRegisterer)
}

// serveHTTP runs the health server until ctx is canceled.
func serveHTTP(ctx context.Context, cfg config.Config, checks map[string]httpiface.Checker, status httpiface.StatusProvider) {
	addr := fmt.Sprintf("%s:%d", cfg.ListenAddr, cfg.ListenPort)
	srv := httpiface.NewServer(cfg.ServiceName, addr, checks, status)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("http shutdown failed")
		}
	}()

	if err := srv.Start(); err != nil {
		log.Error().Err(err).Msg("http server failed")
	}
}

// signalContext cancels on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
