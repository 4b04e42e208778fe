package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/soulscout/soulscout/internal/application/gateway"
	"github.com/soulscout/soulscout/internal/application/notifier"
	httpiface "github.com/soulscout/soulscout/internal/interfaces/http"
)

func runGateway(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, b, err := bootstrap("gateway")
	if err != nil {
		return err
	}

	rdb := b.Client()
	tg := gateway.NewTelegramClient(cfg.TgBotToken, cfg.HTTPTimeout)
	auth := gateway.NewAuthenticator(cfg.TgOwnerID, rdb)
	svc := gateway.NewService(tg, b, auth, notifier.NewMuteState(rdb), rdb, newMetrics(), cfg)

	go serveHTTP(ctx, cfg, map[string]httpiface.Checker{"redis": b}, nil)

	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
