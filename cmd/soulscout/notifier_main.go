package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/soulscout/soulscout/internal/application/notifier"
	httpiface "github.com/soulscout/soulscout/internal/interfaces/http"
)

func runNotifier(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, b, err := bootstrap("notifier")
	if err != nil {
		return err
	}

	rdb := b.Client()
	mute := notifier.NewMuteState(rdb)
	dedup := notifier.NewDedup(rdb, time.Duration(cfg.DedupTTLSeconds)*time.Second)
	svc := notifier.NewService(b, mute, dedup, newMetrics(), cfg)

	go serveHTTP(ctx, cfg, map[string]httpiface.Checker{"redis": b}, nil)

	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
