// Command walletwatch observes the open positions of a single account on
// a remote ledger, detects position changes between polls, enriches them
// with market price context and sends a mail notification when something
// changed. Every detected change is also appended to a local history log.
//
// Usage:
//
//	walletwatch --config config.yaml
//	walletwatch --target 0xc2a3...e5f2 (uses CLI arguments)
//	walletwatch --setup (interactive configuration wizard)
//
// Recognized environment variables:
//
//	TARGET_ADDRESS, RPC_API, POLL_INTERVAL,
//	SMTP_HOST, SMTP_PORT, SMTP_USER, SMTP_PASS, EMAIL_FROM, EMAIL_TO
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"walletwatch/config"
	"walletwatch/internal"
	"walletwatch/internal/setup"
)

func main() {
	cfg, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	if cfg.Setup {
		if err := setup.RunTUI(); err != nil {
			log.Fatal(err)
		}
		if cfg, err = config.Load(setup.GeneratedFile); err != nil {
			log.Fatal(err)
		}
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	tracker, err := internal.NewTracker(cfg, logger)
	if err != nil {
		logger.Fatal("failed to build tracker", zap.Error(err))
	}
	defer tracker.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := tracker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("tracker stopped", zap.Error(err))
	}
}
