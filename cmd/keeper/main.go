package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/openpass/inventory/internal/app"
	"github.com/openpass/inventory/internal/clock"
	"github.com/openpass/inventory/internal/config"
	"github.com/openpass/inventory/internal/storage"
)

// The keeper runs one reconciliation sweep and exits, so a scheduler
// (cron, a k8s CronJob) decides the cadence.
func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ledgers, closeStore, err := storage.Open(startupCtx, cfg)
	if err != nil {
		logger.Fatal("open storage", zap.Error(err))
	}
	defer closeStore()

	keeper := app.NewKeeper(ledgers.Units, ledgers.Orders, clock.NewSystem(), logger,
		app.WithSweepPageSize(cfg.SweepPageSize))

	if err := keeper.Sweep(ctx); err != nil {
		logger.Error("sweep failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}
