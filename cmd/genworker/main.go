package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/openpass/inventory/internal/app"
	"github.com/openpass/inventory/internal/clock"
	"github.com/openpass/inventory/internal/config"
	"github.com/openpass/inventory/internal/queue"
	"github.com/openpass/inventory/internal/storage"
)

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

	startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ledgers, closeStore, err := storage.Open(startupCtx, cfg)
	if err != nil {
		logger.Fatal("open storage", zap.Error(err))
	}
	defer closeStore()

	conn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		logger.Fatal("connect to amqp", zap.Error(err))
	}
	defer func() { _ = conn.Close() }()

	generator := app.NewGenerator(ledgers.Units, ledgers.Generations, clock.NewSystem(), logger,
		app.WithGenerationChunk(cfg.GenerationChunk))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("generation worker started", zap.String("engine", cfg.StorageEngine))

	consumer := queue.NewConsumer(conn, generator, logger)
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("consumer stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("generation worker stopped")
}
