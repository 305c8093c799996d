package main

import (
	"context"
	"errors"
	"net/http"
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
	transporthttp "github.com/openpass/inventory/internal/transport/http"
)

const shutdownTimeout = 10 * time.Second

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
	publisher := queue.NewPublisher(conn)

	allocator := app.NewAllocator(ledgers.Units, clock.NewSystem(), logger,
		app.WithReservationWindow(cfg.ReservationWindow))
	generator := app.NewGenerator(ledgers.Units, ledgers.Generations, clock.NewSystem(), logger,
		app.WithGenerationChunk(cfg.GenerationChunk))

	mux := http.NewServeMux()
	mux.HandleFunc("/health", transporthttp.HealthHandler)
	mux.Handle("/inventories/reserve", transporthttp.HandleReserve(allocator))
	mux.Handle("/inventories/generate", transporthttp.HandleGenerate(generator, publisher, logger))
	mux.Handle("/inventories/batch", transporthttp.HandleMaterialize(generator))
	mux.Handle("/", transporthttp.NotFoundHandler())

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: transporthttp.RequestLogger(mux, logger),
	}

	logger.Info("api listening", zap.String("port", cfg.Port), zap.String("engine", cfg.StorageEngine))

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
		}
	case <-stopCtx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("server stopped")
}
