package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"ecommerce-transactions/config"
	"ecommerce-transactions/internal/app"
	"ecommerce-transactions/internal/outbox"
	"ecommerce-transactions/internal/storage"
	"ecommerce-transactions/internal/worker"
	"ecommerce-transactions/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	l := logger.New(cfg.Server.Mode)
	logger.SetGlobalLogger(l)
	defer func() { _ = l.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, l)
	if err != nil {
		l.Logger.Fatal("failed to wire dependencies", zap.Error(err))
	}
	defer func() { _ = a.Close() }()

	var archive worker.ReceiptArchiver
	if cfg.S3.Enabled() {
		receipts, err := storage.NewReceiptArchive(ctx, cfg.S3)
		if err != nil {
			l.Logger.Fatal("failed to set up receipt archive", zap.Error(err))
		}
		archive = receipts
	}

	relay := outbox.NewRelay(a.Outbox, a.Queue, outbox.OptionsFromConfig(cfg.Queue), l)
	go relay.Run(ctx)

	processor := worker.NewProcessor(a.Queue, a.Service, archive, worker.OptionsFromConfig(cfg.Queue), l)
	l.Info(ctx, "worker started", zap.Duration("poll_interval", cfg.Queue.PollInterval))
	processor.Run(ctx)
	l.Info(context.Background(), "worker stopped")
}
