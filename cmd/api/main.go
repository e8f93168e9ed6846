package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"ecommerce-transactions/config"
	"ecommerce-transactions/internal/app"
	"ecommerce-transactions/internal/handler"
	"ecommerce-transactions/internal/server"
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
		l.Logger.Fatal("failed to wire dependencies: " + err.Error())
	}
	defer func() { _ = a.Close() }()

	srv, err := server.New(cfg, l)
	if err != nil {
		l.Logger.Fatal(err.Error())
	}
	srv.SetupRoutes(server.Routes{
		Transactions: handler.NewTransactionHandler(a.Service),
		Tokens:       a.Tokens,
		Limiter:      a.Limiter,
		Health:       a.HealthChecks(),
	})

	if err := srv.Run(ctx); err != nil {
		l.Logger.Error(err.Error())
	}
}
