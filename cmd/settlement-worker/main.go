// Package main содержит точку входа воркера подтверждений платежей.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/paywall-ledger/internal/app/settlement"
	"github.com/magabrotheeeer/paywall-ledger/internal/config"
	"github.com/magabrotheeeer/paywall-ledger/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	logger := sl.New(cfg.Env, os.Stdout)

	logger.Info("starting settlement-worker", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := settlement.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize settlement app", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("settlement app stopped with error", sl.Err(err))
		os.Exit(1)
	}

	logger.Info("settlement app stopped gracefully")
}
