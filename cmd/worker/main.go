package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dharsanguruparan/soupcal/internal/app"
	"github.com/dharsanguruparan/soupcal/internal/config"
	"github.com/dharsanguruparan/soupcal/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logging.New("info", os.Stderr).Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, os.Stdout)
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid config", "error", err)
		os.Exit(1)
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := a.RunWorker(ctx); err != nil {
		logger.Error("Worker stopped", "error", err)
		a.Close()
		os.Exit(1)
	}
}
