package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"hyaluron-watch/internal/bootstrap"
)

func main() {
	cfg, err := bootstrap.LoadConfig(os.Getenv("HYALURON_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := bootstrap.CreateLogger(cfg)
	defer func() { _ = log.Close() }()

	log.Info().
		Str("env", cfg.App.Environment).
		Dur("interval", cfg.Monitor.Interval).
		Msg("starting hyaluron-watch monitor")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize application")
	}
	defer app.Close()

	scheduler := app.Pipeline.Scheduler
	if err := scheduler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("scheduler stopped with error")
	}

	log.Info().Msg("monitor stopped")
}
