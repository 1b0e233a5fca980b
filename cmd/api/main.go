package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"hyaluron-watch/internal/api"
	"hyaluron-watch/internal/api/handlers"
	"hyaluron-watch/internal/bootstrap"
	"hyaluron-watch/internal/grpc/health"
	"hyaluron-watch/internal/infrastructure/cache"
)

func main() {
	// Load configuration
	cfg, err := bootstrap.LoadConfig(os.Getenv("HYALURON_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := bootstrap.CreateLogger(cfg)
	defer func() { _ = log.Close() }()

	log.Info().
		Str("app", cfg.App.Name).
		Str("env", cfg.App.Environment).
		Str("version", cfg.App.Version).
		Msg("starting hyaluron-watch API")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize application")
	}
	defer app.Close()

	go app.Hub.Run(ctx)

	pipeline := app.Pipeline
	h := handlers.NewHandlers(handlers.Dependencies{
		Context:      ctx,
		Version:      cfg.App.Version,
		Scorer:       pipeline.Coordinator.Engine(),
		Batch:        pipeline.Analyzer,
		Threshold:    pipeline.Coordinator.Threshold(),
		Cache:        cache.NewAssessmentCache(app.Redis),
		Scans:        pipeline.Scans,
		SharedStatus: app.Redis,
		Profiles:     app.Store,
		Cases:        pipeline.Cases,
		Checks: map[string]handlers.Pinger{
			"postgres": app.DB,
			"redis":    app.Redis,
		},
		Hub:      app.Hub,
		EventBus: app.EventBus,
		Logger:   log,
	})

	// Create router
	router := api.NewRouter(*cfg, h, app.Redis, app.Metrics.Handler(), app.Metrics, log)

	// Start HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().
			Str("addr", httpServer.Addr).
			Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Start gRPC health server
	grpcListener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.GRPCPort))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create gRPC listener")
	}

	grpcServer := grpc.NewServer()
	checker := health.NewChecker(map[string]health.Pinger{
		"postgres": app.DB,
		"redis":    app.Redis,
	}, 15*time.Second, log)
	checker.Register(grpcServer)
	go checker.Run(ctx)

	go func() {
		log.Info().
			Str("addr", grpcListener.Addr().String()).
			Msg("starting gRPC server")
		if err := grpcServer.Serve(grpcListener); err != nil {
			log.Fatal().Err(err).Msg("gRPC server failed")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down...")

	// Cancel context to stop background work, including in-flight scans
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	grpcServer.GracefulStop()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("shutdown complete")
}
