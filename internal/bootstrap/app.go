// Package bootstrap wires configuration, infrastructure and the monitoring
// pipeline for the hyaluron-watch binaries.
package bootstrap

import (
	"context"
	"fmt"

	"hyaluron-watch/internal/config"
	"hyaluron-watch/internal/infrastructure/cache"
	"hyaluron-watch/internal/infrastructure/database"
	"hyaluron-watch/internal/infrastructure/database/repository"
	"hyaluron-watch/internal/metrics"
	"hyaluron-watch/internal/streaming"
	"hyaluron-watch/pkg/logger"
)

// App holds every long-lived component of a process
type App struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *database.PostgresDB
	Redis    *cache.RedisCache
	Store    *repository.Store
	Metrics  *metrics.Metrics
	EventBus *streaming.EventBus
	Hub      *streaming.WebSocketHub
	Pipeline *Pipeline
}

// New connects the infrastructure and builds the pipeline. On error every
// connection opened so far is closed.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	app := &App{
		Config:  cfg,
		Logger:  log,
		Metrics: metrics.New(nil),
	}

	db, err := SetupDatabase(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	app.DB = db
	app.Store = repository.NewStore(db.Pool())

	redisCache, err := SetupRedis(ctx, cfg.Redis, log)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Redis = redisCache

	app.EventBus, app.Hub = SetupStreaming(ctx, cfg.NATS, log)

	pipeline, err := SetupPipeline(cfg, app.Store, app.Redis, app.EventBus, app.Metrics, log)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}
	app.Pipeline = pipeline

	return app, nil
}

// Close releases connections in reverse order of creation
func (a *App) Close() {
	if a.EventBus != nil {
		a.EventBus.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("failed to close redis")
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
