package bootstrap

import (
	"context"
	"fmt"

	"hyaluron-watch/internal/config"
	"hyaluron-watch/internal/infrastructure/cache"
	"hyaluron-watch/internal/infrastructure/database"
	"hyaluron-watch/internal/streaming"
	"hyaluron-watch/pkg/logger"
)

// SetupDatabase connects to PostgreSQL and applies migrations when
// database.migrate is set
func SetupDatabase(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*database.PostgresDB, error) {
	db, err := database.NewPostgres(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("database connection: %w", err)
	}

	if cfg.Migrate {
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("database migration: %w", err)
		}
	}
	return db, nil
}

// SetupRedis connects to Redis
func SetupRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (*cache.RedisCache, error) {
	redisCache, err := cache.NewRedis(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("redis connection: %w", err)
	}
	return redisCache, nil
}

// SetupStreaming creates the event bus and WebSocket hub. NATS is optional:
// a failed connection is logged and events stay in-process.
func SetupStreaming(ctx context.Context, cfg config.NATSConfig, log *logger.Logger) (*streaming.EventBus, *streaming.WebSocketHub) {
	var publisher *streaming.NATSPublisher
	if cfg.Enabled {
		p, err := streaming.NewNATSPublisher(ctx, cfg, log)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to NATS, continuing without external streaming")
		} else {
			publisher = p
		}
	}

	hub := streaming.NewWebSocketHub(log)
	bus := streaming.NewEventBus(publisher, hub, log)
	log.Info().Bool("nats_enabled", publisher != nil).Msg("event bus initialized")

	return bus, hub
}
