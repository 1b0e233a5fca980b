package bootstrap

import (
	"fmt"

	"hyaluron-watch/internal/config"
	"hyaluron-watch/pkg/logger"
)

// LoadConfig loads configuration from path, or from the default locations
// when path is empty.
func LoadConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path == "" {
		cfg, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// CreateLogger builds the process logger from the logger section and
// installs it as the global one. Production always logs JSON.
func CreateLogger(cfg *config.Config) *logger.Logger {
	lc := logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		TimeFormat: cfg.Logger.TimeFormat,
		File:       cfg.Logger.File,
	}
	if cfg.App.Environment == "production" {
		lc.Format = "json"
	}

	log := logger.New(lc)
	logger.SetGlobal(log)
	return log
}
