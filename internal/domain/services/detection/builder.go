package detection

import (
	"fmt"

	"hyaluron-watch/internal/config"
	"hyaluron-watch/pkg/logger"
)

// NewRiskEngineFromConfig wires the default pattern library, extractor,
// scorer and configured weights into a risk engine.
func NewRiskEngineFromConfig(cfg config.DetectionConfig, log *logger.Logger) (*RiskEngine, error) {
	patterns, err := DefaultPatterns()
	if err != nil {
		return nil, fmt.Errorf("failed to load pattern library: %w", err)
	}

	extractor := NewExtractor(patterns, cfg.MaxTextLength, log)
	scorer := NewCommercialScorer(patterns, cfg.CommercialAmplification, cfg.MaxTextLength, log)

	return NewRiskEngine(extractor, scorer, WeightsFromConfig(cfg))
}

// NewCoordinatorFromConfig builds the full detection stack from configuration
func NewCoordinatorFromConfig(cfg config.DetectionConfig, collab Collaborators, log *logger.Logger) (*Coordinator, error) {
	engine, err := NewRiskEngineFromConfig(cfg, log)
	if err != nil {
		return nil, err
	}
	return NewCoordinator(engine, cfg.SuspicionThreshold, collab, log)
}
