package handlers

import (
	"context"

	"hyaluron-watch/internal/streaming"
	"hyaluron-watch/pkg/logger"
)

// Handlers holds all API handlers
type Handlers struct {
	Health    *HealthHandler
	Analysis  *AnalysisHandler
	Scans     *ScansHandler
	Profiles  *ProfilesHandler
	Cases     *CasesHandler
	Streaming *StreamingHandler
}

// Dependencies holds dependencies for handlers. Cache, SharedStatus, Hub and
// EventBus are optional.
type Dependencies struct {
	Context      context.Context
	Version      string
	Scorer       Scorer
	Batch        BatchAnalyzer
	Threshold    float64
	Cache        AssessmentCache
	Scans        ScanRunner
	SharedStatus StatusLoader
	Profiles     ProfileReader
	Cases        CaseManager
	Checks       map[string]Pinger
	Hub          *streaming.WebSocketHub
	EventBus     *streaming.EventBus
	Logger       *logger.Logger
}

// NewHandlers creates all handlers
func NewHandlers(deps Dependencies) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(deps.Version, deps.Checks, deps.Logger),
		Analysis:  NewAnalysisHandler(deps.Scorer, deps.Batch, deps.Cache, deps.Threshold, deps.Logger),
		Scans:     NewScansHandler(deps.Context, deps.Scans, deps.SharedStatus, deps.Logger),
		Profiles:  NewProfilesHandler(deps.Profiles, deps.Logger),
		Cases:     NewCasesHandler(deps.Cases, deps.Logger),
		Streaming: NewStreamingHandler(deps.Hub, deps.EventBus, deps.Logger),
	}
}
