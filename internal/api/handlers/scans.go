package handlers

import (
	"context"
	"errors"
	"net/http"

	"hyaluron-watch/internal/domain/models"
	"hyaluron-watch/internal/domain/services"
	"hyaluron-watch/pkg/logger"
)

// ScanRunner starts monitor passes in the background and reports their
// progress
type ScanRunner interface {
	Start(ctx context.Context, req models.ScanRequest) error
	Status() services.RunStatus
}

// StatusLoader reads the run status published by another process
type StatusLoader interface {
	LoadRunStatus(ctx context.Context, dest any) error
}

// ScansHandler starts monitor runs and exposes their status
type ScansHandler struct {
	runner  ScanRunner
	shared  StatusLoader
	baseCtx context.Context
	logger  *logger.Logger
}

// NewScansHandler creates a new scans handler. Runs started through it
// live on baseCtx rather than the request context. shared may be nil.
func NewScansHandler(baseCtx context.Context, runner ScanRunner, shared StatusLoader, log *logger.Logger) *ScansHandler {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &ScansHandler{
		runner:  runner,
		shared:  shared,
		baseCtx: baseCtx,
		logger:  log.WithComponent("scans-handler"),
	}
}

// ScanAccepted is the body of a 202 response
type ScanAccepted struct {
	Message string             `json:"message"`
	Status  services.RunStatus `json:"status"`
}

// Start handles POST /api/v1/scans
func (h *ScansHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req models.ScanRequest
	if r.ContentLength != 0 {
		if err := decodeRequest(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if err := h.runner.Start(h.baseCtx, req); err != nil {
		switch {
		case errors.Is(err, services.ErrRunInProgress), errors.Is(err, services.ErrLockHeld):
			respondError(w, http.StatusConflict, err.Error())
		default:
			h.logger.Error().Err(err).Msg("failed to start scan")
			respondError(w, http.StatusInternalServerError, "failed to start scan")
		}
		return
	}

	respondJSON(w, http.StatusAccepted, ScanAccepted{
		Message: "scan started",
		Status:  h.runner.Status(),
	})
}

// Status handles GET /api/v1/scans/status. When this process has not run a
// scan, the status published by the monitor worker is returned instead.
func (h *ScansHandler) Status(w http.ResponseWriter, r *http.Request) {
	status := h.runner.Status()
	if status.State == services.RunStateIdle && h.shared != nil {
		var shared services.RunStatus
		if err := h.shared.LoadRunStatus(r.Context(), &shared); err == nil {
			status = shared
		}
	}
	respondJSON(w, http.StatusOK, status)
}
