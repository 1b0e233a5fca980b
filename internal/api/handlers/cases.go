package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"hyaluron-watch/internal/domain/models"
	"hyaluron-watch/internal/domain/services"
	"hyaluron-watch/pkg/logger"
)

// CaseManager drives the case lifecycle
type CaseManager interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Case, error)
	List(ctx context.Context, filter models.CaseFilter) ([]*models.Case, error)
	RequestAuthorization(ctx context.Context, id uuid.UUID) (*models.Case, error)
	MarkResponded(ctx context.Context, id uuid.UUID) (*models.Case, error)
	Close(ctx context.Context, id uuid.UUID) (*models.Case, error)
	CheckDeadlines(ctx context.Context, now time.Time) ([]*models.Case, error)
}

// CasesHandler handles enforcement case endpoints
type CasesHandler struct {
	cases  CaseManager
	now    func() time.Time
	logger *logger.Logger
}

// NewCasesHandler creates a new cases handler
func NewCasesHandler(cases CaseManager, log *logger.Logger) *CasesHandler {
	return &CasesHandler{
		cases:  cases,
		now:    time.Now,
		logger: log.WithComponent("cases-handler"),
	}
}

// CaseListResponse is a page of cases
type CaseListResponse struct {
	Cases []*models.Case `json:"cases"`
	Count int            `json:"count"`
}

// DeadlineCheckResponse lists the cases escalated by a deadline check
type DeadlineCheckResponse struct {
	Escalated []*models.Case `json:"escalated"`
	Count     int            `json:"count"`
	Errors    string         `json:"errors,omitempty"`
}

// List handles GET /api/v1/cases
func (h *CasesHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := models.CaseFilter{
		Status: models.CaseStatus(r.URL.Query().Get("status")),
		Limit:  getIntParam(r, "limit", 100),
		Offset: getIntParam(r, "offset", 0),
	}

	cases, err := h.cases.List(r.Context(), filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list cases")
		respondError(w, http.StatusInternalServerError, "failed to list cases")
		return
	}
	if cases == nil {
		cases = []*models.Case{}
	}

	respondJSON(w, http.StatusOK, CaseListResponse{Cases: cases, Count: len(cases)})
}

// Get handles GET /api/v1/cases/{id}
func (h *CasesHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.withCase(w, r, h.cases.Get)
}

// RequestAuthorization handles POST /api/v1/cases/{id}/authorization-request
func (h *CasesHandler) RequestAuthorization(w http.ResponseWriter, r *http.Request) {
	h.withCase(w, r, h.cases.RequestAuthorization)
}

// MarkResponded handles POST /api/v1/cases/{id}/response
func (h *CasesHandler) MarkResponded(w http.ResponseWriter, r *http.Request) {
	h.withCase(w, r, h.cases.MarkResponded)
}

// Close handles POST /api/v1/cases/{id}/close
func (h *CasesHandler) Close(w http.ResponseWriter, r *http.Request) {
	h.withCase(w, r, h.cases.Close)
}

// CheckDeadlines handles POST /api/v1/cases/check-deadlines
func (h *CasesHandler) CheckDeadlines(w http.ResponseWriter, r *http.Request) {
	escalated, err := h.cases.CheckDeadlines(r.Context(), h.now())
	resp := DeadlineCheckResponse{Escalated: escalated, Count: len(escalated)}
	if resp.Escalated == nil {
		resp.Escalated = []*models.Case{}
	}
	if err != nil {
		h.logger.Error().Err(err).Int("escalated", len(escalated)).Msg("deadline check incomplete")
		resp.Errors = err.Error()
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *CasesHandler) withCase(w http.ResponseWriter, r *http.Request, fn func(context.Context, uuid.UUID) (*models.Case, error)) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid case id")
		return
	}

	c, err := fn(r.Context(), id)
	switch {
	case errors.Is(err, services.ErrCaseNotFound):
		respondError(w, http.StatusNotFound, "case not found")
	case errors.Is(err, services.ErrInvalidTransition):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrMailerDisabled):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	case err != nil:
		h.logger.Error().Err(err).Str("case_id", id.String()).Msg("case operation failed")
		respondError(w, http.StatusBadGateway, "case operation failed")
	default:
		respondJSON(w, http.StatusOK, c)
	}
}
