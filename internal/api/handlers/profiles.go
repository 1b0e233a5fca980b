package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"hyaluron-watch/internal/domain/models"
	"hyaluron-watch/internal/infrastructure/database/repository"
	"hyaluron-watch/pkg/logger"
)

// ProfileReader reads persisted profiles
type ProfileReader interface {
	ListProfiles(ctx context.Context, filter models.ProfileFilter) ([]*models.Profile, error)
	GetProfileDetail(ctx context.Context, id uuid.UUID) (*repository.ProfileDetail, error)
}

// ProfilesHandler handles profile endpoints
type ProfilesHandler struct {
	store  ProfileReader
	logger *logger.Logger
}

// NewProfilesHandler creates a new profiles handler
func NewProfilesHandler(store ProfileReader, log *logger.Logger) *ProfilesHandler {
	return &ProfilesHandler{
		store:  store,
		logger: log.WithComponent("profiles-handler"),
	}
}

// ProfileListResponse is a page of profiles
type ProfileListResponse struct {
	Profiles []*models.Profile `json:"profiles"`
	Count    int               `json:"count"`
}

// List handles GET /api/v1/profiles
func (h *ProfilesHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := models.ProfileFilter{
		Platform: r.URL.Query().Get("platform"),
		MinRisk:  getFloatParam(r, "min_risk", 0),
		Limit:    getIntParam(r, "limit", 100),
		Offset:   getIntParam(r, "offset", 0),
	}

	profiles, err := h.store.ListProfiles(r.Context(), filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list profiles")
		respondError(w, http.StatusInternalServerError, "failed to list profiles")
		return
	}
	if profiles == nil {
		profiles = []*models.Profile{}
	}

	respondJSON(w, http.StatusOK, ProfileListResponse{Profiles: profiles, Count: len(profiles)})
}

// Get handles GET /api/v1/profiles/{id}
func (h *ProfilesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid profile id")
		return
	}

	detail, err := h.store.GetProfileDetail(r.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Str("profile_id", id.String()).Msg("failed to get profile")
		respondError(w, http.StatusInternalServerError, "failed to get profile")
		return
	}
	if detail == nil {
		respondError(w, http.StatusNotFound, "profile not found")
		return
	}

	respondJSON(w, http.StatusOK, detail)
}
