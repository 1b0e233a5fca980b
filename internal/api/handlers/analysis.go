package handlers

import (
	"context"
	"net/http"

	"hyaluron-watch/internal/domain/models"
	"hyaluron-watch/pkg/logger"
)

// Scorer scores single profiles and posts
type Scorer interface {
	AnalyzeProfile(p models.RawProfile) models.RiskAssessment
	AnalyzePost(postText string) models.PostAssessment
}

// BatchAnalyzer classifies scraped batches
type BatchAnalyzer interface {
	AnalyzeScrapingResults(ctx context.Context, batches []models.PlatformBatch) ([]models.SuspiciousProfile, *models.BatchReport)
}

// AssessmentCache memoizes assessments of identical text
type AssessmentCache interface {
	GetProfile(ctx context.Context, p models.RawProfile) (*models.RiskAssessment, error)
	PutProfile(ctx context.Context, p models.RawProfile, assessment *models.RiskAssessment) error
	GetPost(ctx context.Context, text string) (*models.PostAssessment, error)
	PutPost(ctx context.Context, text string, assessment *models.PostAssessment) error
}

// AnalysisHandler scores profiles and posts on demand
type AnalysisHandler struct {
	scorer    Scorer
	batch     BatchAnalyzer
	cache     AssessmentCache
	threshold float64
	logger    *logger.Logger
}

// NewAnalysisHandler creates a new analysis handler. cache may be nil.
func NewAnalysisHandler(scorer Scorer, batch BatchAnalyzer, cache AssessmentCache, threshold float64, log *logger.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		scorer:    scorer,
		batch:     batch,
		cache:     cache,
		threshold: threshold,
		logger:    log.WithComponent("analysis-handler"),
	}
}

// AnalyzePostRequest is the body of POST /api/v1/analyze/post
type AnalyzePostRequest struct {
	PostText string `json:"post_text" validate:"max=100000"`
}

// AnalyzeBatchRequest is the body of POST /api/v1/analyze/batch. Batches are
// analyzed in the order given.
type AnalyzeBatchRequest struct {
	Batches []models.PlatformBatch `json:"batches" validate:"required,min=1,max=20,dive"`
}

// ProfileAnalysisResponse is a profile assessment with its classification
type ProfileAnalysisResponse struct {
	models.RiskAssessment
	Suspicious bool `json:"suspicious"`
	Cached     bool `json:"cached"`
}

// BatchAnalysisResponse lists the suspicious profiles of a batch
type BatchAnalysisResponse struct {
	Suspicious []models.SuspiciousProfile `json:"suspicious"`
	Report     *models.BatchReport        `json:"report"`
}

// AnalyzeProfile handles POST /api/v1/analyze/profile
func (h *AnalysisHandler) AnalyzeProfile(w http.ResponseWriter, r *http.Request) {
	var req models.RawProfile
	if err := decodeRequest(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	if h.cache != nil {
		if cached, err := h.cache.GetProfile(ctx, req); err == nil {
			respondJSON(w, http.StatusOK, ProfileAnalysisResponse{
				RiskAssessment: *cached,
				Suspicious:     cached.RiskScore >= h.threshold,
				Cached:         true,
			})
			return
		}
	}

	assessment := h.scorer.AnalyzeProfile(req)
	if h.cache != nil {
		if err := h.cache.PutProfile(ctx, req, &assessment); err != nil {
			h.logger.Debug().Err(err).Msg("failed to cache profile assessment")
		}
	}

	respondJSON(w, http.StatusOK, ProfileAnalysisResponse{
		RiskAssessment: assessment,
		Suspicious:     assessment.RiskScore >= h.threshold,
	})
}

// AnalyzePost handles POST /api/v1/analyze/post
func (h *AnalysisHandler) AnalyzePost(w http.ResponseWriter, r *http.Request) {
	var req AnalyzePostRequest
	if err := decodeRequest(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	if h.cache != nil {
		if cached, err := h.cache.GetPost(ctx, req.PostText); err == nil {
			respondJSON(w, http.StatusOK, cached)
			return
		}
	}

	assessment := h.scorer.AnalyzePost(req.PostText)
	if h.cache != nil {
		if err := h.cache.PutPost(ctx, req.PostText, &assessment); err != nil {
			h.logger.Debug().Err(err).Msg("failed to cache post assessment")
		}
	}

	respondJSON(w, http.StatusOK, assessment)
}

// AnalyzeBatch handles POST /api/v1/analyze/batch
func (h *AnalysisHandler) AnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeBatchRequest
	if err := decodeRequest(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	suspicious, report := h.batch.AnalyzeScrapingResults(r.Context(), req.Batches)
	if suspicious == nil {
		suspicious = []models.SuspiciousProfile{}
	}

	h.logger.Info().
		Int("analyzed", report.Analyzed).
		Int("suspicious", report.Suspicious).
		Msg("batch analyzed")

	respondJSON(w, http.StatusOK, BatchAnalysisResponse{Suspicious: suspicious, Report: report})
}
