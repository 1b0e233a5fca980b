package detection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"hyaluron-watch/internal/domain/models"
	"hyaluron-watch/pkg/logger"
)

// DefaultSuspicionThreshold is the risk score at which a profile is forwarded
const DefaultSuspicionThreshold = 50.0

// ErrInvalidThreshold is returned for thresholds outside [0, 100]
var ErrInvalidThreshold = errors.New("suspicion threshold must be within [0, 100]")

// Persistence stores suspicious profiles and their posts. Both operations
// are idempotent: profiles by platform and name, posts by profile and link.
type Persistence interface {
	UpsertProfile(ctx context.Context, platform string, profile models.RawProfile) (uuid.UUID, error)
	UpsertPost(ctx context.Context, profileID uuid.UUID, post models.Post) (uuid.UUID, error)
}

// EvidenceCapturer records a durable artifact of a URL
type EvidenceCapturer interface {
	CaptureAndStore(ctx context.Context, url string, profileID uuid.UUID, postID *uuid.UUID) (*models.Screenshot, error)
}

// EventPublisher announces detections to other services
type EventPublisher interface {
	PublishDetection(ctx context.Context, event *models.DetectionEvent) error
}

// Recorder receives per-profile outcomes for metrics
type Recorder interface {
	ProfileAnalyzed(platform string, score float64, suspicious bool)
	CollaboratorFailed(collaborator string)
}

// Collaborators are the optional sinks a coordinator forwards to. Nil
// members are skipped.
type Collaborators struct {
	Persistence Persistence
	Evidence    EvidenceCapturer
	Publisher   EventPublisher
	Recorder    Recorder
}

// Coordinator classifies scraped batches and routes suspicious profiles to
// persistence and evidence capture. It keeps no state between batches.
type Coordinator struct {
	engine    *RiskEngine
	threshold float64
	collab    Collaborators
	logger    *logger.Logger
}

// NewCoordinator creates a detection coordinator
func NewCoordinator(engine *RiskEngine, threshold float64, collab Collaborators, log *logger.Logger) (*Coordinator, error) {
	if threshold < 0 || threshold > 100 {
		return nil, fmt.Errorf("%w: got %.2f", ErrInvalidThreshold, threshold)
	}
	return &Coordinator{
		engine:    engine,
		threshold: threshold,
		collab:    collab,
		logger:    log.WithComponent("detection"),
	}, nil
}

// Threshold returns the configured suspicion threshold
func (c *Coordinator) Threshold() float64 {
	return c.threshold
}

// Engine returns the risk engine used for scoring
func (c *Coordinator) Engine() *RiskEngine {
	return c.engine
}

// AnalyzeScrapingResults scores every profile in batch order and returns
// those at or above the threshold, in the same order. Collaborator failures
// are recorded in the report and never stop the batch.
func (c *Coordinator) AnalyzeScrapingResults(ctx context.Context, batches []models.PlatformBatch) ([]models.SuspiciousProfile, *models.BatchReport) {
	report := &models.BatchReport{StartedAt: time.Now()}
	var suspicious []models.SuspiciousProfile

	for _, batch := range batches {
		for _, raw := range batch.Profiles {
			if raw.Platform == "" {
				raw.Platform = batch.Platform
			}

			assessment := c.engine.AnalyzeProfile(raw)
			raw.Analysis = &assessment
			report.Analyzed++

			isSuspicious := assessment.RiskScore >= c.threshold
			if c.collab.Recorder != nil {
				c.collab.Recorder.ProfileAnalyzed(batch.Platform, assessment.RiskScore, isSuspicious)
			}
			if !isSuspicious {
				report.Record(models.BatchItem{
					Platform:    batch.Platform,
					ProfileName: raw.ProfileName,
					Status:      models.BatchItemBelowThreshold,
					RiskScore:   assessment.RiskScore,
				})
				continue
			}

			report.Suspicious++
			item, entry := c.forward(ctx, batch.Platform, raw)
			report.Record(item)
			suspicious = append(suspicious, entry)
		}
	}

	report.FinishedAt = time.Now()
	c.logger.Info().
		Int("analyzed", report.Analyzed).
		Int("suspicious", report.Suspicious).
		Int("failed", report.Failed).
		Dur("duration", report.FinishedAt.Sub(report.StartedAt)).
		Msg("scraping results analyzed")

	return suspicious, report
}

// forward hands one suspicious profile to the collaborators
func (c *Coordinator) forward(ctx context.Context, platform string, raw models.RawProfile) (models.BatchItem, models.SuspiciousProfile) {
	entry := models.SuspiciousProfile{RawProfile: raw}
	item := models.BatchItem{
		Platform:    platform,
		ProfileName: raw.ProfileName,
		Status:      models.BatchItemProcessed,
		RiskScore:   raw.Analysis.RiskScore,
	}
	log := c.logger.WithProfile(platform, raw.ProfileName)

	if raw.HasPost() {
		post := c.engine.AnalyzePost(raw.PostText)
		entry.PostAnalysis = &post
	}

	if c.collab.Persistence != nil {
		profileID, err := c.collab.Persistence.UpsertProfile(ctx, platform, raw)
		if err != nil {
			return c.fail(log, item, "persistence", fmt.Errorf("failed to save profile: %w", err)), entry
		}
		entry.ProfileID = &profileID

		if entry.PostAnalysis != nil {
			postID, err := c.collab.Persistence.UpsertPost(ctx, profileID, models.Post{
				ProfileID:           profileID,
				PostLink:            raw.PostLink,
				PostText:            raw.PostText,
				ContainsHyaluronPen: entry.PostAnalysis.ContainsHyaluronPen,
				ContainsPrice:       entry.PostAnalysis.ContainsPrice,
				PriceMentioned:      entry.PostAnalysis.PriceMentioned,
				RiskScore:           entry.PostAnalysis.RiskScore,
			})
			if err != nil {
				return c.fail(log, item, "persistence", fmt.Errorf("failed to save post: %w", err)), entry
			}
			entry.PostID = &postID
		}
	}

	if c.collab.Evidence != nil && entry.ProfileID != nil {
		for _, target := range evidenceTargets(raw, entry.PostID) {
			shot, err := c.collab.Evidence.CaptureAndStore(ctx, target.url, *entry.ProfileID, target.postID)
			// A file written to disk is kept even when its record failed to save.
			if shot != nil {
				entry.Screenshots = append(entry.Screenshots, shot)
			}
			if err != nil {
				item = c.fail(log, item, "evidence", fmt.Errorf("failed to capture %s: %w", target.url, err))
				item.Status = models.BatchItemEvidenceFailed
			}
		}
	}

	if c.collab.Publisher != nil {
		event := &models.DetectionEvent{
			ID:          uuid.NewString(),
			Type:        models.EventSuspiciousProfile,
			Platform:    platform,
			ProfileName: raw.ProfileName,
			ProfileLink: raw.ProfileLink,
			RiskScore:   raw.Analysis.RiskScore,
			Timestamp:   time.Now(),
		}
		if err := c.collab.Publisher.PublishDetection(ctx, event); err != nil {
			log.Warn().Err(err).Msg("failed to publish detection event")
			c.collaboratorFailed("publisher")
		}
	}

	log.Info().
		Float64("risk_score", raw.Analysis.RiskScore).
		Str("status", string(item.Status)).
		Msg("suspicious profile forwarded")

	return item, entry
}

func (c *Coordinator) fail(log *logger.Logger, item models.BatchItem, collaborator string, err error) models.BatchItem {
	log.Error().
		Err(err).
		Str("collaborator", collaborator).
		Msg("collaborator failed, continuing with next profile")
	c.collaboratorFailed(collaborator)

	item.Status = models.BatchItemFailed
	if item.Error != "" {
		item.Error += "; "
	}
	item.Error += err.Error()
	return item
}

func (c *Coordinator) collaboratorFailed(name string) {
	if c.collab.Recorder != nil {
		c.collab.Recorder.CollaboratorFailed(name)
	}
}

type evidenceTarget struct {
	url    string
	postID *uuid.UUID
}

// evidenceTargets picks the profile page and, when distinct, the post page
func evidenceTargets(raw models.RawProfile, postID *uuid.UUID) []evidenceTarget {
	var targets []evidenceTarget
	if raw.ProfileLink != "" {
		targets = append(targets, evidenceTarget{url: raw.ProfileLink})
	}
	if raw.PostLink != "" && raw.PostLink != raw.ProfileLink {
		targets = append(targets, evidenceTarget{url: raw.PostLink, postID: postID})
	}
	return targets
}
