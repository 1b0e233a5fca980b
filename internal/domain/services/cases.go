package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"hyaluron-watch/internal/board"
	"hyaluron-watch/internal/domain/models"
	"hyaluron-watch/internal/domain/services/detection"
	"hyaluron-watch/internal/streaming"
	"hyaluron-watch/pkg/logger"
)

var (
	// ErrCaseNotFound is returned when a case ID does not exist
	ErrCaseNotFound = errors.New("case not found")

	// ErrInvalidTransition is returned when a case cannot move to the requested status
	ErrInvalidTransition = errors.New("invalid case status transition")

	// ErrProfileNotPersisted is returned when filing a case for a profile without an ID
	ErrProfileNotPersisted = errors.New("profile has not been persisted")

	// ErrMailerDisabled is returned when an e-mail step runs without delivery configured
	ErrMailerDisabled = errors.New("e-mail delivery not configured")
)

// CaseStore persists cases. Get methods return nil, nil when nothing matches.
type CaseStore interface {
	CreateCase(ctx context.Context, c *models.Case) error
	UpdateCase(ctx context.Context, c *models.Case) error
	GetCase(ctx context.Context, id uuid.UUID) (*models.Case, error)
	GetCaseByProfile(ctx context.Context, profileID uuid.UUID) (*models.Case, error)
	ListCases(ctx context.Context, filter models.CaseFilter) ([]*models.Case, error)
	ListOverdueCases(ctx context.Context, now time.Time) ([]*models.Case, error)
	SetProfileBoardItem(ctx context.Context, profileID uuid.UUID, itemID string) error
}

// BoardClient is the subset of the tracking board used for cases
type BoardClient interface {
	Enabled() bool
	CreateEntry(ctx context.Context, e board.Entry) (string, error)
	SetStatus(ctx context.Context, itemID, status, step string) error
}

// Mailer sends case correspondence
type Mailer interface {
	Enabled() bool
	ResponseDeadline() time.Duration
	SendAuthorizationRequest(ctx context.Context, c *models.Case) error
	SendHealthAuthorityReport(ctx context.Context, c *models.Case, city string) (string, error)
}

// CaseRecorder counts case transitions
type CaseRecorder interface {
	CaseFiled()
	CaseEscalated()
}

// LocationResolver finds city names in free text
type LocationResolver interface {
	ExtractLocations(text string) []string
}

// CaseDeps are the collaborators of a CaseService. Only Store is required.
type CaseDeps struct {
	Store     CaseStore
	Board     BoardClient
	Mailer    Mailer
	Publisher detection.EventPublisher
	Recorder  CaseRecorder
	Locations LocationResolver
}

// CaseService drives a case from filing through escalation
type CaseService struct {
	deps   CaseDeps
	now    func() time.Time
	logger *logger.Logger
}

// NewCaseService creates a new case service
func NewCaseService(deps CaseDeps, log *logger.Logger) *CaseService {
	return &CaseService{
		deps:   deps,
		now:    time.Now,
		logger: log.WithComponent("cases"),
	}
}

// FileCase opens a case for a suspicious profile and creates its board
// item. Filing the same profile twice returns the existing case.
func (s *CaseService) FileCase(ctx context.Context, profile models.SuspiciousProfile) (*models.Case, error) {
	if profile.ProfileID == nil {
		return nil, ErrProfileNotPersisted
	}

	existing, err := s.deps.Store.GetCaseByProfile(ctx, *profile.ProfileID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up case: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	now := s.now()
	c := &models.Case{
		ID:          uuid.New(),
		ProfileID:   *profile.ProfileID,
		Platform:    profile.Platform,
		ProfileName: profile.ProfileName,
		ProfileLink: profile.ProfileLink,
		Email:       profile.Email,
		Location:    profile.Location,
		Status:      models.CaseStatusFiled,
		Notes:       profile.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if profile.Analysis != nil {
		c.RiskScore = profile.Analysis.RiskScore
	}
	if len(profile.Screenshots) > 0 && profile.Screenshots[0] != nil {
		c.ScreenshotPath = profile.Screenshots[0].FilePath
	}

	if s.boardEnabled() {
		itemID, err := s.deps.Board.CreateEntry(ctx, board.Entry{
			Platform:       c.Platform,
			ProfileName:    c.ProfileName,
			ProfileLink:    c.ProfileLink,
			PostText:       profile.PostText,
			Email:          c.Email,
			Location:       c.Location,
			ScreenshotPath: c.ScreenshotPath,
			RiskScore:      c.RiskScore,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create board entry: %w", err)
		}
		c.BoardItemID = itemID
	}

	if err := s.deps.Store.CreateCase(ctx, c); err != nil {
		if c.BoardItemID != "" {
			s.logger.Error().Err(err).
				Str("board_item_id", c.BoardItemID).
				Str("profile_name", c.ProfileName).
				Msg("case not saved; board item left without a case")
		}
		return nil, fmt.Errorf("failed to save case: %w", err)
	}
	if c.BoardItemID != "" {
		if err := s.deps.Store.SetProfileBoardItem(ctx, c.ProfileID, c.BoardItemID); err != nil {
			s.logger.Warn().Err(err).Str("case_id", c.ID.String()).Msg("failed to link board item to profile")
		}
	}

	s.publish(ctx, models.EventCaseFiled, c)
	if s.deps.Recorder != nil {
		s.deps.Recorder.CaseFiled()
	}

	s.logger.Info().
		Str("case_id", c.ID.String()).
		Str("platform", c.Platform).
		Str("profile_name", c.ProfileName).
		Str("board_item_id", c.BoardItemID).
		Msg("case filed")

	return c, nil
}

// RequestAuthorization e-mails the provider asking for proof of
// authorization and starts the response deadline
func (s *CaseService) RequestAuthorization(ctx context.Context, id uuid.UUID) (*models.Case, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.Status.CanTransition(models.CaseStatusAuthorizationRequested) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, c.Status, models.CaseStatusAuthorizationRequested)
	}
	if !s.MailerEnabled() {
		return nil, ErrMailerDisabled
	}

	now := s.now()
	deadline := now.Add(s.deps.Mailer.ResponseDeadline())
	c.AuthorizationRequestedAt = &now

	if err := s.deps.Mailer.SendAuthorizationRequest(ctx, c); err != nil {
		c.AuthorizationRequestedAt = nil
		return nil, fmt.Errorf("failed to request authorization: %w", err)
	}

	c.Status = models.CaseStatusAuthorizationRequested
	c.Deadline = &deadline
	c.UpdatedAt = now
	if err := s.deps.Store.UpdateCase(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to update case: %w", err)
	}

	s.setBoardStatus(ctx, c, board.StatusRequested, board.StepRequestSent)

	s.logger.Info().
		Str("case_id", c.ID.String()).
		Time("deadline", deadline).
		Msg("authorization requested")

	return c, nil
}

// MarkResponded records that the provider answered the authorization request
func (s *CaseService) MarkResponded(ctx context.Context, id uuid.UUID) (*models.Case, error) {
	return s.transition(ctx, id, models.CaseStatusResponded, func(c *models.Case, now time.Time) {
		c.RespondedAt = &now
	})
}

// Close ends a case
func (s *CaseService) Close(ctx context.Context, id uuid.UUID) (*models.Case, error) {
	return s.transition(ctx, id, models.CaseStatusClosed, nil)
}

// CheckDeadlines escalates every case whose authorization request went
// unanswered past its deadline. Each case is escalated independently; the
// returned error joins the individual failures.
func (s *CaseService) CheckDeadlines(ctx context.Context, now time.Time) ([]*models.Case, error) {
	overdue, err := s.deps.Store.ListOverdueCases(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue cases: %w", err)
	}

	var escalated []*models.Case
	var errs []error
	for _, c := range overdue {
		if !c.Overdue(now) {
			continue
		}
		if err := s.escalate(ctx, c, now); err != nil {
			s.logger.Error().Err(err).Str("case_id", c.ID.String()).Msg("failed to escalate case")
			errs = append(errs, fmt.Errorf("case %s: %w", c.ID, err))
			continue
		}
		escalated = append(escalated, c)
	}

	s.logger.Info().
		Int("overdue", len(overdue)).
		Int("escalated", len(escalated)).
		Msg("deadlines checked")

	return escalated, errors.Join(errs...)
}

func (s *CaseService) escalate(ctx context.Context, c *models.Case, now time.Time) error {
	if !s.MailerEnabled() {
		return ErrMailerDisabled
	}

	city := s.City(c)
	to, err := s.deps.Mailer.SendHealthAuthorityReport(ctx, c, city)
	if err != nil {
		return fmt.Errorf("failed to notify health authority: %w", err)
	}

	c.Status = models.CaseStatusReported
	c.ReportedAt = &now
	c.AuthorityEmail = to
	c.UpdatedAt = now
	if err := s.deps.Store.UpdateCase(ctx, c); err != nil {
		return fmt.Errorf("failed to update case: %w", err)
	}

	s.setBoardStatus(ctx, c, board.StatusReported, board.StepAuthorityMsg)
	s.publish(ctx, models.EventCaseEscalated, c)
	if s.deps.Recorder != nil {
		s.deps.Recorder.CaseEscalated()
	}

	s.logger.Info().
		Str("case_id", c.ID.String()).
		Str("authority", to).
		Str("city", city).
		Msg("case escalated to health authority")
	return nil
}

// City picks the city a case is reported to: the first gazetteer city in
// the location or notes, else the raw location
func (s *CaseService) City(c *models.Case) string {
	if s.deps.Locations != nil {
		for _, text := range []string{c.Location, c.Notes} {
			if cities := s.deps.Locations.ExtractLocations(text); len(cities) > 0 {
				return cities[0]
			}
		}
	}
	return strings.TrimSpace(c.Location)
}

// Get returns a case by ID
func (s *CaseService) Get(ctx context.Context, id uuid.UUID) (*models.Case, error) {
	c, err := s.deps.Store.GetCase(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get case: %w", err)
	}
	if c == nil {
		return nil, ErrCaseNotFound
	}
	return c, nil
}

// List returns cases matching filter
func (s *CaseService) List(ctx context.Context, filter models.CaseFilter) ([]*models.Case, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	cases, err := s.deps.Store.ListCases(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	return cases, nil
}

func (s *CaseService) transition(ctx context.Context, id uuid.UUID, next models.CaseStatus, apply func(*models.Case, time.Time)) (*models.Case, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.Status.CanTransition(next) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, c.Status, next)
	}

	now := s.now()
	c.Status = next
	c.UpdatedAt = now
	if apply != nil {
		apply(c, now)
	}
	if err := s.deps.Store.UpdateCase(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to update case: %w", err)
	}

	s.logger.Info().Str("case_id", c.ID.String()).Str("status", string(next)).Msg("case status changed")
	return c, nil
}

// MailerEnabled reports whether authorization requests can be sent
func (s *CaseService) MailerEnabled() bool {
	return s.deps.Mailer != nil && s.deps.Mailer.Enabled()
}

func (s *CaseService) boardEnabled() bool {
	return s.deps.Board != nil && s.deps.Board.Enabled()
}

// setBoardStatus mirrors a transition on the board. Failures are logged,
// the case row is authoritative.
func (s *CaseService) setBoardStatus(ctx context.Context, c *models.Case, status, step string) {
	if !s.boardEnabled() || c.BoardItemID == "" {
		return
	}
	if err := s.deps.Board.SetStatus(ctx, c.BoardItemID, status, step); err != nil {
		s.logger.Warn().Err(err).Str("case_id", c.ID.String()).Msg("failed to update board status")
	}
}

func (s *CaseService) publish(ctx context.Context, eventType models.DetectionEventType, c *models.Case) {
	if s.deps.Publisher == nil {
		return
	}
	if err := s.deps.Publisher.PublishDetection(ctx, streaming.NewCaseEvent(eventType, c)); err != nil {
		s.logger.Warn().Err(err).Str("case_id", c.ID.String()).Msg("failed to publish case event")
	}
}
