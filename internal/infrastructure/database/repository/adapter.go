package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"hyaluron-watch/internal/domain/models"
	"hyaluron-watch/internal/infrastructure/database"
)

// Store adapts the repositories to the interfaces expected by the
// detection coordinator, the evidence service, the case service and the monitor
type Store struct {
	Profiles    *ProfileRepository
	Posts       *PostRepository
	Screenshots *ScreenshotRepository
	Cases       *CaseRepository
	SearchLogs  *SearchLogRepository
}

// NewStore creates a store over a pool or transaction
func NewStore(db database.DBTX) *Store {
	return &Store{
		Profiles:    NewProfileRepository(db),
		Posts:       NewPostRepository(db),
		Screenshots: NewScreenshotRepository(db),
		Cases:       NewCaseRepository(db),
		SearchLogs:  NewSearchLogRepository(db),
	}
}

// UpsertProfile stores a scored raw profile
func (s *Store) UpsertProfile(ctx context.Context, platform string, raw models.RawProfile) (uuid.UUID, error) {
	p := ProfileFromRaw(platform, raw)
	return s.Profiles.Upsert(ctx, &p)
}

// UpsertPost stores a post of a persisted profile
func (s *Store) UpsertPost(ctx context.Context, profileID uuid.UUID, post models.Post) (uuid.UUID, error) {
	post.ProfileID = profileID
	return s.Posts.Upsert(ctx, &post)
}

// CreateScreenshot records a captured screenshot
func (s *Store) CreateScreenshot(ctx context.Context, shot *models.Screenshot) error {
	return s.Screenshots.Create(ctx, shot)
}

// CreateSearchLog records a scraper fetch
func (s *Store) CreateSearchLog(ctx context.Context, entry *models.SearchLog) error {
	return s.SearchLogs.Create(ctx, entry)
}

// CreateCase inserts a case
func (s *Store) CreateCase(ctx context.Context, c *models.Case) error {
	return s.Cases.Create(ctx, c)
}

// UpdateCase writes a case
func (s *Store) UpdateCase(ctx context.Context, c *models.Case) error {
	return s.Cases.Update(ctx, c)
}

// GetCase returns nil when no case has the ID
func (s *Store) GetCase(ctx context.Context, id uuid.UUID) (*models.Case, error) {
	return s.Cases.GetByID(ctx, id)
}

// GetCaseByProfile returns nil when the profile has no case
func (s *Store) GetCaseByProfile(ctx context.Context, profileID uuid.UUID) (*models.Case, error) {
	return s.Cases.GetByProfile(ctx, profileID)
}

// ListCases lists cases
func (s *Store) ListCases(ctx context.Context, filter models.CaseFilter) ([]*models.Case, error) {
	return s.Cases.List(ctx, filter)
}

// ListOverdueCases lists unanswered authorization requests past their deadline
func (s *Store) ListOverdueCases(ctx context.Context, now time.Time) ([]*models.Case, error) {
	return s.Cases.ListOverdue(ctx, now)
}

// SetProfileBoardItem links a profile to its board item
func (s *Store) SetProfileBoardItem(ctx context.Context, profileID uuid.UUID, itemID string) error {
	return s.Profiles.SetBoardItem(ctx, profileID, itemID)
}

// ProfileDetail is a profile with its posts and evidence
type ProfileDetail struct {
	*models.Profile
	Posts       []*models.Post       `json:"posts"`
	Screenshots []*models.Screenshot `json:"screenshots"`
}

// ListProfiles lists persisted profiles by descending risk
func (s *Store) ListProfiles(ctx context.Context, filter models.ProfileFilter) ([]*models.Profile, error) {
	return s.Profiles.List(ctx, filter)
}

// GetProfileDetail returns nil when no profile has the ID
func (s *Store) GetProfileDetail(ctx context.Context, id uuid.UUID) (*ProfileDetail, error) {
	p, err := s.Profiles.GetByID(ctx, id)
	if err != nil || p == nil {
		return nil, err
	}
	posts, err := s.Posts.ListByProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	shots, err := s.Screenshots.ListByProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ProfileDetail{Profile: p, Posts: posts, Screenshots: shots}, nil
}

// ListSearchLogs returns the latest scraper fetches
func (s *Store) ListSearchLogs(ctx context.Context, limit int) ([]*models.SearchLog, error) {
	return s.SearchLogs.ListRecent(ctx, limit)
}
