package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"hyaluron-watch/internal/domain/models"
	"hyaluron-watch/internal/infrastructure/database"
)

const screenshotColumns = `id, profile_id, post_id, url, file_path, is_evidence, metadata, captured_at`

// ScreenshotRepository handles evidence screenshot records
type ScreenshotRepository struct {
	db database.DBTX
}

// NewScreenshotRepository creates a new screenshot repository
func NewScreenshotRepository(db database.DBTX) *ScreenshotRepository {
	return &ScreenshotRepository{db: db}
}

// Create inserts a screenshot record
func (r *ScreenshotRepository) Create(ctx context.Context, s *models.Screenshot) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.CapturedAt.IsZero() {
		s.CapturedAt = time.Now()
	}
	metadata := s.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO screenshots (`+screenshotColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.ProfileID, s.PostID, s.URL, s.FilePath, s.IsEvidence, metadata, s.CapturedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create screenshot: %w", err)
	}
	return nil
}

// ListByProfile returns the screenshots of a profile, newest first
func (r *ScreenshotRepository) ListByProfile(ctx context.Context, profileID uuid.UUID) ([]*models.Screenshot, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+screenshotColumns+` FROM screenshots WHERE profile_id = $1 ORDER BY captured_at DESC`,
		profileID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list screenshots: %w", err)
	}
	shots, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[models.Screenshot])
	if err != nil {
		return nil, fmt.Errorf("failed to scan screenshots: %w", err)
	}
	return shots, nil
}
