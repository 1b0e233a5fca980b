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

const caseColumns = `id, profile_id, platform, profile_name, profile_link, email, location,
	risk_score, status, board_item_id, screenshot_path, authority_email, notes,
	authorization_requested_at, deadline, responded_at, reported_at, created_at, updated_at`

// CaseRepository handles enforcement case persistence
type CaseRepository struct {
	db database.DBTX
}

// NewCaseRepository creates a new case repository
func NewCaseRepository(db database.DBTX) *CaseRepository {
	return &CaseRepository{db: db}
}

// Create inserts a new case
func (r *CaseRepository) Create(ctx context.Context, c *models.Case) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = now
	}

	query := `
		INSERT INTO cases (` + caseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	if _, err := r.db.Exec(ctx, query,
		c.ID, c.ProfileID, c.Platform, c.ProfileName, c.ProfileLink, c.Email, c.Location,
		c.RiskScore, c.Status, c.BoardItemID, c.ScreenshotPath, c.AuthorityEmail, c.Notes,
		c.AuthorizationRequestedAt, c.Deadline, c.RespondedAt, c.ReportedAt, c.CreatedAt, c.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to create case: %w", err)
	}
	return nil
}

// Update writes the mutable fields of a case
func (r *CaseRepository) Update(ctx context.Context, c *models.Case) error {
	query := `
		UPDATE cases SET
			status = $2,
			board_item_id = $3,
			authority_email = $4,
			notes = $5,
			authorization_requested_at = $6,
			deadline = $7,
			responded_at = $8,
			reported_at = $9,
			updated_at = $10
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		c.ID, c.Status, c.BoardItemID, c.AuthorityEmail, c.Notes,
		c.AuthorizationRequestedAt, c.Deadline, c.RespondedAt, c.ReportedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update case: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("case %s not found", c.ID)
	}
	return nil
}

// GetByID retrieves a case by ID
func (r *CaseRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Case, error) {
	return r.getOne(ctx, `SELECT `+caseColumns+` FROM cases WHERE id = $1`, id)
}

// GetByProfile retrieves the case filed for a profile
func (r *CaseRepository) GetByProfile(ctx context.Context, profileID uuid.UUID) (*models.Case, error) {
	return r.getOne(ctx, `SELECT `+caseColumns+` FROM cases WHERE profile_id = $1`, profileID)
}

func (r *CaseRepository) getOne(ctx context.Context, query string, arg any) (*models.Case, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to get case: %w", err)
	}
	c, err := oneOrNil(pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[models.Case]))
	if err != nil {
		return nil, fmt.Errorf("failed to scan case: %w", err)
	}
	return c, nil
}

// List retrieves cases, newest first
func (r *CaseRepository) List(ctx context.Context, filter models.CaseFilter) ([]*models.Case, error) {
	query := `
		SELECT ` + caseColumns + `
		FROM cases
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	return r.list(ctx, query, string(filter.Status), clampLimit(filter.Limit), clampOffset(filter.Offset))
}

// ListOverdue retrieves cases whose authorization deadline passed without a response
func (r *CaseRepository) ListOverdue(ctx context.Context, now time.Time) ([]*models.Case, error) {
	query := `
		SELECT ` + caseColumns + `
		FROM cases
		WHERE status = $1 AND deadline < $2 AND responded_at IS NULL
		ORDER BY deadline`

	return r.list(ctx, query, string(models.CaseStatusAuthorizationRequested), now)
}

func (r *CaseRepository) list(ctx context.Context, query string, args ...any) ([]*models.Case, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	cases, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[models.Case])
	if err != nil {
		return nil, fmt.Errorf("failed to scan cases: %w", err)
	}
	return cases, nil
}
