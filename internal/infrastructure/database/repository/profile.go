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

const profileColumns = `id, platform, profile_name, profile_link, description, email, phone,
	location, risk_score, board_item_id, first_detected, last_checked, created_at, updated_at`

// ProfileRepository handles profile persistence
type ProfileRepository struct {
	db database.DBTX
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db database.DBTX) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Upsert inserts a profile or refreshes the existing row with the same
// platform and name. Empty incoming contact fields keep the stored values.
func (r *ProfileRepository) Upsert(ctx context.Context, p *models.Profile) (uuid.UUID, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()

	query := `
		INSERT INTO profiles (
			id, platform, profile_name, profile_link, description, email, phone,
			location, risk_score, first_detected, last_checked, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10, $10, $10
		)
		ON CONFLICT (platform, profile_name) DO UPDATE SET
			profile_link = COALESCE(NULLIF(EXCLUDED.profile_link, ''), profiles.profile_link),
			description  = COALESCE(NULLIF(EXCLUDED.description, ''), profiles.description),
			email        = COALESCE(NULLIF(EXCLUDED.email, ''), profiles.email),
			phone        = COALESCE(NULLIF(EXCLUDED.phone, ''), profiles.phone),
			location     = COALESCE(NULLIF(EXCLUDED.location, ''), profiles.location),
			risk_score   = EXCLUDED.risk_score,
			last_checked = EXCLUDED.last_checked,
			updated_at   = EXCLUDED.updated_at
		RETURNING id`

	var id uuid.UUID
	err := r.db.QueryRow(ctx, query,
		p.ID, p.Platform, p.ProfileName, p.ProfileLink, p.Description, p.Email, p.Phone,
		p.Location, p.RiskScore, now,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to upsert profile: %w", err)
	}

	p.ID = id
	return id, nil
}

// GetByID retrieves a profile by ID
func (r *ProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	rows, err := r.db.Query(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	p, err := oneOrNil(pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[models.Profile]))
	if err != nil {
		return nil, fmt.Errorf("failed to scan profile: %w", err)
	}
	return p, nil
}

// List retrieves profiles by descending risk score
func (r *ProfileRepository) List(ctx context.Context, filter models.ProfileFilter) ([]*models.Profile, error) {
	query := `
		SELECT ` + profileColumns + `
		FROM profiles
		WHERE ($1 = '' OR LOWER(platform) = LOWER($1))
		  AND risk_score >= $2
		ORDER BY risk_score DESC, last_checked DESC
		LIMIT $3 OFFSET $4`

	rows, err := r.db.Query(ctx, query, filter.Platform, filter.MinRisk, clampLimit(filter.Limit), clampOffset(filter.Offset))
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	profiles, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[models.Profile])
	if err != nil {
		return nil, fmt.Errorf("failed to scan profiles: %w", err)
	}
	return profiles, nil
}

// SetBoardItem stores the tracking board item created for a profile
func (r *ProfileRepository) SetBoardItem(ctx context.Context, id uuid.UUID, itemID string) error {
	tag, err := r.db.Exec(ctx, `UPDATE profiles SET board_item_id = $2, updated_at = NOW() WHERE id = $1`, id, itemID)
	if err != nil {
		return fmt.Errorf("failed to set board item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("profile %s not found", id)
	}
	return nil
}
