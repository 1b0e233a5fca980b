package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"hyaluron-watch/internal/domain/models"
	"hyaluron-watch/internal/infrastructure/database"
)

const postColumns = `id, profile_id, post_link, post_text, contains_hyaluron_pen, contains_price,
	price_mentioned, risk_score, created_at`

// PostRepository handles post persistence
type PostRepository struct {
	db database.DBTX
}

// NewPostRepository creates a new post repository
func NewPostRepository(db database.DBTX) *PostRepository {
	return &PostRepository{db: db}
}

// Upsert stores a post. Posts with a link are unique per profile and link;
// posts without one are matched on their text.
func (r *PostRepository) Upsert(ctx context.Context, p *models.Post) (uuid.UUID, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}

	if p.PostLink == "" {
		return r.upsertByText(ctx, p)
	}

	query := `
		INSERT INTO posts (` + postColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (profile_id, post_link) WHERE post_link <> '' DO UPDATE SET
			post_text             = EXCLUDED.post_text,
			contains_hyaluron_pen = EXCLUDED.contains_hyaluron_pen,
			contains_price        = EXCLUDED.contains_price,
			price_mentioned       = EXCLUDED.price_mentioned,
			risk_score            = EXCLUDED.risk_score
		RETURNING id`

	var id uuid.UUID
	if err := r.db.QueryRow(ctx, query, r.args(p)...).Scan(&id); err != nil {
		return uuid.Nil, fmt.Errorf("failed to upsert post: %w", err)
	}
	p.ID = id
	return id, nil
}

func (r *PostRepository) upsertByText(ctx context.Context, p *models.Post) (uuid.UUID, error) {
	var existing uuid.UUID
	err := r.db.QueryRow(ctx,
		`SELECT id FROM posts WHERE profile_id = $1 AND post_link = '' AND post_text = $2 LIMIT 1`,
		p.ProfileID, p.PostText,
	).Scan(&existing)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if _, err := r.db.Exec(ctx,
			`INSERT INTO posts (`+postColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			r.args(p)...,
		); err != nil {
			return uuid.Nil, fmt.Errorf("failed to insert post: %w", err)
		}
		return p.ID, nil
	case err != nil:
		return uuid.Nil, fmt.Errorf("failed to look up post: %w", err)
	}

	if _, err := r.db.Exec(ctx, `
		UPDATE posts SET contains_hyaluron_pen = $2, contains_price = $3, price_mentioned = $4, risk_score = $5
		WHERE id = $1`,
		existing, p.ContainsHyaluronPen, p.ContainsPrice, p.PriceMentioned, p.RiskScore,
	); err != nil {
		return uuid.Nil, fmt.Errorf("failed to update post: %w", err)
	}
	p.ID = existing
	return existing, nil
}

func (r *PostRepository) args(p *models.Post) []any {
	return []any{
		p.ID, p.ProfileID, p.PostLink, p.PostText, p.ContainsHyaluronPen, p.ContainsPrice,
		p.PriceMentioned, p.RiskScore, p.CreatedAt,
	}
}

// ListByProfile returns the posts of a profile, newest first
func (r *PostRepository) ListByProfile(ctx context.Context, profileID uuid.UUID) ([]*models.Post, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+postColumns+` FROM posts WHERE profile_id = $1 ORDER BY created_at DESC`,
		profileID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	posts, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[models.Post])
	if err != nil {
		return nil, fmt.Errorf("failed to scan posts: %w", err)
	}
	return posts, nil
}
