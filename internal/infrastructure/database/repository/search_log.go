package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"hyaluron-watch/internal/domain/models"
	"hyaluron-watch/internal/infrastructure/database"
)

const searchLogColumns = `id, platform, search_term, results_count, status, error, started_at, finished_at`

// SearchLogRepository records scraper fetches
type SearchLogRepository struct {
	db database.DBTX
}

// NewSearchLogRepository creates a new search log repository
func NewSearchLogRepository(db database.DBTX) *SearchLogRepository {
	return &SearchLogRepository{db: db}
}

// Create inserts a search log entry
func (r *SearchLogRepository) Create(ctx context.Context, l *models.SearchLog) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO search_logs (`+searchLogColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		l.ID, l.Platform, l.SearchTerm, l.ResultsCount, l.Status, l.Error, l.StartedAt, l.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create search log: %w", err)
	}
	return nil
}

// ListRecent returns the latest search log entries
func (r *SearchLogRepository) ListRecent(ctx context.Context, limit int) ([]*models.SearchLog, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+searchLogColumns+` FROM search_logs ORDER BY started_at DESC LIMIT $1`,
		clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list search logs: %w", err)
	}
	logs, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[models.SearchLog])
	if err != nil {
		return nil, fmt.Errorf("failed to scan search logs: %w", err)
	}
	return logs, nil
}
