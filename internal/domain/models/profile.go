package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile is a persisted suspicious profile, unique by platform and name
type Profile struct {
	ID            uuid.UUID `json:"id" db:"id"`
	Platform      string    `json:"platform" db:"platform"`
	ProfileName   string    `json:"profile_name" db:"profile_name"`
	ProfileLink   string    `json:"profile_link,omitempty" db:"profile_link"`
	Description   string    `json:"description,omitempty" db:"description"`
	Email         string    `json:"email,omitempty" db:"email"`
	Phone         string    `json:"phone,omitempty" db:"phone"`
	Location      string    `json:"location,omitempty" db:"location"`
	RiskScore     float64   `json:"risk_score" db:"risk_score"`
	BoardItemID   *string   `json:"board_item_id,omitempty" db:"board_item_id"`
	FirstDetected time.Time `json:"first_detected" db:"first_detected"`
	LastChecked   time.Time `json:"last_checked" db:"last_checked"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// Post is a persisted post, unique by profile and post link when a link exists
type Post struct {
	ID                  uuid.UUID `json:"id" db:"id"`
	ProfileID           uuid.UUID `json:"profile_id" db:"profile_id"`
	PostLink            string    `json:"post_link,omitempty" db:"post_link"`
	PostText            string    `json:"post_text,omitempty" db:"post_text"`
	ContainsHyaluronPen bool      `json:"contains_hyaluron_pen" db:"contains_hyaluron_pen"`
	ContainsPrice       bool      `json:"contains_price" db:"contains_price"`
	PriceMentioned      string    `json:"price_mentioned,omitempty" db:"price_mentioned"`
	RiskScore           float64   `json:"risk_score" db:"risk_score"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
}

// Screenshot is a captured evidence artifact
type Screenshot struct {
	ID         uuid.UUID      `json:"id" db:"id"`
	ProfileID  uuid.UUID      `json:"profile_id" db:"profile_id"`
	PostID     *uuid.UUID     `json:"post_id,omitempty" db:"post_id"`
	URL        string         `json:"url" db:"url"`
	FilePath   string         `json:"file_path" db:"file_path"`
	IsEvidence bool           `json:"is_evidence" db:"is_evidence"`
	Metadata   map[string]any `json:"metadata,omitempty" db:"metadata"`
	CapturedAt time.Time      `json:"captured_at" db:"captured_at"`
}

// SearchLog records one scraper fetch for a search term
type SearchLog struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	Platform     string     `json:"platform" db:"platform"`
	SearchTerm   string     `json:"search_term" db:"search_term"`
	ResultsCount int        `json:"results_count" db:"results_count"`
	Status       string     `json:"status" db:"status"`
	Error        string     `json:"error,omitempty" db:"error"`
	StartedAt    time.Time  `json:"started_at" db:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty" db:"finished_at"`
}

// ProfileFilter narrows profile listings
type ProfileFilter struct {
	Platform string
	MinRisk  float64
	Limit    int
	Offset   int
}
