package models

import (
	"time"

	"github.com/google/uuid"
)

// RawProfile is one scraped profile as delivered by a scraper. Every field is
// optional; missing text is analyzed as empty text.
type RawProfile struct {
	Platform    string `json:"platform,omitempty"`
	ProfileName string `json:"profile_name,omitempty"`
	ProfileLink string `json:"profile_link,omitempty"`
	Description string `json:"description,omitempty"`
	PostText    string `json:"post_text,omitempty"`
	PostLink    string `json:"post_link,omitempty"`
	Email       string `json:"email,omitempty"`
	Location    string `json:"location,omitempty"`

	// Set by the detection coordinator
	Analysis *RiskAssessment `json:"analysis,omitempty"`
}

// HasPost reports whether the record carries an associated post
func (p RawProfile) HasPost() bool {
	return p.PostText != ""
}

// ExtractionResult holds the features pulled out of a single text
type ExtractionResult struct {
	ContainsTriggerKeyword bool      `json:"contains_trigger_keyword"`
	Prices                 []float64 `json:"prices"`
	Emails                 []string  `json:"emails"`
	Phones                 []string  `json:"phones"`
	Locations              []string  `json:"locations"`
}

// HasContact is true when an e-mail address or phone number was found
func (e ExtractionResult) HasContact() bool {
	return len(e.Emails) > 0 || len(e.Phones) > 0
}

// RiskAssessment is the scored result for one profile or post
type RiskAssessment struct {
	RiskScore       float64          `json:"risk_score"`
	Extraction      ExtractionResult `json:"extraction"`
	CommercialScore float64          `json:"commercial_score"`
	AnalyzedAt      time.Time        `json:"analysis_timestamp"`
}

// PostAssessment extends a RiskAssessment with post-level summaries
type PostAssessment struct {
	RiskAssessment
	ContainsHyaluronPen bool   `json:"contains_hyaluron_pen"`
	ContainsPrice       bool   `json:"contains_price"`
	PriceMentioned      string `json:"price_mentioned,omitempty"`
}

// DetectionEventType is the kind of event published to the message bus
type DetectionEventType string

const (
	EventSuspiciousProfile DetectionEventType = "suspicious_profile"
	EventCaseFiled         DetectionEventType = "case_filed"
	EventCaseEscalated     DetectionEventType = "case_escalated"
)

// DetectionEvent is published whenever the pipeline acts on a profile
type DetectionEvent struct {
	ID          string             `json:"id"`
	Type        DetectionEventType `json:"type"`
	Platform    string             `json:"platform"`
	ProfileName string             `json:"profile_name"`
	ProfileLink string             `json:"profile_link,omitempty"`
	RiskScore   float64            `json:"risk_score"`
	CaseID      string             `json:"case_id,omitempty"`
	Timestamp   time.Time          `json:"timestamp"`
}

// SuspiciousProfile is a raw profile that met the suspicion threshold, with
// the handles produced while forwarding it to the collaborators
type SuspiciousProfile struct {
	RawProfile
	ProfileID    *uuid.UUID      `json:"profile_id,omitempty"`
	PostID       *uuid.UUID      `json:"post_id,omitempty"`
	PostAnalysis *PostAssessment `json:"post_analysis,omitempty"`
	Screenshots  []*Screenshot   `json:"screenshots,omitempty"`
}

// PlatformBatch is the scan output of one platform, in scan order
type PlatformBatch struct {
	Platform string       `json:"platform" validate:"required"`
	Profiles []RawProfile `json:"profiles" validate:"dive"`
}
