package streaming

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"hyaluron-watch/internal/domain/models"
)

// SubjectRoot prefixes every detection subject
const SubjectRoot = "detections"

// Subject returns the NATS subject for an event:
// detections.<event_type>.<platform>
func Subject(event *models.DetectionEvent) string {
	platform := subjectToken(event.Platform)
	if platform == "" {
		platform = "unknown"
	}
	return fmt.Sprintf("%s.%s.%s", SubjectRoot, event.Type, platform)
}

// subjectToken lower-cases a value and strips characters NATS treats as
// separators or wildcards
func subjectToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n':
			return '_'
		}
		return r
	}, strings.ToLower(strings.TrimSpace(s)))
}

// NewDetectionEvent builds an event for a scored profile
func NewDetectionEvent(eventType models.DetectionEventType, platform, profileName, profileLink string, riskScore float64) *models.DetectionEvent {
	return &models.DetectionEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Platform:    platform,
		ProfileName: profileName,
		ProfileLink: profileLink,
		RiskScore:   riskScore,
		Timestamp:   time.Now(),
	}
}

// NewCaseEvent builds an event for a case transition
func NewCaseEvent(eventType models.DetectionEventType, c *models.Case) *models.DetectionEvent {
	event := NewDetectionEvent(eventType, c.Platform, c.ProfileName, c.ProfileLink, c.RiskScore)
	event.CaseID = c.ID.String()
	return event
}

// Subscription represents a client's subscription preferences
type Subscription struct {
	// Filter by event types (empty = all)
	Types []models.DetectionEventType `json:"types,omitempty"`

	// Filter by platforms, case-insensitive (empty = all)
	Platforms []string `json:"platforms,omitempty"`

	// Drop events below this score
	MinRiskScore float64 `json:"min_risk_score,omitempty"`
}

// Matches checks if an event matches the subscription filters
func (s *Subscription) Matches(event *models.DetectionEvent) bool {
	if s == nil {
		return true
	}

	if len(s.Types) > 0 {
		found := false
		for _, t := range s.Types {
			if t == event.Type {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(s.Platforms) > 0 {
		found := false
		for _, p := range s.Platforms {
			if strings.EqualFold(p, event.Platform) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	return event.RiskScore >= s.MinRiskScore
}
