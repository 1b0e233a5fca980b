package models

import (
	"time"

	"github.com/google/uuid"
)

// CaseStatus represents where a case is in its enforcement lifecycle
type CaseStatus string

const (
	CaseStatusFiled                  CaseStatus = "filed"
	CaseStatusAuthorizationRequested CaseStatus = "authorization_requested"
	CaseStatusResponded              CaseStatus = "responded"
	CaseStatusReported               CaseStatus = "reported"
	CaseStatusClosed                 CaseStatus = "closed"
)

// CanTransition reports whether a case may move from s to next
func (s CaseStatus) CanTransition(next CaseStatus) bool {
	switch s {
	case CaseStatusFiled:
		return next == CaseStatusAuthorizationRequested || next == CaseStatusClosed
	case CaseStatusAuthorizationRequested:
		return next == CaseStatusResponded || next == CaseStatusReported
	case CaseStatusResponded, CaseStatusReported:
		return next == CaseStatusClosed
	default:
		return false
	}
}

// Case is a filed enforcement case for one suspicious profile
type Case struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	ProfileID      uuid.UUID  `json:"profile_id" db:"profile_id"`
	Platform       string     `json:"platform" db:"platform"`
	ProfileName    string     `json:"profile_name" db:"profile_name"`
	ProfileLink    string     `json:"profile_link,omitempty" db:"profile_link"`
	Email          string     `json:"email,omitempty" db:"email"`
	Location       string     `json:"location,omitempty" db:"location"`
	RiskScore      float64    `json:"risk_score" db:"risk_score"`
	Status         CaseStatus `json:"status" db:"status"`
	BoardItemID    string     `json:"board_item_id,omitempty" db:"board_item_id"`
	ScreenshotPath string     `json:"screenshot_path,omitempty" db:"screenshot_path"`
	AuthorityEmail string     `json:"authority_email,omitempty" db:"authority_email"`
	Notes          string     `json:"notes,omitempty" db:"notes"`

	AuthorizationRequestedAt *time.Time `json:"authorization_requested_at,omitempty" db:"authorization_requested_at"`
	Deadline                 *time.Time `json:"deadline,omitempty" db:"deadline"`
	RespondedAt              *time.Time `json:"responded_at,omitempty" db:"responded_at"`
	ReportedAt               *time.Time `json:"reported_at,omitempty" db:"reported_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Overdue is true when an authorization request went unanswered past its deadline
func (c *Case) Overdue(now time.Time) bool {
	return c.Status == CaseStatusAuthorizationRequested &&
		c.Deadline != nil && now.After(*c.Deadline) && c.RespondedAt == nil
}

// CaseFilter narrows case listings
type CaseFilter struct {
	Status CaseStatus
	Limit  int
	Offset int
}
