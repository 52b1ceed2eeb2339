// Package domain contains core domain types for the career agent.
package domain

import (
	"time"
)

// Session is one interview attempt bound to a prior resume analysis.
// It is immutable once created; messages are appended separately.
type Session struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id,omitempty"` // empty for guests
	AnalysisID string    `json:"analysis_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// IsGuest reports whether the session has no owning user.
func (s *Session) IsGuest() bool {
	return s.UserID == ""
}
