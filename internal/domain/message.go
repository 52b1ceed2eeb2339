package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role identifies who authored a transcript message.
type Role string

const (
	RoleInterviewer Role = "interviewer"
	RoleCandidate   Role = "candidate"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleInterviewer || r == RoleCandidate
}

// Message is a single persisted transcript entry. Seq is assigned by the store
// and increases monotonically within a session.
type Message struct {
	Seq       int64     `json:"seq"`
	SessionID string    `json:"session_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// FormatTranscript renders messages as "role: content" lines in the given order.
func FormatTranscript(msgs []Message) string {
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", m.Role, m.Content)
	}
	return b.String()
}

// CountByRole returns how many messages were authored by role.
func CountByRole(msgs []Message, role Role) int {
	n := 0
	for _, m := range msgs {
		if m.Role == role {
			n++
		}
	}
	return n
}
