// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ashureev/career-agent/internal/domain"
)

// ErrFeedbackExists is returned by SaveFeedback when the session already has a
// feedback record. Records are immutable once written.
var ErrFeedbackExists = errors.New("feedback already recorded for session")

// Repository defines the interface for persisting interview and analysis data.
// Lookups return nil, nil when the row does not exist.
type Repository interface {
	// CreateSession inserts a new interview session.
	CreateSession(ctx context.Context, session *domain.Session) error

	// GetSession retrieves a session by ID.
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)

	// AppendMessage appends a transcript message and returns it with its sequence number.
	AppendMessage(ctx context.Context, sessionID string, role domain.Role, content string) (*domain.Message, error)

	// ListMessages returns the most recent limit messages in chronological order.
	// A limit <= 0 returns the whole transcript.
	ListMessages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error)

	// SaveAnalysis inserts an ATS analysis.
	SaveAnalysis(ctx context.Context, analysis *domain.Analysis) error

	// GetAnalysis retrieves an analysis by ID.
	GetAnalysis(ctx context.Context, analysisID string) (*domain.Analysis, error)

	// ListAnalysesByUser returns all analyses owned by a registered user.
	ListAnalysesByUser(ctx context.Context, userID string) ([]*domain.Analysis, error)

	// ListGuestAnalysesBefore returns guest analyses created before cutoff.
	ListGuestAnalysesBefore(ctx context.Context, cutoff time.Time) ([]*domain.Analysis, error)

	// DeleteAnalysis removes an analysis row.
	DeleteAnalysis(ctx context.Context, analysisID string) error

	// SaveFeedback stores the feedback record for a session. It returns
	// ErrFeedbackExists if one is already stored.
	SaveFeedback(ctx context.Context, record *domain.FeedbackRecord) error

	// GetFeedback retrieves the feedback record for a session.
	GetFeedback(ctx context.Context, sessionID string) (*domain.FeedbackRecord, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// reverseMessages flips a newest-first page into chronological order.
func reverseMessages(msgs []domain.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
