package interview

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashureev/career-agent/internal/documents"
	"github.com/ashureev/career-agent/internal/domain"
)

// Context is what the interviewer knows about the candidate and the role.
type Context struct {
	JobDescription string
	ResumeText     string
}

// SessionSource looks up sessions and analyses. Missing rows are nil, nil.
type SessionSource interface {
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	GetAnalysis(ctx context.Context, analysisID string) (*domain.Analysis, error)
}

// Resolver dereferences session -> analysis -> resume document -> text.
type Resolver struct {
	sessions SessionSource
	docs     documents.Store
}

// NewResolver creates a Resolver.
func NewResolver(sessions SessionSource, docs documents.Store) *Resolver {
	return &Resolver{sessions: sessions, docs: docs}
}

// Resolve returns the interview context for sessionID.
func (r *Resolver) Resolve(ctx context.Context, sessionID string) (Context, error) {
	session, err := r.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return Context{}, fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return Context{}, fmt.Errorf("%w: session %s", ErrContextNotFound, sessionID)
	}

	analysis, err := r.sessions.GetAnalysis(ctx, session.AnalysisID)
	if err != nil {
		return Context{}, fmt.Errorf("load analysis: %w", err)
	}
	if analysis == nil {
		return Context{}, fmt.Errorf("%w: analysis %s", ErrContextNotFound, session.AnalysisID)
	}

	data, err := r.docs.Get(ctx, analysis.ResumePath)
	if errors.Is(err, documents.ErrNotFound) {
		return Context{}, fmt.Errorf("%w: resume %s", ErrContextNotFound, analysis.ResumePath)
	}
	if err != nil {
		return Context{}, fmt.Errorf("load resume: %w", err)
	}

	text, err := documents.ExtractText(data)
	if err != nil {
		return Context{}, fmt.Errorf("%w: extract resume: %w", ErrContextNotFound, err)
	}

	return Context{JobDescription: analysis.JobDescription, ResumeText: text}, nil
}
