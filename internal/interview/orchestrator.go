package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/career-agent/internal/convlog"
	"github.com/ashureev/career-agent/internal/domain"
	"github.com/ashureev/career-agent/internal/store"
)

const (
	// OpeningQuestion is always the first interviewer utterance.
	OpeningQuestion = "Hello! Let's start the interview. Can you tell me about yourself?"

	// WrapUpMessage is spoken after the last answer. It does not count as a question.
	WrapUpMessage = "Thank you for completing the interview! We appreciate your time."

	// DefaultMaxQuestions is the question budget per connection, opening included.
	DefaultMaxQuestions = 4
)

// Transcript persists and reads back interview messages.
type Transcript interface {
	AppendMessage(ctx context.Context, sessionID string, role domain.Role, content string) (*domain.Message, error)
	ListMessages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error)
}

// FeedbackStore persists the one feedback record of a session.
type FeedbackStore interface {
	SaveFeedback(ctx context.Context, record *domain.FeedbackRecord) error
	GetFeedback(ctx context.Context, sessionID string) (*domain.FeedbackRecord, error)
}

// ContextResolver loads the job description and resume for a session.
type ContextResolver interface {
	Resolve(ctx context.Context, sessionID string) (Context, error)
}

// TurnEngine produces the next interviewer question.
type TurnEngine interface {
	NextUtterance(ctx context.Context, history []domain.Message, ic Context) (string, error)
}

// Narrator synthesizes speech for an utterance.
type Narrator interface {
	Narrate(ctx context.Context, text string) ([]byte, error)
}

// FeedbackEvaluator scores a finished transcript.
type FeedbackEvaluator interface {
	Evaluate(ctx context.Context, jobDescription, resumeText, transcript string) (domain.Feedback, error)
}

// Config bounds an interview.
type Config struct {
	// MaxQuestions counts interviewer questions including the opening one.
	MaxQuestions int
	// HistoryLimit is the number of recent messages given to the turn engine.
	// Zero or less passes the whole transcript.
	HistoryLimit int
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Transcript Transcript
	Feedback   FeedbackStore
	Resolver   ContextResolver
	Engine     TurnEngine
	Narrator   Narrator
	Evaluator  FeedbackEvaluator
	ConvLog    convlog.Logger
	Logger     *slog.Logger
}

// Orchestrator drives one interview per connection. It holds no
// per-connection state and is safe for concurrent use.
type Orchestrator struct {
	deps Deps
	cfg  Config
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(deps Deps, cfg Config) *Orchestrator {
	if cfg.MaxQuestions < 1 {
		cfg.MaxQuestions = DefaultMaxQuestions
	}
	if deps.ConvLog == nil {
		deps.ConvLog = convlog.Nop()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Orchestrator{deps: deps, cfg: cfg}
}

// Run conducts the interview for sessionID over ch until the budget is spent
// or the peer goes away. A peer disconnect is a normal end and returns nil.
// ErrContextNotFound is returned before any frame is sent.
func (o *Orchestrator) Run(ctx context.Context, ch Channel, sessionID, userID string) error {
	logger := o.deps.Logger.With("session_id", sessionID, "user_id", userID)

	ic, err := o.deps.Resolver.Resolve(ctx, sessionID)
	if err != nil {
		if isDisconnect(ctx, err) {
			return nil
		}
		return err
	}

	t := &turn{
		o:         o,
		ch:        ch,
		sessionID: sessionID,
		userID:    userID,
		ic:        ic,
		budget:    budget{max: o.cfg.MaxQuestions},
		logger:    logger,
	}

	err = t.run(ctx)
	if err != nil && isDisconnect(ctx, err) {
		logger.Info("Interview ended by client", "questions_asked", t.budget.asked)
		return nil
	}
	return err
}

func isDisconnect(ctx context.Context, err error) bool {
	return errors.Is(err, ErrPeerDisconnected) || ctx.Err() != nil
}

// budget counts interviewer questions asked on this connection.
type budget struct {
	max   int
	asked int
}

func (b *budget) spend()          { b.asked++ }
func (b *budget) exhausted() bool { return b.asked >= b.max }

// turn is the state of one connection.
type turn struct {
	o         *Orchestrator
	ch        Channel
	sessionID string
	userID    string
	ic        Context
	budget    budget
	logger    *slog.Logger
}

func (t *turn) run(ctx context.Context) error {
	if err := t.speak(ctx, OpeningQuestion); err != nil {
		return err
	}
	t.budget.spend()
	if err := t.send(ctx, ListeningFrame{}); err != nil {
		return err
	}

	for {
		answer, err := t.awaitAnswer(ctx)
		if err != nil {
			return err
		}
		if _, err := t.o.deps.Transcript.AppendMessage(ctx, t.sessionID, domain.RoleCandidate, answer); err != nil {
			return fmt.Errorf("persist answer: %w", err)
		}
		if err := t.send(ctx, ProcessingFrame{}); err != nil {
			return err
		}

		if t.budget.exhausted() {
			return t.finish(ctx)
		}

		history, err := t.o.deps.Transcript.ListMessages(ctx, t.sessionID, t.o.cfg.HistoryLimit)
		if err != nil {
			return fmt.Errorf("load history: %w", err)
		}
		question, err := t.o.deps.Engine.NextUtterance(ctx, history, t.ic)
		if err != nil {
			return err
		}
		if err := t.speak(ctx, question); err != nil {
			return err
		}
		t.budget.spend()
		if err := t.send(ctx, ListeningFrame{}); err != nil {
			return err
		}
	}
}

// awaitAnswer blocks until the client sends an answer. Other frames are skipped.
func (t *turn) awaitAnswer(ctx context.Context) (string, error) {
	for {
		ev, err := t.ch.Receive(ctx)
		if err != nil {
			return "", err
		}
		switch e := ev.(type) {
		case AnswerEvent:
			t.o.deps.ConvLog.Log(t.event(convlog.Inbound, eventUserAnswer, e.Text, 0))
			return e.Text, nil
		case UnknownEvent:
			t.logger.Debug("Ignoring client frame", "type", e.Type)
		}
	}
}

// speak persists an interviewer utterance, announces it and streams its audio.
func (t *turn) speak(ctx context.Context, text string) error {
	if _, err := t.o.deps.Transcript.AppendMessage(ctx, t.sessionID, domain.RoleInterviewer, text); err != nil {
		return fmt.Errorf("persist question: %w", err)
	}
	if err := t.send(ctx, SpeakingFrame{Text: text}); err != nil {
		return err
	}
	audio, err := t.o.deps.Narrator.Narrate(ctx, text)
	if err != nil {
		return fmt.Errorf("%w: narrate: %w", ErrGeneration, err)
	}
	return t.send(ctx, AudioFrame{Audio: audio})
}

func (t *turn) finish(ctx context.Context) error {
	if err := t.speak(ctx, WrapUpMessage); err != nil {
		return err
	}

	all, err := t.o.deps.Transcript.ListMessages(ctx, t.sessionID, 0)
	if err != nil {
		return fmt.Errorf("load transcript: %w", err)
	}
	fb, err := t.o.deps.Evaluator.Evaluate(ctx, t.ic.JobDescription, t.ic.ResumeText, domain.FormatTranscript(all))
	if err != nil {
		return err
	}

	fb, err = t.saveFeedback(ctx, fb)
	if err != nil {
		return err
	}
	if err := t.send(ctx, EndedFrame{Feedback: fb}); err != nil {
		return err
	}

	t.logger.Info("Interview completed",
		"questions_asked", t.budget.asked,
		"answers", domain.CountByRole(all, domain.RoleCandidate),
		"overall_score", fb.OverallScore,
	)
	if err := t.ch.Close("interview complete"); err != nil {
		t.logger.Debug("Failed to close channel", "error", err)
	}
	return nil
}

// saveFeedback stores fb. If the session already has feedback, the stored
// record wins and is returned instead.
func (t *turn) saveFeedback(ctx context.Context, fb domain.Feedback) (domain.Feedback, error) {
	record := &domain.FeedbackRecord{
		ID:        uuid.NewString(),
		SessionID: t.sessionID,
		UserID:    t.userID,
		Feedback:  fb,
		CreatedAt: time.Now().UTC(),
	}
	err := t.o.deps.Feedback.SaveFeedback(ctx, record)
	if err == nil {
		return fb, nil
	}
	if !errors.Is(err, store.ErrFeedbackExists) {
		return domain.Feedback{}, fmt.Errorf("save feedback: %w", err)
	}

	existing, err := t.o.deps.Feedback.GetFeedback(ctx, t.sessionID)
	if err != nil {
		return domain.Feedback{}, fmt.Errorf("load existing feedback: %w", err)
	}
	if existing == nil {
		return domain.Feedback{}, fmt.Errorf("load existing feedback: %w", store.ErrFeedbackExists)
	}
	t.logger.Warn("Feedback already recorded, returning stored record", "feedback_id", existing.ID)
	return existing.Feedback, nil
}

func (t *turn) send(ctx context.Context, f Frame) error {
	if err := t.ch.Send(ctx, f); err != nil {
		return err
	}
	switch v := f.(type) {
	case AudioFrame:
		t.o.deps.ConvLog.Log(t.event(convlog.Outbound, frameName(f), "", len(v.Audio)))
	case SpeakingFrame:
		t.o.deps.ConvLog.Log(t.event(convlog.Outbound, frameName(f), v.Text, 0))
	default:
		t.o.deps.ConvLog.Log(t.event(convlog.Outbound, frameName(f), "", 0))
	}
	return nil
}

func (t *turn) event(direction, eventType, content string, n int) convlog.Event {
	return convlog.Event{
		Timestamp: time.Now().UTC(),
		SessionID: t.sessionID,
		UserID:    t.userID,
		Direction: direction,
		EventType: eventType,
		Content:   content,
		Bytes:     n,
	}
}
