package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ashureev/career-agent/internal/domain"
	"github.com/ashureev/career-agent/internal/llm"
)

// CompletionSentinel is the phrase the model is told to say when it has no
// more questions. Turn limits are enforced by count, not by this phrase.
const CompletionSentinel = "The interview is now complete."

const interviewerInstruction = `You are a professional AI interviewer.

Rules:
- Ask ONE clear interview question at a time
- Base questions on the job description and resume
- Ask follow-up questions based on previous answers
- Do NOT explain your reasoning
- When the interview is finished, say EXACTLY:
  "` + CompletionSentinel + `"`

// Engine produces the next interviewer utterance. It has no side effects.
type Engine struct {
	completer llm.Completer
}

// NewEngine creates an Engine backed by completer.
func NewEngine(completer llm.Completer) *Engine {
	return &Engine{completer: completer}
}

// NextUtterance asks the model for the next question given the ordered
// history. The latest candidate message is passed separately from the rest.
func (e *Engine) NextUtterance(ctx context.Context, history []domain.Message, ic Context) (string, error) {
	prior, latest := splitLatestAnswer(history)

	var b strings.Builder
	b.WriteString("Resume:\n")
	b.WriteString(ic.ResumeText)
	b.WriteString("\n\nJob Description:\n")
	b.WriteString(ic.JobDescription)
	b.WriteString("\n\nConversation so far:\n")
	b.WriteString(domain.FormatTranscript(prior))
	b.WriteString("\n\nCandidate response:\n")
	b.WriteString(latest)

	text, err := e.completer.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			llm.System(interviewerInstruction),
			llm.User(b.String()),
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: next question: %w", ErrGeneration, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: next question: %w", ErrGeneration, errors.New("empty utterance"))
	}
	return text, nil
}

func splitLatestAnswer(history []domain.Message) ([]domain.Message, string) {
	if n := len(history); n > 0 && history[n-1].Role == domain.RoleCandidate {
		return history[:n-1], history[n-1].Content
	}
	return history, ""
}
