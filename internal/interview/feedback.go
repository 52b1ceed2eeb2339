package interview

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashureev/career-agent/internal/domain"
	"github.com/ashureev/career-agent/internal/llm"
)

const evaluatorInstruction = `You are an expert interviewer.
Return ONLY valid JSON:

{
 "overall_score": number,
 "strengths": [string],
 "weaknesses": [string],
 "suggestions": [string],
 "jd_match": string,
 "recommendation": string,
 "improvement_tips": [string]
}`

// FallbackFeedback is returned when the model's evaluation cannot be parsed.
func FallbackFeedback() domain.Feedback {
	return domain.Feedback{
		OverallScore: 0,
		Strengths:    []string{"Analysis completed"},
		Weaknesses:   []string{"Feedback formatting error"},
		Suggestions:  []string{"Try again or check logs"},
	}
}

// ParseFeedback extracts the JSON object from a model response. Code fences
// and surrounding prose are tolerated; anything unparseable yields FallbackFeedback.
func ParseFeedback(raw string) domain.Feedback {
	obj, ok := llm.ExtractJSONObject(raw)
	if !ok {
		return FallbackFeedback()
	}
	fb, err := domain.DecodeFeedback([]byte(obj))
	if err != nil {
		return FallbackFeedback()
	}
	return fb
}

// Synthesizer turns a finished transcript into feedback. It does not persist.
type Synthesizer struct {
	completer llm.Completer
}

// NewSynthesizer creates a Synthesizer backed by completer.
func NewSynthesizer(completer llm.Completer) *Synthesizer {
	return &Synthesizer{completer: completer}
}

// Evaluate makes one generation call. Only the call itself can fail;
// malformed output is absorbed by ParseFeedback.
func (s *Synthesizer) Evaluate(ctx context.Context, jobDescription, resumeText, transcript string) (domain.Feedback, error) {
	var b strings.Builder
	b.WriteString("JD:\n")
	b.WriteString(jobDescription)
	b.WriteString("\n\nResume:\n")
	b.WriteString(resumeText)
	b.WriteString("\n\nTranscript:\n")
	b.WriteString(transcript)

	raw, err := s.completer.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			llm.System(evaluatorInstruction),
			llm.User(b.String()),
		},
		Temperature: llm.Temperature(0),
		JSON:        true,
	})
	if err != nil {
		return domain.Feedback{}, fmt.Errorf("%w: feedback: %w", ErrGeneration, err)
	}
	return ParseFeedback(raw), nil
}
