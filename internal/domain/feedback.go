package domain

import (
	"encoding/json"
	"time"
)

// Feedback is the evaluation produced at the end of an interview.
//
// The flat shape (score, strengths, weaknesses, suggestions) is canonical; the
// extended fields are an optional superset some model responses carry. When the
// feedback was parsed from a model response, Raw holds that object and is what
// gets serialized, so clients see the model's object unchanged.
type Feedback struct {
	OverallScore float64
	Strengths    []string
	Weaknesses   []string
	Suggestions  []string

	JDMatch         string
	Recommendation  string
	ImprovementTips []string

	Raw json.RawMessage
}

type feedbackJSON struct {
	OverallScore    float64  `json:"overall_score"`
	Strengths       []string `json:"strengths"`
	Weaknesses      []string `json:"weaknesses"`
	Suggestions     []string `json:"suggestions,omitempty"`
	JDMatch         string   `json:"jd_match,omitempty"`
	Recommendation  string   `json:"recommendation,omitempty"`
	ImprovementTips []string `json:"improvement_tips,omitempty"`
}

// MarshalJSON emits Raw when present, otherwise the typed fields.
func (f Feedback) MarshalJSON() ([]byte, error) {
	if len(f.Raw) > 0 {
		return f.Raw, nil
	}
	return json.Marshal(feedbackJSON{
		OverallScore:    f.OverallScore,
		Strengths:       nonNil(f.Strengths),
		Weaknesses:      nonNil(f.Weaknesses),
		Suggestions:     f.Suggestions,
		JDMatch:         f.JDMatch,
		Recommendation:  f.Recommendation,
		ImprovementTips: f.ImprovementTips,
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// FeedbackRecord is the persisted, immutable feedback for one session.
type FeedbackRecord struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id,omitempty"`
	Feedback  Feedback  `json:"feedback"`
	CreatedAt time.Time `json:"created_at"`
}

// DecodeFeedback parses a JSON object into Feedback, coercing loosely typed
// fields: scores may arrive as strings, lists as a single string. The input is
// kept verbatim in Raw.
func DecodeFeedback(data []byte) (Feedback, error) {
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return Feedback{}, err
	}
	if obj == nil {
		return Feedback{}, errNotAnObject
	}

	raw := make(json.RawMessage, len(data))
	copy(raw, data)

	return Feedback{
		OverallScore:    coerceFloat(obj["overall_score"]),
		Strengths:       coerceList(obj["strengths"]),
		Weaknesses:      coerceList(obj["weaknesses"]),
		Suggestions:     coerceList(obj["suggestions"]),
		JDMatch:         coerceString(obj["jd_match"]),
		Recommendation:  coerceString(obj["recommendation"]),
		ImprovementTips: coerceList(obj["improvement_tips"]),
		Raw:             raw,
	}, nil
}
