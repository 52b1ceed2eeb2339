package domain

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// Analysis is a persisted ATS scoring of one resume against one job description.
type Analysis struct {
	ID             string
	UserID         string // empty for guests
	Namespace      string // vector index namespace holding the resume chunks
	JobDescription string
	ResumePath     string // document store key
	Similarity     float64
	Report         json.RawMessage
	CreatedAt      time.Time
}

// Priority ranks an improvement by its ATS impact.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Improvement is one actionable resume change.
type Improvement struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
}

// ATSReport is the scoring result returned to clients and stored with the analysis.
type ATSReport struct {
	AnalysisID         string        `json:"analysis_id,omitempty"`
	ATSScore           int           `json:"ats_score"`
	OverallFit         string        `json:"overall_fit"`
	SemanticSimilarity float64       `json:"semantic_similarity"`
	MatchedSkills      []string      `json:"matched_skills"`
	MissingSkills      []string      `json:"missing_skills"`
	KeywordGaps        []string      `json:"keyword_gaps"`
	ExperienceMatch    string        `json:"experience_match"`
	Improvements       []Improvement `json:"improvements"`
	Summary            string        `json:"summary"`
	Recommendations    []string      `json:"recommendations"`
}

// NormalizePriority maps free-form priorities onto high, medium or low.
func NormalizePriority(p string) Priority {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "high", "critical", "urgent":
		return PriorityHigh
	case "low", "minor", "optional":
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// DecodeATSReport parses a model-produced ATS object. Field types are coerced
// and "matching_skills" is accepted for "matched_skills". Improvements may be
// objects or bare strings.
func DecodeATSReport(data []byte) (ATSReport, error) {
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return ATSReport{}, err
	}
	if obj == nil {
		return ATSReport{}, errNotAnObject
	}

	matched := coerceList(obj["matched_skills"])
	if matched == nil {
		matched = coerceList(obj["matching_skills"])
	}

	return ATSReport{
		ATSScore:           clampScore(coerceFloat(obj["ats_score"])),
		OverallFit:         coerceString(obj["overall_fit"]),
		SemanticSimilarity: coerceFloat(obj["semantic_similarity"]),
		MatchedSkills:      matched,
		MissingSkills:      coerceList(obj["missing_skills"]),
		KeywordGaps:        coerceList(obj["keyword_gaps"]),
		ExperienceMatch:    coerceString(obj["experience_match"]),
		Improvements:       coerceImprovements(obj["improvements"]),
		Summary:            coerceString(obj["summary"]),
		Recommendations:    coerceList(obj["recommendations"]),
	}, nil
}

func clampScore(f float64) int {
	n := int(math.Round(f))
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

func coerceImprovements(v any) []Improvement {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]Improvement, 0, len(items))
	for _, item := range items {
		switch val := item.(type) {
		case map[string]any:
			imp := Improvement{
				Title:       coerceString(val["title"]),
				Description: coerceString(val["description"]),
				Priority:    NormalizePriority(coerceString(val["priority"])),
			}
			if imp.Title == "" && imp.Description == "" {
				continue
			}
			out = append(out, imp)
		default:
			if s := coerceString(val); s != "" {
				out = append(out, Improvement{Title: s, Priority: PriorityMedium})
			}
		}
	}
	return out
}
