// Package ats scores resumes against job descriptions.
package ats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/career-agent/internal/documents"
	"github.com/ashureev/career-agent/internal/domain"
	"github.com/ashureev/career-agent/internal/llm"
	"github.com/ashureev/career-agent/internal/vectorindex"
)

var (
	// ErrInvalidInput marks failures caused by the upload itself.
	ErrInvalidInput = errors.New("invalid ats input")

	ErrEmptyResume         = fmt.Errorf("%w: resume has no extractable text", ErrInvalidInput)
	ErrEmptyJobDescription = fmt.Errorf("%w: job description is empty", ErrInvalidInput)

	// ErrScoring wraps model failures and unusable model output.
	ErrScoring = errors.New("ats scoring failed")
)

const (
	similarityTopK = 5
	cleanupTimeout = 30 * time.Second
)

// AnalysisStore is the persistence the pipeline needs.
type AnalysisStore interface {
	SaveAnalysis(ctx context.Context, analysis *domain.Analysis) error
	ListAnalysesByUser(ctx context.Context, userID string) ([]*domain.Analysis, error)
	ListGuestAnalysesBefore(ctx context.Context, cutoff time.Time) ([]*domain.Analysis, error)
	DeleteAnalysis(ctx context.Context, analysisID string) error
}

// Input is one resume upload.
type Input struct {
	UserID         string // empty for guests
	Filename       string
	Document       []byte
	JobDescription string
}

// Pipeline extracts, embeds and scores a resume, then persists the analysis.
type Pipeline struct {
	store     AnalysisStore
	docs      documents.Store
	index     vectorindex.Index // nil falls back to keyword overlap
	completer llm.Completer
	logger    *slog.Logger
	now       func() time.Time
}

// NewPipeline creates a Pipeline. index may be nil.
func NewPipeline(store AnalysisStore, docs documents.Store, index vectorindex.Index, completer llm.Completer, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:     store,
		docs:      docs,
		index:     index,
		completer: completer,
		logger:    logger,
		now:       time.Now,
	}
}

// Analyze scores in.Document against in.JobDescription and stores the result.
func (p *Pipeline) Analyze(ctx context.Context, in Input) (*domain.ATSReport, error) {
	resumeText, err := documents.ExtractText(in.Document)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if resumeText == "" {
		return nil, ErrEmptyResume
	}

	jd := NormalizeJobDescription(in.JobDescription)
	if jd == "" {
		return nil, ErrEmptyJobDescription
	}

	namespace := "guest-" + uuid.NewString()
	if in.UserID != "" {
		namespace = "user-" + in.UserID + "-" + uuid.NewString()
	}

	logger := p.logger.With("user_id", in.UserID, "namespace", namespace)

	kw := scoreKeywords(resumeText, jd)
	similarity := p.similarity(ctx, logger, namespace, resumeText, jd, kw)

	report, err := p.score(ctx, resumeText, jd, similarity, kw)
	if err != nil {
		p.dropNamespace(ctx, logger, namespace)
		return nil, err
	}

	owner := in.UserID
	if owner == "" {
		owner = namespace
	}
	key, err := documents.NewKey(owner, in.Filename)
	if err != nil {
		p.dropNamespace(ctx, logger, namespace)
		return nil, fmt.Errorf("build document key: %w", err)
	}
	if err := p.docs.Put(ctx, key, in.Document, documents.ContentType(in.Document)); err != nil {
		p.dropNamespace(ctx, logger, namespace)
		return nil, fmt.Errorf("store resume: %w", err)
	}

	analysisID := uuid.NewString()
	report.AnalysisID = analysisID
	payload, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}

	analysis := &domain.Analysis{
		ID:             analysisID,
		UserID:         in.UserID,
		Namespace:      namespace,
		JobDescription: jd,
		ResumePath:     key,
		Similarity:     similarity,
		Report:         payload,
		CreatedAt:      p.now(),
	}
	if err := p.store.SaveAnalysis(ctx, analysis); err != nil {
		p.bestEffortCleanup(ctx, logger, "delete orphaned resume", func(ctx context.Context) error {
			return p.docs.Delete(ctx, key)
		})
		p.dropNamespace(ctx, logger, namespace)
		return nil, fmt.Errorf("save analysis: %w", err)
	}

	if in.UserID == "" {
		p.dropNamespace(ctx, logger, namespace)
	} else {
		p.replaceUserAnalyses(ctx, in.UserID, analysisID)
	}

	logger.Info("ATS analysis completed",
		"analysis_id", analysisID,
		"ats_score", report.ATSScore,
		"similarity", similarity)
	return report, nil
}

// similarity embeds the resume and returns the mean score of the top matches
// for the job description, rounded to two decimals.
func (p *Pipeline) similarity(ctx context.Context, logger *slog.Logger, namespace, resumeText, jd string, kw keywordOverlap) float64 {
	if p.index == nil {
		return kw.Score
	}

	pieces := ChunkText(resumeText, defaultChunkSize, defaultChunkOverlap)
	chunks := make([]vectorindex.Chunk, len(pieces))
	for i, text := range pieces {
		chunks[i] = vectorindex.Chunk{
			ID:       namespace + "-" + strconv.Itoa(i),
			Text:     text,
			Metadata: map[string]string{"namespace": namespace, "chunk": strconv.Itoa(i)},
		}
	}

	if err := p.index.Upsert(ctx, namespace, chunks); err != nil {
		logger.Warn("vector upsert failed, using keyword overlap", "error", err)
		return kw.Score
	}
	matches, err := p.index.Query(ctx, namespace, jd, similarityTopK)
	if err != nil {
		logger.Warn("vector query failed, using keyword overlap", "error", err)
		return kw.Score
	}
	return meanScore(matches)
}

func meanScore(matches []vectorindex.Match) float64 {
	if len(matches) == 0 {
		return 0
	}
	var sum float64
	for _, m := range matches {
		sum += m.Score
	}
	return roundTo(sum/float64(len(matches)), 2)
}

func (p *Pipeline) score(ctx context.Context, resumeText, jd string, similarity float64, kw keywordOverlap) (*domain.ATSReport, error) {
	out, err := p.completer.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			llm.System(systemPrompt),
			llm.User(buildPrompt(resumeText, jd, similarity, kw)),
		},
		Temperature: llm.Temperature(0),
		JSON:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScoring, err)
	}

	obj, ok := llm.ExtractJSONObject(out)
	if !ok {
		return nil, fmt.Errorf("%w: model returned no JSON object", ErrScoring)
	}
	report, err := domain.DecodeATSReport([]byte(obj))
	if err != nil {
		return nil, fmt.Errorf("%w: decode report: %w", ErrScoring, err)
	}

	report.SemanticSimilarity = similarity
	if len(report.MatchedSkills) == 0 {
		report.MatchedSkills = kw.Matching
	}
	if len(report.MissingSkills) == 0 {
		report.MissingSkills = kw.Missing
	}
	if len(report.KeywordGaps) == 0 {
		report.KeywordGaps = kw.Missing
	}
	if report.OverallFit == "" {
		report.OverallFit = fitLabel(report.ATSScore)
	}
	fillEmptyLists(&report)
	return &report, nil
}

func fitLabel(score int) string {
	switch {
	case score >= 75:
		return "strong"
	case score >= 50:
		return "moderate"
	default:
		return "weak"
	}
}

func fillEmptyLists(r *domain.ATSReport) {
	if r.MatchedSkills == nil {
		r.MatchedSkills = []string{}
	}
	if r.MissingSkills == nil {
		r.MissingSkills = []string{}
	}
	if r.KeywordGaps == nil {
		r.KeywordGaps = []string{}
	}
	if r.Improvements == nil {
		r.Improvements = []domain.Improvement{}
	}
	if r.Recommendations == nil {
		r.Recommendations = []string{}
	}
}

// replaceUserAnalyses removes a registered user's analyses other than keep,
// together with their resumes and vectors. It runs only after the new
// analysis is saved.
func (p *Pipeline) replaceUserAnalyses(ctx context.Context, userID, keep string) {
	logger := p.logger.With("user_id", userID)
	previous, err := p.store.ListAnalysesByUser(ctx, userID)
	if err != nil {
		logger.Warn("failed to list previous analyses", "error", err)
		return
	}
	for _, a := range previous {
		if a.ID == keep {
			continue
		}
		p.removeAnalysis(ctx, logger, a)
		p.dropNamespace(ctx, logger, a.Namespace)
	}
}

func (p *Pipeline) removeAnalysis(ctx context.Context, logger *slog.Logger, a *domain.Analysis) {
	logger = logger.With("analysis_id", a.ID)
	p.bestEffortCleanup(ctx, logger, "delete resume", func(ctx context.Context) error {
		return p.docs.Delete(ctx, a.ResumePath)
	})
	p.bestEffortCleanup(ctx, logger, "delete analysis", func(ctx context.Context) error {
		return p.store.DeleteAnalysis(ctx, a.ID)
	})
}

func (p *Pipeline) dropNamespace(ctx context.Context, logger *slog.Logger, namespace string) {
	if p.index == nil {
		return
	}
	p.bestEffortCleanup(ctx, logger, "delete vector namespace", func(ctx context.Context) error {
		return p.index.DeleteNamespace(ctx, namespace)
	})
}

// bestEffortCleanup runs fn and logs failures instead of returning them.
// It survives cancellation of the request context.
func (p *Pipeline) bestEffortCleanup(ctx context.Context, logger *slog.Logger, what string, fn func(context.Context) error) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := fn(cctx); err != nil {
		logger.Warn("cleanup failed", "step", what, "error", err)
	}
}
