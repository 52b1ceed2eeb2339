package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/career-agent/internal/ats"
	"github.com/ashureev/career-agent/internal/domain"
	"github.com/ashureev/career-agent/internal/identity"
)

// Analyzer scores an uploaded resume.
type Analyzer interface {
	Analyze(ctx context.Context, in ats.Input) (*domain.ATSReport, error)
}

// ResumeHandler handles resume upload endpoints.
type ResumeHandler struct {
	analyzer  Analyzer
	maxUpload int64
}

// NewResumeHandler creates a resume handler. maxUpload bounds the request body.
func NewResumeHandler(analyzer Analyzer, maxUpload int64) *ResumeHandler {
	return &ResumeHandler{analyzer: analyzer, maxUpload: maxUpload}
}

// RegisterRoutes registers resume routes.
func (h *ResumeHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/v1/resume/ats-check", h.ATSCheck)
}

// ATSCheck scores the multipart "resume" file against the "job_description" field.
func (h *ResumeHandler) ATSCheck(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("resume")
	if err != nil {
		Error(w, http.StatusBadRequest, "resume file is required")
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		Error(w, http.StatusBadRequest, "failed to read resume")
		return
	}

	userID := identity.UserIDFromContext(r.Context())
	report, err := h.analyzer.Analyze(r.Context(), ats.Input{
		UserID:         userID,
		Filename:       header.Filename,
		Document:       data,
		JobDescription: r.FormValue("job_description"),
	})
	switch {
	case err == nil:
		JSON(w, http.StatusOK, report)
	case errors.Is(err, ats.ErrInvalidInput):
		Error(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("ATS analysis failed", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "ats analysis failed")
	}
}
