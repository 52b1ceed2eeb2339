package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ashureev/career-agent/internal/domain"
	"github.com/ashureev/career-agent/internal/identity"
)

// SessionHandler handles interview session endpoints.
type SessionHandler struct {
	*Handler
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(base *Handler) *SessionHandler {
	return &SessionHandler{Handler: base}
}

// RegisterRoutes registers session routes.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/v1/interview/session", h.Create)
	r.Get("/api/v1/interview/session/{sessionID}/feedback", h.GetFeedback)
}

type createSessionRequest struct {
	ATSAnalysisID string `json:"ats_analysis_id"`
	UserID        string `json:"user_id"`
}

// Create starts an interview session bound to an existing analysis.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.ATSAnalysisID = strings.TrimSpace(req.ATSAnalysisID)
	if req.ATSAnalysisID == "" {
		Error(w, http.StatusBadRequest, "ats_analysis_id is required")
		return
	}
	userID := identity.UserIDFromContext(r.Context())
	if strings.TrimSpace(req.UserID) != "" {
		userID = identity.SanitizeUserID(req.UserID)
		if userID == "" {
			Error(w, http.StatusBadRequest, "invalid user_id")
			return
		}
	}

	ctx := r.Context()
	analysis, err := h.repo.GetAnalysis(ctx, req.ATSAnalysisID)
	if err != nil {
		slog.Error("Failed to load analysis", "error", err, "analysis_id", req.ATSAnalysisID)
		Error(w, http.StatusInternalServerError, "failed to load analysis")
		return
	}
	if analysis == nil {
		Error(w, http.StatusNotFound, "analysis not found")
		return
	}

	session := &domain.Session{
		ID:         uuid.NewString(),
		UserID:     userID,
		AnalysisID: analysis.ID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.repo.CreateSession(ctx, session); err != nil {
		slog.Error("Failed to create session", "error", err, "analysis_id", analysis.ID)
		Error(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	slog.Info("Interview session created", "session_id", session.ID, "user_id", userID, "analysis_id", analysis.ID)
	JSON(w, http.StatusCreated, map[string]string{"session_id": session.ID})
}

// GetFeedback returns the stored feedback record of a session.
func (h *SessionHandler) GetFeedback(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	rec, err := h.repo.GetFeedback(r.Context(), sessionID)
	if err != nil {
		slog.Error("Failed to load feedback", "error", err, "session_id", sessionID)
		Error(w, http.StatusInternalServerError, "failed to load feedback")
		return
	}
	if rec == nil {
		Error(w, http.StatusNotFound, "feedback not found")
		return
	}
	JSON(w, http.StatusOK, rec)
}
