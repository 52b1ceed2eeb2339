package interview

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/ashureev/career-agent/internal/identity"
)

// WebSocketHandler upgrades interview connections and runs the orchestrator
// on the request goroutine.
type WebSocketHandler struct {
	orch          *Orchestrator
	registry      *Registry
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(orch *Orchestrator, registry *Registry, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		orch:          orch,
		registry:      registry,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	userID := identity.UserIDFromContext(r.Context())
	if sessionID == "" {
		http.Error(w, "session id is required", http.StatusBadRequest)
		return
	}
	slog.Info("Interview connection request", "session_id", sessionID, "user_id", userID, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "session_id", sessionID)
		return
	}
	// Long spoken answers can exceed the default 32KiB read limit.
	ws.SetReadLimit(1 << 20)
	defer func() { _ = ws.CloseNow() }()

	ch := newWSChannel(ws)
	h.registry.Register(sessionID, ch)
	defer h.registry.Unregister(sessionID, ch)

	err = h.orch.Run(r.Context(), ch, sessionID, userID)
	switch {
	case err == nil:
	case errors.Is(err, ErrContextNotFound):
		slog.Warn("Interview context not found", "session_id", sessionID, "error", err)
		_ = ws.Close(websocket.StatusPolicyViolation, "interview context not found")
	default:
		slog.Error("Interview failed", "session_id", sessionID, "user_id", userID, "error", err)
		_ = ws.Close(websocket.StatusInternalError, "interview failed")
	}
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}
