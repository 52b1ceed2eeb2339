package interview

import (
	"log/slog"
	"sync"
)

// Registry tracks the live channel of each interview session. A second
// connection for the same session replaces and closes the first.
type Registry struct {
	mu     sync.Mutex
	active map[string]Channel
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{active: make(map[string]Channel)}
}

// Active returns the channel currently bound to sessionID, or nil.
func (r *Registry) Active(sessionID string) Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active[sessionID]
}

// Register binds ch to sessionID, closing any previous channel. The close
// handshake runs outside the lock.
func (r *Registry) Register(sessionID string, ch Channel) {
	r.mu.Lock()
	existing, ok := r.active[sessionID]
	r.active[sessionID] = ch
	r.mu.Unlock()

	if ok && existing != ch {
		_ = existing.Close("session replaced")
		slog.Info("Interview connection replaced", "session_id", sessionID)
	}
}

// Unregister removes ch if it is still the session's live channel.
func (r *Registry) Unregister(sessionID string, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.active[sessionID]; ok && current == ch {
		delete(r.active, sessionID)
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// CloseAll closes every live channel. Used on shutdown.
func (r *Registry) CloseAll(reason string) {
	r.mu.Lock()
	live := r.active
	r.active = make(map[string]Channel)
	r.mu.Unlock()

	for sid, ch := range live {
		_ = ch.Close(reason)
		slog.Info("Interview connection closed", "session_id", sid, "reason", reason)
	}
}
