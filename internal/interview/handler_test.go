package interview

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/career-agent/internal/identity"
)

func newTestServer(t *testing.T, h *harness) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Use(identity.Middleware)
	r.Get("/api/v1/interview/session/{sessionID}", NewWebSocketHandler(h.orchestrator(), NewRegistry(), "*", false).ServeHTTP)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func TestWebSocketHandlerFullInterview(t *testing.T) {
	h := newHarness()
	srv := newTestServer(t, h)
	conn := dial(t, srv, "/api/v1/interview/session/sess-1?user_id=user-7")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var states []string
	var ended map[string]any
	answered := 0
	for ended == nil {
		typ, data, err := conn.Read(ctx)
		require.NoError(t, err)
		if typ == websocket.MessageBinary {
			states = append(states, "AUDIO")
			continue
		}
		var msg map[string]any
		require.NoError(t, json.Unmarshal(data, &msg))
		state, _ := msg["state"].(string)
		states = append(states, state)

		switch state {
		case "LISTENING":
			answered++
			payload := fmt.Sprintf(`{"type":"user_answer","text":"answer %d"}`, answered)
			require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(payload)))
		case "ENDED":
			ended = msg
		}
	}

	assert.Equal(t, fullInterviewFrames(), states)
	feedback, ok := ended["feedback"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 7, feedback["overall_score"], 0.001)

	_, _, err := conn.Read(ctx)
	assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))

	rec, err := h.store.GetFeedback(context.Background(), "sess-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "user-7", rec.UserID)
}

func TestWebSocketHandlerContextNotFound(t *testing.T) {
	h := newHarness()
	h.resolver.err = ErrContextNotFound
	srv := newTestServer(t, h)
	conn := dial(t, srv, "/api/v1/interview/session/missing")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, _, err := conn.Read(ctx)
	assert.Equal(t, websocket.StatusPolicyViolation, websocket.CloseStatus(err))
	assert.Empty(t, h.store.all())
}

func TestWebSocketHandlerRejectsOrigin(t *testing.T) {
	h := newHarness()
	handler := NewWebSocketHandler(h.orchestrator(), NewRegistry(), "https://app.example.com", false)

	r := chi.NewRouter()
	r.Get("/ws/{sessionID}", handler.ServeHTTP)
	req := httptest.NewRequest("GET", "/ws/sess-1", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, 403, rec.Code)
	assert.Zero(t, h.resolver.calls)
}
