package interview

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ashureev/career-agent/internal/domain"
	"github.com/ashureev/career-agent/internal/llm"
	"github.com/ashureev/career-agent/internal/store"
)

// scriptChannel replays client events and records server frames. When the
// script runs out it reports a peer disconnect.
type scriptChannel struct {
	mu      sync.Mutex
	script  []Event
	frames  []Frame
	closed  bool
	reasons []string
}

func newScriptChannel(events ...Event) *scriptChannel {
	return &scriptChannel{script: events}
}

func answers(texts ...string) []Event {
	out := make([]Event, 0, len(texts))
	for _, t := range texts {
		out = append(out, AnswerEvent{Text: t})
	}
	return out
}

func (c *scriptChannel) Send(_ context.Context, f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("%w: send on closed channel", ErrPeerDisconnected)
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *scriptChannel) Receive(_ context.Context) (Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.script) == 0 {
		return nil, fmt.Errorf("%w: read: eof", ErrPeerDisconnected)
	}
	ev := c.script[0]
	c.script = c.script[1:]
	return ev, nil
}

func (c *scriptChannel) Close(reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.reasons = append(c.reasons, reason)
	return nil
}

func (c *scriptChannel) frameNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, len(c.frames))
	for i, f := range c.frames {
		names[i] = frameName(f)
	}
	return names
}

func (c *scriptChannel) lastFrame() Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.frames) == 0 {
		return nil
	}
	return c.frames[len(c.frames)-1]
}

// memStore is an in-memory transcript and feedback store.
type memStore struct {
	mu       sync.Mutex
	seq      int64
	messages []domain.Message
	feedback map[string]*domain.FeedbackRecord
	saves    int
}

func newMemStore() *memStore {
	return &memStore{feedback: make(map[string]*domain.FeedbackRecord)}
}

func (s *memStore) AppendMessage(_ context.Context, sessionID string, role domain.Role, content string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	m := domain.Message{Seq: s.seq, SessionID: sessionID, Role: role, Content: content, CreatedAt: time.Now()}
	s.messages = append(s.messages, m)
	return &m, nil
}

func (s *memStore) ListMessages(_ context.Context, sessionID string, limit int) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Message
	for _, m := range s.messages {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *memStore) SaveFeedback(_ context.Context, rec *domain.FeedbackRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if _, ok := s.feedback[rec.SessionID]; ok {
		return store.ErrFeedbackExists
	}
	cp := *rec
	s.feedback[rec.SessionID] = &cp
	return nil
}

func (s *memStore) GetFeedback(_ context.Context, sessionID string) (*domain.FeedbackRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feedback[sessionID], nil
}

func (s *memStore) all() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message(nil), s.messages...)
}

type fakeResolver struct {
	ic    Context
	err   error
	calls int
}

func (r *fakeResolver) Resolve(context.Context, string) (Context, error) {
	r.calls++
	return r.ic, r.err
}

type fakeEngine struct {
	calls     int
	histories [][]domain.Message
	err       error
	hook      func()
}

func (e *fakeEngine) NextUtterance(_ context.Context, history []domain.Message, _ Context) (string, error) {
	e.calls++
	e.histories = append(e.histories, history)
	if e.hook != nil {
		e.hook()
	}
	if e.err != nil {
		return "", e.err
	}
	return fmt.Sprintf("Question %d?", e.calls+1), nil
}

type fakeNarrator struct {
	err   error
	texts []string
}

func (n *fakeNarrator) Narrate(_ context.Context, text string) ([]byte, error) {
	n.texts = append(n.texts, text)
	if n.err != nil {
		return nil, n.err
	}
	return []byte("audio:" + text), nil
}

type fakeEvaluator struct {
	feedback    domain.Feedback
	err         error
	calls       int
	transcripts []string
}

func (e *fakeEvaluator) Evaluate(_ context.Context, _, _, transcript string) (domain.Feedback, error) {
	e.calls++
	e.transcripts = append(e.transcripts, transcript)
	return e.feedback, e.err
}

// scriptedCompleter returns canned responses in order and records requests.
type scriptedCompleter struct {
	responses []string
	err       error
	requests  []llm.Request
}

func (c *scriptedCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	c.requests = append(c.requests, req)
	if c.err != nil {
		return "", c.err
	}
	if len(c.responses) == 0 {
		return "", llm.ErrEmptyResponse
	}
	out := c.responses[0]
	c.responses = c.responses[1:]
	return out, nil
}
