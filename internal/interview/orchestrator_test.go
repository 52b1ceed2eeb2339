package interview

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/career-agent/internal/domain"
)

type harness struct {
	store     *memStore
	resolver  *fakeResolver
	engine    *fakeEngine
	narrator  *fakeNarrator
	evaluator *fakeEvaluator
	cfg       Config
}

func newHarness() *harness {
	return &harness{
		store:     newMemStore(),
		resolver:  &fakeResolver{ic: Context{JobDescription: "Go developer", ResumeText: "Five years of Go"}},
		engine:    &fakeEngine{},
		narrator:  &fakeNarrator{},
		evaluator: &fakeEvaluator{feedback: domain.Feedback{OverallScore: 7, Strengths: []string{"Clear answers"}}},
		cfg:       Config{MaxQuestions: DefaultMaxQuestions},
	}
}

func (h *harness) orchestrator() *Orchestrator {
	return NewOrchestrator(Deps{
		Transcript: h.store,
		Feedback:   h.store,
		Resolver:   h.resolver,
		Engine:     h.engine,
		Narrator:   h.narrator,
		Evaluator:  h.evaluator,
	}, h.cfg)
}

func fullInterviewFrames() []string {
	want := []string{"SPEAKING", "AUDIO", "LISTENING"}
	for i := 0; i < 3; i++ {
		want = append(want, "PROCESSING", "SPEAKING", "AUDIO", "LISTENING")
	}
	return append(want, "PROCESSING", "SPEAKING", "AUDIO", "ENDED")
}

func TestRunCompletesInterview(t *testing.T) {
	h := newHarness()
	ch := newScriptChannel(answers("a1", "a2", "a3", "a4")...)

	err := h.orchestrator().Run(context.Background(), ch, "sess-1", "user-1")
	require.NoError(t, err)

	assert.Equal(t, fullInterviewFrames(), ch.frameNames())
	assert.True(t, ch.closed, "server should close the channel")

	msgs := h.store.all()
	assert.Equal(t, 5, domain.CountByRole(msgs, domain.RoleInterviewer))
	assert.Equal(t, 4, domain.CountByRole(msgs, domain.RoleCandidate))
	assert.Equal(t, OpeningQuestion, msgs[0].Content)
	assert.Equal(t, WrapUpMessage, msgs[len(msgs)-1].Content)

	// Questions strictly alternate with answers.
	for i, m := range msgs {
		want := domain.RoleInterviewer
		if i%2 == 1 {
			want = domain.RoleCandidate
		}
		assert.Equal(t, want, m.Role, "message %d", i)
	}

	assert.Equal(t, 1, h.resolver.calls)
	assert.Equal(t, 3, h.engine.calls)
	require.Equal(t, 1, h.evaluator.calls)
	assert.Equal(t, domain.FormatTranscript(msgs), h.evaluator.transcripts[0])

	rec, err := h.store.GetFeedback(context.Background(), "sess-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "user-1", rec.UserID)
	assert.InDelta(t, 7, rec.Feedback.OverallScore, 0.001)

	ended, ok := ch.lastFrame().(EndedFrame)
	require.True(t, ok)
	assert.InDelta(t, 7, ended.Feedback.OverallScore, 0.001)
}

func TestRunSpeakingFramesMatchPersistedText(t *testing.T) {
	h := newHarness()
	ch := newScriptChannel(answers("a1", "a2", "a3", "a4")...)
	require.NoError(t, h.orchestrator().Run(context.Background(), ch, "sess-1", ""))

	var spoken []string
	for _, f := range ch.frames {
		if s, ok := f.(SpeakingFrame); ok {
			spoken = append(spoken, s.Text)
		}
	}
	var persisted []string
	for _, m := range h.store.all() {
		if m.Role == domain.RoleInterviewer {
			persisted = append(persisted, m.Content)
		}
	}
	assert.Equal(t, persisted, spoken)
	assert.Equal(t, persisted, h.narrator.texts)

	for i, f := range ch.frames {
		if s, ok := f.(SpeakingFrame); ok {
			audio, ok := ch.frames[i+1].(AudioFrame)
			require.True(t, ok, "audio must follow SPEAKING")
			assert.Equal(t, "audio:"+s.Text, string(audio.Audio))
		}
	}
}

func TestRunDisconnectWhileListening(t *testing.T) {
	h := newHarness()
	ch := newScriptChannel(answers("a1", "a2")...)

	err := h.orchestrator().Run(context.Background(), ch, "sess-1", "")
	require.NoError(t, err)

	msgs := h.store.all()
	assert.Equal(t, 3, domain.CountByRole(msgs, domain.RoleInterviewer))
	assert.Equal(t, 2, domain.CountByRole(msgs, domain.RoleCandidate))
	assert.Equal(t, "LISTENING", ch.frameNames()[len(ch.frames)-1])
	assert.Zero(t, h.evaluator.calls)
	assert.Zero(t, h.store.saves)
	assert.False(t, ch.closed)
}

func TestRunIgnoresUnknownEvents(t *testing.T) {
	h := newHarness()
	ch := newScriptChannel(
		UnknownEvent{Type: "ping"},
		AnswerEvent{Text: "a1"},
		UnknownEvent{},
		AnswerEvent{Text: "a2"},
		AnswerEvent{Text: "a3"},
		UnknownEvent{Type: "binary"},
		AnswerEvent{Text: "a4"},
	)

	require.NoError(t, h.orchestrator().Run(context.Background(), ch, "sess-1", ""))
	assert.Equal(t, fullInterviewFrames(), ch.frameNames())
	assert.Equal(t, 4, domain.CountByRole(h.store.all(), domain.RoleCandidate))
}

func TestRunContextNotFound(t *testing.T) {
	h := newHarness()
	h.resolver.err = fmt.Errorf("%w: session sess-1", ErrContextNotFound)
	ch := newScriptChannel(answers("a1")...)

	err := h.orchestrator().Run(context.Background(), ch, "sess-1", "")
	require.ErrorIs(t, err, ErrContextNotFound)
	assert.Empty(t, ch.frames)
	assert.Empty(t, h.store.all())
}

func TestRunGenerationFailureIsFatal(t *testing.T) {
	h := newHarness()
	h.engine.err = fmt.Errorf("%w: boom", ErrGeneration)
	ch := newScriptChannel(answers("a1", "a2", "a3", "a4")...)

	err := h.orchestrator().Run(context.Background(), ch, "sess-1", "")
	require.ErrorIs(t, err, ErrGeneration)
	assert.Equal(t, []string{"SPEAKING", "AUDIO", "LISTENING", "PROCESSING"}, ch.frameNames())
	assert.Zero(t, h.store.saves)
}

func TestRunNarrationFailureIsFatal(t *testing.T) {
	h := newHarness()
	h.narrator.err = errors.New("tts down")
	ch := newScriptChannel(answers("a1")...)

	err := h.orchestrator().Run(context.Background(), ch, "sess-1", "")
	require.ErrorIs(t, err, ErrGeneration)
	assert.Equal(t, []string{"SPEAKING"}, ch.frameNames())
}

func TestRunCancelledDuringGenerationIsNotAnError(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.engine.hook = cancel
	h.engine.err = fmt.Errorf("%w: %w", ErrGeneration, context.Canceled)
	ch := newScriptChannel(answers("a1", "a2")...)

	err := h.orchestrator().Run(ctx, ch, "sess-1", "")
	require.NoError(t, err)
	assert.Zero(t, h.store.saves)
}

func TestRunKeepsExistingFeedback(t *testing.T) {
	h := newHarness()
	stored := domain.Feedback{OverallScore: 9, Strengths: []string{"first"}}
	require.NoError(t, h.store.SaveFeedback(context.Background(), &domain.FeedbackRecord{
		ID: "fb-1", SessionID: "sess-1", Feedback: stored,
	}))
	ch := newScriptChannel(answers("a1", "a2", "a3", "a4")...)

	require.NoError(t, h.orchestrator().Run(context.Background(), ch, "sess-1", ""))

	ended, ok := ch.lastFrame().(EndedFrame)
	require.True(t, ok)
	assert.Equal(t, stored, ended.Feedback)

	rec, _ := h.store.GetFeedback(context.Background(), "sess-1")
	assert.Equal(t, "fb-1", rec.ID)
}

func TestRunSingleQuestionBudget(t *testing.T) {
	h := newHarness()
	h.cfg.MaxQuestions = 1
	ch := newScriptChannel(answers("a1")...)

	require.NoError(t, h.orchestrator().Run(context.Background(), ch, "sess-1", ""))
	assert.Equal(t, []string{"SPEAKING", "AUDIO", "LISTENING", "PROCESSING", "SPEAKING", "AUDIO", "ENDED"}, ch.frameNames())
	assert.Zero(t, h.engine.calls)
}

func TestRunHistoryLimit(t *testing.T) {
	h := newHarness()
	h.cfg.HistoryLimit = 2
	ch := newScriptChannel(answers("a1", "a2", "a3", "a4")...)

	require.NoError(t, h.orchestrator().Run(context.Background(), ch, "sess-1", ""))
	require.Len(t, h.engine.histories, 3)
	for _, hist := range h.engine.histories {
		require.Len(t, hist, 2)
		assert.Equal(t, domain.RoleInterviewer, hist[0].Role)
		assert.Equal(t, domain.RoleCandidate, hist[1].Role)
	}
	assert.Equal(t, "a3", h.engine.histories[2][1].Content)

	// The evaluator still sees the whole transcript.
	assert.Equal(t, domain.FormatTranscript(h.store.all()), h.evaluator.transcripts[0])
}

func TestNewOrchestratorDefaultsBudget(t *testing.T) {
	o := NewOrchestrator(Deps{}, Config{})
	assert.Equal(t, DefaultMaxQuestions, o.cfg.MaxQuestions)
}
