package store

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashureev/career-agent/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := newSQLite(filepath.Join(t.TempDir(), "nested", "career.db"))
	if err != nil {
		t.Fatalf("newSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteSessionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	guest := &domain.Session{ID: "sess-guest", AnalysisID: "an-1", CreatedAt: time.Unix(1700000000, 0)}
	if err := s.CreateSession(ctx, guest); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	got, err := s.GetSession(ctx, "sess-guest")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected session, got nil")
	}
	if !got.IsGuest() {
		t.Errorf("expected guest session, got user %q", got.UserID)
	}
	if got.AnalysisID != "an-1" || !got.CreatedAt.Equal(guest.CreatedAt) {
		t.Errorf("unexpected session: %+v", got)
	}

	missing, err := s.GetSession(ctx, "nope")
	if err != nil {
		t.Fatalf("GetSession(missing) failed: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing session, got %+v", missing)
	}
}

func TestSQLiteListMessagesWindow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	contents := []string{"q1", "a1", "q2", "a2", "q3"}
	for i, c := range contents {
		role := domain.RoleInterviewer
		if i%2 == 1 {
			role = domain.RoleCandidate
		}
		if _, err := s.AppendMessage(ctx, "sess-1", role, c); err != nil {
			t.Fatalf("AppendMessage(%s) failed: %v", c, err)
		}
	}
	if _, err := s.AppendMessage(ctx, "sess-other", domain.RoleInterviewer, "other"); err != nil {
		t.Fatalf("AppendMessage(other) failed: %v", err)
	}

	recent, err := s.ListMessages(ctx, "sess-1", 2)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(recent) != 2 || recent[0].Content != "a2" || recent[1].Content != "q3" {
		t.Fatalf("expected [a2 q3], got %+v", recent)
	}

	all, err := s.ListMessages(ctx, "sess-1", 0)
	if err != nil {
		t.Fatalf("ListMessages(all) failed: %v", err)
	}
	if len(all) != len(contents) {
		t.Fatalf("expected %d messages, got %d", len(contents), len(all))
	}
	for i := range all {
		if all[i].Content != contents[i] {
			t.Errorf("message %d: expected %q, got %q", i, contents[i], all[i].Content)
		}
		if i > 0 && all[i].Seq <= all[i-1].Seq {
			t.Errorf("sequence not increasing at %d: %d <= %d", i, all[i].Seq, all[i-1].Seq)
		}
	}
}

func TestSQLiteAppendMessageRejectsUnknownRole(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.AppendMessage(context.Background(), "sess-1", domain.Role("system"), "x"); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestSQLiteFeedbackIsWrittenOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := &domain.FeedbackRecord{
		ID:        "fb-1",
		SessionID: "sess-1",
		UserID:    "user-1",
		Feedback: domain.Feedback{
			OverallScore: 8,
			Strengths:    []string{"Clear"},
			Weaknesses:   []string{"Brief"},
		},
		CreatedAt: time.Unix(1700000000, 0),
	}
	if err := s.SaveFeedback(ctx, first); err != nil {
		t.Fatalf("SaveFeedback failed: %v", err)
	}

	second := *first
	second.ID = "fb-2"
	second.Feedback.OverallScore = 2
	if err := s.SaveFeedback(ctx, &second); !errors.Is(err, ErrFeedbackExists) {
		t.Fatalf("expected ErrFeedbackExists, got %v", err)
	}

	got, err := s.GetFeedback(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetFeedback failed: %v", err)
	}
	if got == nil || got.ID != "fb-1" || got.Feedback.OverallScore != 8 {
		t.Fatalf("expected first record to survive, got %+v", got)
	}
	if got.UserID != "user-1" {
		t.Errorf("expected user-1, got %q", got.UserID)
	}
}

func TestSQLiteGuestAnalysesBefore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	report := json.RawMessage(`{"ats_score":70}`)
	old := time.Now().Add(-48 * time.Hour)
	rows := []*domain.Analysis{
		{ID: "guest-old", Namespace: "guest-a", JobDescription: "jd", ResumePath: "guest-a/r.pdf", Report: report, CreatedAt: old},
		{ID: "guest-new", Namespace: "guest-b", JobDescription: "jd", ResumePath: "guest-b/r.pdf", Report: report, CreatedAt: time.Now()},
		{ID: "user-old", UserID: "u1", Namespace: "u1", JobDescription: "jd", ResumePath: "u1/r.pdf", Report: report, CreatedAt: old},
	}
	for _, a := range rows {
		if err := s.SaveAnalysis(ctx, a); err != nil {
			t.Fatalf("SaveAnalysis(%s) failed: %v", a.ID, err)
		}
	}

	expired, err := s.ListGuestAnalysesBefore(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("ListGuestAnalysesBefore failed: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != "guest-old" {
		t.Fatalf("expected only guest-old, got %+v", expired)
	}
	if string(expired[0].Report) != string(report) {
		t.Errorf("report not preserved: %s", expired[0].Report)
	}

	owned, err := s.ListAnalysesByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListAnalysesByUser failed: %v", err)
	}
	if len(owned) != 1 || owned[0].ID != "user-old" {
		t.Fatalf("expected user-old, got %+v", owned)
	}

	if err := s.DeleteAnalysis(ctx, "guest-old"); err != nil {
		t.Fatalf("DeleteAnalysis failed: %v", err)
	}
	gone, err := s.GetAnalysis(ctx, "guest-old")
	if err != nil {
		t.Fatalf("GetAnalysis failed: %v", err)
	}
	if gone != nil {
		t.Errorf("expected analysis to be deleted, got %+v", gone)
	}
}
