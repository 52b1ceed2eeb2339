package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ashureev/career-agent/internal/domain"
	"github.com/ashureev/career-agent/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	return newSQLite(dbPath)
}

func newSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		namespace TEXT NOT NULL,
		job_description TEXT NOT NULL,
		resume_path TEXT NOT NULL,
		similarity REAL NOT NULL,
		report_json TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_analyses_user ON analyses(user_id);
	CREATE INDEX IF NOT EXISTS idx_analyses_guest_created ON analyses(created_at) WHERE user_id IS NULL;

	CREATE TABLE IF NOT EXISTS interview_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		analysis_id TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS interview_messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session_seq ON interview_messages(session_id, seq);

	CREATE TABLE IF NOT EXISTS interview_feedback (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL UNIQUE,
		user_id TEXT,
		overall_score REAL NOT NULL,
		feedback_json TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// CreateSession inserts a new interview session.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	query := `INSERT INTO interview_sessions (id, user_id, analysis_id, created_at) VALUES (?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		session.ID, nullString(session.UserID), session.AnalysisID, session.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	query := `SELECT id, user_id, analysis_id, created_at FROM interview_sessions WHERE id = ?`

	var session domain.Session
	var userID sql.NullString
	var createdAt int64

	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(&session.ID, &userID, &session.AnalysisID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	session.UserID = userID.String
	session.CreatedAt = time.Unix(createdAt, 0)
	return &session, nil
}

// AppendMessage appends a transcript message. Writes are retried with
// exponential backoff when SQLite reports the database as busy.
func (s *SQLiteStore) AppendMessage(ctx context.Context, sessionID string, role domain.Role, content string) (*domain.Message, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("append message: invalid role %q", role)
	}

	now := time.Now()
	var seq int64
	err := withBusyRetry(ctx, "AppendMessage", func() error {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO interview_messages (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
			sessionID, string(role), content, now.UnixNano(),
		)
		if err != nil {
			return err
		}
		seq, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	return &domain.Message{
		Seq:       seq,
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: now,
	}, nil
}

// ListMessages returns the most recent limit messages in chronological order.
func (s *SQLiteStore) ListMessages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	query := `
		SELECT seq, session_id, role, content, created_at
		FROM interview_messages WHERE session_id = ?
		ORDER BY seq DESC`
	args := []any{sessionID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close message rows", "error", closeErr)
		}
	}()

	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		var role string
		var createdAt int64
		if err := rows.Scan(&m.Seq, &m.SessionID, &role, &m.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		m.Role = domain.Role(role)
		m.CreatedAt = time.Unix(0, createdAt)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	reverseMessages(msgs)
	return msgs, nil
}

// SaveAnalysis inserts an ATS analysis.
func (s *SQLiteStore) SaveAnalysis(ctx context.Context, a *domain.Analysis) error {
	query := `
	INSERT INTO analyses (id, user_id, namespace, job_description, resume_path, similarity, report_json, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		a.ID, nullString(a.UserID), a.Namespace, a.JobDescription, a.ResumePath,
		a.Similarity, string(a.Report), a.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

const analysisColumns = `id, user_id, namespace, job_description, resume_path, similarity, report_json, created_at`

// GetAnalysis retrieves an analysis by ID.
func (s *SQLiteStore) GetAnalysis(ctx context.Context, analysisID string) (*domain.Analysis, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+analysisColumns+` FROM analyses WHERE id = ?`, analysisID)
	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan analysis row: %w", err)
	}
	return a, nil
}

// ListAnalysesByUser returns all analyses owned by userID.
func (s *SQLiteStore) ListAnalysesByUser(ctx context.Context, userID string) ([]*domain.Analysis, error) {
	return s.queryAnalyses(ctx, `SELECT `+analysisColumns+` FROM analyses WHERE user_id = ? ORDER BY created_at`, userID)
}

// ListGuestAnalysesBefore returns guest analyses created before cutoff.
func (s *SQLiteStore) ListGuestAnalysesBefore(ctx context.Context, cutoff time.Time) ([]*domain.Analysis, error) {
	return s.queryAnalyses(ctx, `SELECT `+analysisColumns+` FROM analyses WHERE user_id IS NULL AND created_at < ?`, cutoff.Unix())
}

func (s *SQLiteStore) queryAnalyses(ctx context.Context, query string, args ...any) ([]*domain.Analysis, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close analysis rows", "error", closeErr)
		}
	}()

	var out []*domain.Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("scan analysis row: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analyses: %w", err)
	}
	return out, nil
}

// DeleteAnalysis removes an analysis row.
func (s *SQLiteStore) DeleteAnalysis(ctx context.Context, analysisID string) error {
	err := withBusyRetry(ctx, "DeleteAnalysis", func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM analyses WHERE id = ?`, analysisID)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete analysis: %w", err)
	}
	return nil
}

// SaveFeedback stores the feedback record for a session.
func (s *SQLiteStore) SaveFeedback(ctx context.Context, record *domain.FeedbackRecord) error {
	payload, err := json.Marshal(record.Feedback)
	if err != nil {
		return fmt.Errorf("marshal feedback: %w", err)
	}

	query := `
	INSERT INTO interview_feedback (id, session_id, user_id, overall_score, feedback_json, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(session_id) DO NOTHING`

	res, err := s.db.ExecContext(ctx, query,
		record.ID, record.SessionID, nullString(record.UserID),
		record.Feedback.OverallScore, string(payload), record.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrFeedbackExists
	}
	return nil
}

// GetFeedback retrieves the feedback record for a session.
func (s *SQLiteStore) GetFeedback(ctx context.Context, sessionID string) (*domain.FeedbackRecord, error) {
	query := `SELECT id, session_id, user_id, feedback_json, created_at FROM interview_feedback WHERE session_id = ?`

	var rec domain.FeedbackRecord
	var userID sql.NullString
	var payload string
	var createdAt int64

	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(&rec.ID, &rec.SessionID, &userID, &payload, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan feedback row: %w", err)
	}

	rec.Feedback, err = domain.DecodeFeedback([]byte(payload))
	if err != nil {
		return nil, fmt.Errorf("decode feedback: %w", err)
	}
	rec.UserID = userID.String
	rec.CreatedAt = time.Unix(createdAt, 0)
	return &rec, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (*domain.Analysis, error) {
	var a domain.Analysis
	var userID sql.NullString
	var report string
	var createdAt int64

	if err := row.Scan(&a.ID, &userID, &a.Namespace, &a.JobDescription, &a.ResumePath,
		&a.Similarity, &report, &createdAt); err != nil {
		return nil, err
	}
	a.UserID = userID.String
	a.Report = json.RawMessage(report)
	a.CreatedAt = time.Unix(createdAt, 0)
	return &a, nil
}

func nullString(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

// withBusyRetry runs fn, retrying with exponential backoff on SQLITE_BUSY errors.
func withBusyRetry(ctx context.Context, op string, fn func() error) error {
	maxRetries := 3
	baseDelay := 50 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		err = fn()
		if err == nil || !shared.IsSQLiteConflictError(err) {
			return err
		}
		if i == maxRetries-1 {
			break
		}

		delay := baseDelay * time.Duration(1<<i) // 50ms, 100ms
		slog.Debug("SQLite busy, retrying", "op", op, "attempt", i+1, "delay", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, maxRetries, err)
}
