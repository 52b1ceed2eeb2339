package store

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ashureev/career-agent/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// PostgresStore implements Repository on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to databaseURL and runs schema migrations.
func NewPostgres(ctx context.Context, databaseURL string) (Repository, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("postgres store connected", slog.String("host", config.ConnConfig.Host))
	return s, nil
}

func (s *PostgresStore) runMigrations(ctx context.Context) error {
	entries, err := schemaFS.ReadDir("schema")
	if err != nil {
		return fmt.Errorf("read schema dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		data, err := schemaFS.ReadFile("schema/" + entry.Name())
		if err != nil {
			return fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		if _, err := s.pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("execute %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// Ping verifies database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, session *domain.Session) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO interview_sessions (id, user_id, analysis_id, created_at) VALUES ($1, $2, $3, $4)`,
		session.ID, nullString(session.UserID), session.AnalysisID, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	var session domain.Session
	var userID *string

	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, analysis_id, created_at FROM interview_sessions WHERE id = $1`, sessionID,
	).Scan(&session.ID, &userID, &session.AnalysisID, &session.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}
	if userID != nil {
		session.UserID = *userID
	}
	return &session, nil
}

func (s *PostgresStore) AppendMessage(ctx context.Context, sessionID string, role domain.Role, content string) (*domain.Message, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("append message: invalid role %q", role)
	}

	msg := domain.Message{SessionID: sessionID, Role: role, Content: content}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO interview_messages (session_id, role, content) VALUES ($1, $2, $3)
		 RETURNING seq, created_at`,
		sessionID, string(role), content,
	).Scan(&msg.Seq, &msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	return &msg, nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	query := `SELECT seq, session_id, role, content, created_at
		FROM interview_messages WHERE session_id = $1 ORDER BY seq DESC`
	args := []any{sessionID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		var role string
		if err := rows.Scan(&m.Seq, &m.SessionID, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		m.Role = domain.Role(role)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	reverseMessages(msgs)
	return msgs, nil
}

func (s *PostgresStore) SaveAnalysis(ctx context.Context, a *domain.Analysis) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO analyses (id, user_id, namespace, job_description, resume_path, similarity, report_json, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, nullString(a.UserID), a.Namespace, a.JobDescription, a.ResumePath,
		a.Similarity, string(a.Report), a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

const pgAnalysisColumns = `id, user_id, namespace, job_description, resume_path, similarity, report_json::text, created_at`

func (s *PostgresStore) GetAnalysis(ctx context.Context, analysisID string) (*domain.Analysis, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgAnalysisColumns+` FROM analyses WHERE id = $1`, analysisID)
	a, err := scanPgAnalysis(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan analysis row: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) ListAnalysesByUser(ctx context.Context, userID string) ([]*domain.Analysis, error) {
	return s.queryAnalyses(ctx,
		`SELECT `+pgAnalysisColumns+` FROM analyses WHERE user_id = $1 ORDER BY created_at`, userID)
}

func (s *PostgresStore) ListGuestAnalysesBefore(ctx context.Context, cutoff time.Time) ([]*domain.Analysis, error) {
	return s.queryAnalyses(ctx,
		`SELECT `+pgAnalysisColumns+` FROM analyses WHERE user_id IS NULL AND created_at < $1`, cutoff)
}

func (s *PostgresStore) queryAnalyses(ctx context.Context, query string, args ...any) ([]*domain.Analysis, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}
	defer rows.Close()

	var out []*domain.Analysis
	for rows.Next() {
		a, err := scanPgAnalysis(rows)
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

func (s *PostgresStore) DeleteAnalysis(ctx context.Context, analysisID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM analyses WHERE id = $1`, analysisID); err != nil {
		return fmt.Errorf("delete analysis: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveFeedback(ctx context.Context, record *domain.FeedbackRecord) error {
	payload, err := json.Marshal(record.Feedback)
	if err != nil {
		return fmt.Errorf("marshal feedback: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO interview_feedback (id, session_id, user_id, overall_score, feedback_json, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (session_id) DO NOTHING`,
		record.ID, record.SessionID, nullString(record.UserID),
		record.Feedback.OverallScore, string(payload), record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFeedbackExists
	}
	return nil
}

func (s *PostgresStore) GetFeedback(ctx context.Context, sessionID string) (*domain.FeedbackRecord, error) {
	var rec domain.FeedbackRecord
	var userID *string
	var payload string

	err := s.pool.QueryRow(ctx,
		`SELECT id, session_id, user_id, feedback_json::text, created_at FROM interview_feedback WHERE session_id = $1`,
		sessionID,
	).Scan(&rec.ID, &rec.SessionID, &userID, &payload, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan feedback row: %w", err)
	}

	rec.Feedback, err = domain.DecodeFeedback([]byte(payload))
	if err != nil {
		return nil, fmt.Errorf("decode feedback: %w", err)
	}
	if userID != nil {
		rec.UserID = *userID
	}
	return &rec, nil
}

func scanPgAnalysis(row pgx.Row) (*domain.Analysis, error) {
	var a domain.Analysis
	var userID *string
	var report string

	if err := row.Scan(&a.ID, &userID, &a.Namespace, &a.JobDescription, &a.ResumePath,
		&a.Similarity, &report, &a.CreatedAt); err != nil {
		return nil, err
	}
	if userID != nil {
		a.UserID = *userID
	}
	a.Report = json.RawMessage(report)
	return &a, nil
}
