package examsession

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // driver: sqlite

	"github.com/SAP-F-2025/learning-path-service/internal/models"
)

// ShadowMaxAge is how long a local shadow stays usable.
const ShadowMaxAge = 24 * time.Hour

const localIDPrefix = "local-"

const shadowSchema = `
CREATE TABLE IF NOT EXISTS session_shadows (
  owner TEXT NOT NULL,
  exam_type TEXT NOT NULL,
  session_json TEXT NOT NULL,
  saved_at INTEGER NOT NULL,
  PRIMARY KEY (owner, exam_type)
);`

// LocalStore keeps one shadow session per exam type in an embedded SQLite
// database. It backs the manager in local mode and mirrors server sessions.
type LocalStore struct {
	db     *sql.DB
	owner  string
	clock  Clock
	maxAge time.Duration
}

type LocalOption func(*LocalStore)

func WithLocalClock(c Clock) LocalOption {
	return func(s *LocalStore) { s.clock = c }
}

func WithMaxAge(d time.Duration) LocalOption {
	return func(s *LocalStore) { s.maxAge = d }
}

// OpenLocalStore opens (or creates) the shadow database at dsn.
func OpenLocalStore(ctx context.Context, dsn, owner string, opts ...LocalOption) (*LocalStore, error) {
	if dsn == "" {
		dsn = "file:exam-sessions.db?mode=rwc&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open shadow store: %w", err)
	}
	store, err := NewLocalStore(ctx, db, owner, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func NewLocalStore(ctx context.Context, db *sql.DB, owner string, opts ...LocalOption) (*LocalStore, error) {
	if _, err := db.ExecContext(ctx, shadowSchema); err != nil {
		return nil, fmt.Errorf("create shadow schema: %w", err)
	}
	s := &LocalStore{db: db, owner: owner, clock: SystemClock(), maxAge: ShadowMaxAge}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *LocalStore) Close() error {
	return s.db.Close()
}

// Start opens a session that exists only on this device.
func (s *LocalStore) Start(ctx context.Context, examID uint, examType models.ExamType) (*models.ExamSession, error) {
	examType = examType.OrDefault()
	now := s.clock.Now().UTC()
	session := &models.ExamSession{
		ID:          localIDPrefix + uuid.NewString(),
		Username:    s.owner,
		ExamID:      examID,
		ExamType:    examType,
		Answers:     []byte("{}"),
		StartedAt:   now,
		LastSavedAt: now,
		IsActive:    true,
	}
	if err := s.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Active returns the shadow for examType unless it is older than the
// freshness window.
func (s *LocalStore) Active(ctx context.Context, examType models.ExamType) (*models.ExamSession, error) {
	examType = examType.OrDefault()

	var raw string
	var savedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT session_json, saved_at FROM session_shadows WHERE owner = ? AND exam_type = ?`,
		s.owner, string(examType)).Scan(&raw, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load shadow: %w", err)
	}

	if s.clock.Now().Sub(time.UnixMilli(savedAt)) > s.maxAge {
		return nil, nil
	}

	var session models.ExamSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("decode shadow: %w", err)
	}
	return &session, nil
}

// Save upserts the shadow and stamps its save time.
func (s *LocalStore) Save(ctx context.Context, session *models.ExamSession) error {
	now := s.clock.Now()
	snapshot := session.Clone()
	snapshot.LastSavedAt = now.UTC()

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode shadow: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO session_shadows (owner, exam_type, session_json, saved_at) VALUES (?, ?, ?, ?)
ON CONFLICT (owner, exam_type) DO UPDATE SET session_json = excluded.session_json, saved_at = excluded.saved_at`,
		s.owner, string(session.ExamType.OrDefault()), string(data), now.UnixMilli())
	if err != nil {
		return fmt.Errorf("save shadow: %w", err)
	}
	return nil
}

// Complete clears the shadow. No result is produced on the client.
func (s *LocalStore) Complete(ctx context.Context, session *models.ExamSession, _ map[string]json.RawMessage, _ int) (*models.CompletionResult, error) {
	return nil, s.Clear(ctx, session.ExamType)
}

func (s *LocalStore) Cancel(ctx context.Context, session *models.ExamSession) error {
	return s.Clear(ctx, session.ExamType)
}

func (s *LocalStore) Clear(ctx context.Context, examType models.ExamType) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM session_shadows WHERE owner = ? AND exam_type = ?`,
		s.owner, string(examType.OrDefault()))
	if err != nil {
		return fmt.Errorf("clear shadow: %w", err)
	}
	return nil
}

// IsLocalSession reports whether the session was never stored on the server.
func IsLocalSession(session *models.ExamSession) bool {
	return session != nil && strings.HasPrefix(session.ID, localIDPrefix)
}

var _ SessionStore = (*LocalStore)(nil)
