// Package examsession is the client side of an exam attempt: it tracks the
// active session, coalesces autosaves and falls back to a local shadow copy
// when the server refuses to persist sessions.
package examsession

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/SAP-F-2025/learning-path-service/internal/models"
)

var (
	// ErrUnauthorized means the store refused the caller; the manager
	// downgrades to local mode instead of failing.
	ErrUnauthorized = errors.New("session store: unauthorized")
	ErrNotFound     = errors.New("session store: not found")

	ErrNoActiveSession = errors.New("no active exam session")
	// ErrNotRecorded is returned by Complete when no server result was produced
	ErrNotRecorded = errors.New("exam completion was not recorded by the server")
)

// SessionStore persists one user's exam sessions. Active returns nil
// without error when there is none.
type SessionStore interface {
	Start(ctx context.Context, examID uint, examType models.ExamType) (*models.ExamSession, error)
	Active(ctx context.Context, examType models.ExamType) (*models.ExamSession, error)
	Save(ctx context.Context, session *models.ExamSession) error
	Complete(ctx context.Context, session *models.ExamSession, finalAnswers map[string]json.RawMessage, timeSpent int) (*models.CompletionResult, error)
	Cancel(ctx context.Context, session *models.ExamSession) error
}
