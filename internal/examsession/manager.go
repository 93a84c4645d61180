package examsession

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SAP-F-2025/learning-path-service/internal/models"
)

// DefaultDebounce is the autosave coalescing window.
const DefaultDebounce = 2 * time.Second

type State int

const (
	StateNoSession State = iota
	StateActive
	StateCompleted
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	}
	return "no_session"
}

type Mode int

const (
	ModeServerBacked Mode = iota
	ModeLocalFallback
)

func (m Mode) String() string {
	if m == ModeLocalFallback {
		return "local_fallback"
	}
	return "server_backed"
}

// Manager tracks one user's active exam attempt on the client. The server
// store is authoritative; the local store is a shadow used when the server
// refuses or cannot be reached.
type Manager struct {
	remote SessionStore
	local  *LocalStore
	clock  Clock
	logger *slog.Logger

	debounce time.Duration
	pending  *PendingWrite

	mu      sync.Mutex
	state   State
	mode    Mode
	session *models.ExamSession
}

type Option func(*Manager)

func WithDebounce(d time.Duration) Option {
	return func(m *Manager) { m.debounce = d }
}

func WithClock(c Clock) Option {
	return func(m *Manager) { m.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func NewManager(remote SessionStore, local *LocalStore, opts ...Option) *Manager {
	m := &Manager{
		remote:   remote,
		local:    local,
		clock:    SystemClock(),
		logger:   slog.Default(),
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.pending = NewPendingWrite(m.clock, m.debounce, m.logger)
	return m
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// Session returns a copy of the active session, or nil.
func (m *Manager) Session() *models.ExamSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.Clone()
}

// Start opens a server session. An authorization failure switches to local
// mode instead of failing; any other error is returned.
func (m *Manager) Start(ctx context.Context, examID uint, examType models.ExamType) (*models.ExamSession, error) {
	m.pending.CancelAndWait()

	mode := ModeServerBacked
	session, err := m.remote.Start(ctx, examID, examType)
	switch {
	case errors.Is(err, ErrUnauthorized):
		m.logger.Info("Session store refused the user, continuing locally", "exam_id", examID, "error", err)
		mode = ModeLocalFallback
		session, err = m.local.Start(ctx, examID, examType)
		if err != nil {
			return nil, fmt.Errorf("start local session: %w", err)
		}
	case err != nil:
		return nil, err
	default:
		m.mirror(ctx, session)
	}

	m.adopt(session, mode)
	return session.Clone(), nil
}

// LoadActive adopts the server's active session. When the server has none
// or fails, a fresh local shadow is used; otherwise there is no session.
func (m *Manager) LoadActive(ctx context.Context, examType models.ExamType) (*models.ExamSession, error) {
	session, err := m.remote.Active(ctx, examType)
	if err == nil && session != nil {
		m.mirror(ctx, session)
		m.adopt(session, ModeServerBacked)
		return session.Clone(), nil
	}
	if err != nil {
		m.logger.Warn("Loading the server session failed, trying the local shadow", "error", err)
	}

	shadow, shadowErr := m.local.Active(ctx, examType)
	if shadowErr != nil {
		m.logger.Warn("Loading the local shadow failed", "error", shadowErr)
	}
	if shadow == nil {
		m.mu.Lock()
		m.state = StateNoSession
		m.session = nil
		m.mu.Unlock()
		return nil, nil
	}

	m.adopt(shadow, ModeLocalFallback)
	return shadow.Clone(), nil
}

// SaveProgress records the attempt state. Immediate saves are written now
// and their error returned; other saves are debounced and a failure is only
// logged.
func (m *Manager) SaveProgress(ctx context.Context, currentQuestion int, answers map[string]json.RawMessage, timeLeft int, immediate bool) error {
	m.mu.Lock()
	if m.state != StateActive || m.session == nil {
		m.mu.Unlock()
		return ErrNoActiveSession
	}
	if answers != nil {
		encoded, err := models.EncodeAnswers(answers)
		if err != nil {
			m.mu.Unlock()
			return fmt.Errorf("encode answers: %w", err)
		}
		m.session.Answers = encoded
	}
	m.session.CurrentQuestion = currentQuestion
	m.session.TimeLeft = timeLeft
	snapshot := m.session.Clone()
	mode := m.mode
	m.mu.Unlock()

	write := m.writer(snapshot, mode)
	if immediate {
		return m.pending.Flush(ctx, write)
	}
	m.pending.Schedule(write)
	return nil
}

// writer runs under the pending slot's write lock. Complete and Cancel
// release the session before taking that lock, so a write that finds the
// session gone must not touch either store.
func (m *Manager) writer(snapshot *models.ExamSession, mode Mode) WriteFunc {
	return func(ctx context.Context) error {
		if !m.holds(snapshot.ID) {
			return ErrNoActiveSession
		}
		if mode == ModeLocalFallback {
			return m.local.Save(ctx, snapshot)
		}
		if err := m.remote.Save(ctx, snapshot); err != nil {
			return err
		}
		m.mirror(ctx, snapshot)
		return nil
	}
}

// Complete submits the attempt. The session is released and the shadow
// cleared whatever the server answers; ErrNotRecorded (wrapping the cause)
// tells the caller no result exists to score.
func (m *Manager) Complete(ctx context.Context, finalAnswers map[string]json.RawMessage, timeSpent int) (*models.CompletionResult, error) {
	m.mu.Lock()
	if m.state != StateActive || m.session == nil {
		m.mu.Unlock()
		return nil, ErrNoActiveSession
	}
	session := m.session.Clone()
	mode := m.mode
	m.state = StateCompleted
	m.session = nil
	m.mu.Unlock()

	// An autosave already in flight lands before the submit and the clear
	m.pending.CancelAndWait()

	// Saved answers a pending autosave never sent travel with the final ones
	merged := session.AnswerMap()
	for k, v := range finalAnswers {
		merged[k] = v
	}

	var result *models.CompletionResult
	var completeErr error
	if mode == ModeServerBacked {
		result, completeErr = m.remote.Complete(ctx, session, merged, timeSpent)
		if completeErr != nil {
			m.logger.Error("Server did not record the exam completion", "session_id", session.ID, "error", completeErr)
		}
	}

	if err := m.local.Clear(ctx, session.ExamType); err != nil {
		m.logger.Warn("Clearing the local shadow failed", "session_id", session.ID, "error", err)
	}

	if result == nil || result.Result == nil {
		if completeErr == nil {
			return nil, ErrNotRecorded
		}
		return nil, fmt.Errorf("%w: %w", ErrNotRecorded, completeErr)
	}
	return result, nil
}

// Cancel releases the session. The server delete is best effort.
func (m *Manager) Cancel(ctx context.Context) {
	m.mu.Lock()
	session := m.session
	mode := m.mode
	m.session = nil
	m.state = StateCancelled
	m.mu.Unlock()

	m.pending.CancelAndWait()

	if session == nil {
		return
	}
	if mode == ModeServerBacked && !IsLocalSession(session) {
		if err := m.remote.Cancel(ctx, session); err != nil {
			m.logger.Warn("Deleting the server session failed", "session_id", session.ID, "error", err)
		}
	}
	if err := m.local.Clear(ctx, session.ExamType); err != nil {
		m.logger.Warn("Clearing the local shadow failed", "session_id", session.ID, "error", err)
	}
}

func (m *Manager) holds(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateActive && m.session != nil && m.session.ID == sessionID
}

func (m *Manager) adopt(session *models.ExamSession, mode Mode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = session.Clone()
	m.mode = mode
	m.state = StateActive
}

// mirror keeps the shadow in step with the server copy.
func (m *Manager) mirror(ctx context.Context, session *models.ExamSession) {
	if err := m.local.Save(ctx, session); err != nil {
		m.logger.Warn("Mirroring the session locally failed", "session_id", session.ID, "error", err)
	}
}
