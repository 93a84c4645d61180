package examsession

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/SAP-F-2025/learning-path-service/internal/models"
)

// fakeClock fires timers only when advanced.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

// Advance moves time forward and runs the timers that came due, in order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	var rest []*fakeTimer
	for _, t := range c.timers {
		switch {
		case t.stopped:
		case !t.at.After(c.now):
			t.stopped = true
			due = append(due, t)
		default:
			rest = append(rest, t)
		}
	}
	c.timers = rest
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

// fakeRemote is an in-memory server store.
type fakeRemote struct {
	mu        sync.Mutex
	startErr  error
	activeErr error
	saveErr   error
	doneErr   error
	sessions  map[string]*models.ExamSession
	saves     []models.ExamSession
	completes int
	cancels   int
	seq       int

	// When set, the next Save closes saveStarted and every Save waits for
	// saveRelease before it records anything.
	saveStarted chan struct{}
	saveRelease chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{sessions: map[string]*models.ExamSession{}}
}

func (r *fakeRemote) Start(ctx context.Context, examID uint, examType models.ExamType) (*models.ExamSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startErr != nil {
		return nil, r.startErr
	}
	r.seq++
	s := &models.ExamSession{
		ID:       fmt.Sprintf("srv-%d", r.seq),
		Username: "alice",
		ExamID:   examID,
		ExamType: examType.OrDefault(),
		Answers:  []byte("{}"),
		TimeLeft: 1800,
		IsActive: true,
	}
	r.sessions[s.ID] = s
	return s.Clone(), nil
}

func (r *fakeRemote) Active(ctx context.Context, examType models.ExamType) (*models.ExamSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.activeErr != nil {
		return nil, r.activeErr
	}
	for _, s := range r.sessions {
		if s.IsActive && s.ExamType == examType.OrDefault() {
			return s.Clone(), nil
		}
	}
	return nil, nil
}

func (r *fakeRemote) Save(ctx context.Context, session *models.ExamSession) error {
	r.mu.Lock()
	started, release := r.saveStarted, r.saveRelease
	r.saveStarted = nil
	r.mu.Unlock()
	if started != nil {
		close(started)
	}
	if release != nil {
		<-release
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saves = append(r.saves, *session.Clone())
	if s, ok := r.sessions[session.ID]; ok {
		s.CurrentQuestion = session.CurrentQuestion
		s.TimeLeft = session.TimeLeft
		s.Answers = session.Clone().Answers
	}
	return nil
}

func (r *fakeRemote) Complete(ctx context.Context, session *models.ExamSession, finalAnswers map[string]json.RawMessage, timeSpent int) (*models.CompletionResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completes++
	if r.doneErr != nil {
		return nil, r.doneErr
	}
	answers, err := models.EncodeAnswers(finalAnswers)
	if err != nil {
		return nil, err
	}
	if s, ok := r.sessions[session.ID]; ok {
		s.IsActive = false
	}
	return &models.CompletionResult{
		Result: &models.ExamResult{ID: 1, SessionID: session.ID, ExamID: session.ExamID, Answers: answers, TimeSpent: timeSpent},
	}, nil
}

func (r *fakeRemote) Cancel(ctx context.Context, session *models.ExamSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels++
	delete(r.sessions, session.ID)
	return nil
}

// blockSaves makes saves wait until release is closed.
func (r *fakeRemote) blockSaves() (started, release chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveStarted = make(chan struct{})
	r.saveRelease = make(chan struct{})
	return r.saveStarted, r.saveRelease
}

func (r *fakeRemote) completeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completes
}

func (r *fakeRemote) saveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saves)
}

func (r *fakeRemote) lastSave() models.ExamSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves[len(r.saves)-1]
}

func newLocalStore(t *testing.T, clock Clock) *LocalStore {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	// Every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	store, err := NewLocalStore(context.Background(), db, "alice", WithLocalClock(clock))
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(t *testing.T) (*Manager, *fakeRemote, *LocalStore, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	remote := newFakeRemote()
	local := newLocalStore(t, clock)
	m := NewManager(remote, local, WithClock(clock), WithLogger(quietLogger()))
	return m, remote, local, clock
}

func answerSet(kv ...string) map[string]json.RawMessage {
	out := map[string]json.RawMessage{}
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i]] = json.RawMessage(kv[i+1])
	}
	return out
}
