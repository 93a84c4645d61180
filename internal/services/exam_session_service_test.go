package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-path-service/internal/events"
	"github.com/SAP-F-2025/learning-path-service/internal/models"
	"github.com/SAP-F-2025/learning-path-service/internal/testutil"
)

func startReq(examID uint) *StartSessionRequest {
	return &StartSessionRequest{ExamID: examID, ExamType: models.ExamTypePreAssessment}
}

func TestExamSessionService_StartResumesSameExam(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	exam := testutil.SeedExam(t, ctx, env.db, models.ExamTypePreAssessment,
		testutil.QuestionSpec{Topic: "Loops", Correct: "0"})

	first, err := env.sessions.Start(ctx, "alice", startReq(exam.ID))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !first.IsActive || first.TimeLeft != 30*60 || first.ID == "" {
		t.Errorf("session = %+v", first)
	}

	again, err := env.sessions.Start(ctx, "alice", startReq(exam.ID))
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != first.ID {
		t.Errorf("Start() created %s instead of resuming %s", again.ID, first.ID)
	}
}

func TestExamSessionService_StartReplacesOtherExam(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	examA := testutil.SeedExam(t, ctx, env.db, models.ExamTypePreAssessment,
		testutil.QuestionSpec{Topic: "Loops", Correct: "0"})
	examB := testutil.SeedExam(t, ctx, env.db, models.ExamTypePreAssessment,
		testutil.QuestionSpec{Topic: "Loops", Correct: "0"})

	old, err := env.sessions.Start(ctx, "alice", startReq(examA.ID))
	if err != nil {
		t.Fatal(err)
	}
	replacement, err := env.sessions.Start(ctx, "alice", startReq(examB.ID))
	if err != nil {
		t.Fatal(err)
	}
	if replacement.ID == old.ID || replacement.ExamID != examB.ID {
		t.Errorf("replacement = %+v", replacement)
	}

	if n := countRows(t, env.db, &models.ExamSession{}, "username = ? AND is_active = ?", "alice", true); n != 1 {
		t.Errorf("active sessions = %d, want 1", n)
	}

	active, err := env.sessions.GetActive(ctx, "alice", "")
	if err != nil {
		t.Fatal(err)
	}
	if active == nil || active.ID != replacement.ID {
		t.Errorf("GetActive() = %+v", active)
	}
}

func TestExamSessionService_StartErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	inactive := testutil.SeedExam(t, ctx, env.db, models.ExamTypePreAssessment,
		testutil.QuestionSpec{Topic: "Loops", Correct: "0"})
	if err := env.db.Model(inactive).Update("is_active", false).Error; err != nil {
		t.Fatal(err)
	}
	post := testutil.SeedExam(t, ctx, env.db, models.ExamTypePostAssessment,
		testutil.QuestionSpec{Topic: "Loops", Correct: "0"})

	tests := []struct {
		name string
		req  *StartSessionRequest
		want error
	}{
		{"unknown exam", startReq(4242), ErrExamNotFound},
		{"inactive exam", startReq(inactive.ID), ErrNoActiveExam},
		{"exam type mismatch", startReq(post.ID), ErrExamTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.sessions.Start(ctx, "alice", tt.req); !errors.Is(err, tt.want) {
				t.Errorf("Start() error = %v, want %v", err, tt.want)
			}
		})
	}

	t.Run("invalid request", func(t *testing.T) {
		_, err := env.sessions.Start(ctx, "alice", &StartSessionRequest{})
		var verrs ValidationErrors
		if !errors.As(err, &verrs) {
			t.Errorf("Start() error = %v, want validation errors", err)
		}
	})
}

func TestExamSessionService_SaveProgress(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	exam := testutil.SeedExam(t, ctx, env.db, models.ExamTypePreAssessment,
		testutil.QuestionSpec{Topic: "Loops", Correct: "0"},
		testutil.QuestionSpec{Topic: "Loops", Correct: "1"})
	session, err := env.sessions.Start(ctx, "alice", startReq(exam.ID))
	if err != nil {
		t.Fatal(err)
	}

	req := &SaveProgressRequest{
		CurrentQuestion: 1,
		Answers:         map[string]json.RawMessage{exam.Questions[0].AnswerKey(): json.RawMessage(`"A"`)},
		TimeLeft:        1500,
	}
	saved, err := env.sessions.SaveProgress(ctx, session.ID, "alice", req)
	if err != nil {
		t.Fatalf("SaveProgress() error = %v", err)
	}
	if saved.CurrentQuestion != 1 || saved.TimeLeft != 1500 || !saved.LastSavedAt.Equal(fixedNow) {
		t.Errorf("saved = %+v", saved)
	}

	active, err := env.sessions.GetActive(ctx, "alice", models.ExamTypePreAssessment)
	if err != nil {
		t.Fatal(err)
	}
	if string(active.AnswerMap()[exam.Questions[0].AnswerKey()]) != `"A"` {
		t.Errorf("stored answers = %s", active.Answers)
	}

	_, err = env.sessions.SaveProgress(ctx, session.ID, "mallory", req)
	var perr *PermissionError
	if !errors.As(err, &perr) || !errors.Is(err, ErrSessionAccessDenied) {
		t.Errorf("foreign save error = %v", err)
	}

	if _, err := env.sessions.SaveProgress(ctx, "missing", "alice", req); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("missing session error = %v", err)
	}
}

func TestExamSessionService_Complete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sc := seedLoopsAndFunctions(t, env)
	q := sc.exam.Questions

	session, err := env.sessions.Start(ctx, "alice", startReq(sc.exam.ID))
	if err != nil {
		t.Fatal(err)
	}
	_, err = env.sessions.SaveProgress(ctx, session.ID, "alice", &SaveProgressRequest{
		CurrentQuestion: 2,
		Answers: map[string]json.RawMessage{
			q[0].AnswerKey(): json.RawMessage(`0`),
			q[1].AnswerKey(): json.RawMessage(`2`),
		},
		TimeLeft: 1200,
	})
	if err != nil {
		t.Fatal(err)
	}

	// Final answers are merged over the saved ones
	completion, err := env.sessions.Complete(ctx, session.ID, "alice", &CompleteSessionRequest{
		FinalAnswers: map[string]json.RawMessage{
			q[1].AnswerKey(): json.RawMessage(`0`),
			q[2].AnswerKey(): json.RawMessage(`2`),
			q[3].AnswerKey(): json.RawMessage(`0`),
			q[4].AnswerKey(): json.RawMessage(`0`),
		},
		TimeSpent: 600,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if completion.Result == nil || completion.Result.ID == 0 || completion.Result.SessionID != session.ID {
		t.Fatalf("result = %+v", completion.Result)
	}
	answers, err := completion.Result.AnswerMap()
	if err != nil || len(answers) != 5 {
		t.Errorf("result answers = %v (%v)", answers, err)
	}
	if completion.Assignment == nil || completion.Assignment.OverallPct != 40 {
		t.Fatalf("assignment = %+v", completion.Assignment)
	}
	want := []uint{sc.modules[2].ID, sc.modules[1].ID}
	if !equalIDs(completion.Assignment.AssignedIDs, want) {
		t.Errorf("AssignedIDs = %v, want %v", completion.Assignment.AssignedIDs, want)
	}

	active, err := env.sessions.GetActive(ctx, "alice", "")
	if err != nil || active != nil {
		t.Errorf("GetActive() after complete = %+v, %v", active, err)
	}
	if _, err := env.sessions.SaveProgress(ctx, session.ID, "alice", &SaveProgressRequest{}); !errors.Is(err, ErrSessionNotActive) {
		t.Errorf("save after complete error = %v", err)
	}
	if _, err := env.sessions.Complete(ctx, session.ID, "alice", &CompleteSessionRequest{}); !errors.Is(err, ErrSessionNotActive) {
		t.Errorf("second complete error = %v", err)
	}

	completed := env.publisher.EventsOfType(events.EventExamCompleted)
	if len(completed) != 1 {
		t.Fatalf("exam.completed events = %d", len(completed))
	}
	var payload events.ExamCompletedPayload
	if err := json.Unmarshal(completed[0].Data, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.ResultID != completion.Result.ID || payload.TimeSpent != 600 {
		t.Errorf("payload = %+v", payload)
	}
	if n := len(env.publisher.EventsOfType(events.EventAssignmentsRecomputed)); n != 1 {
		t.Errorf("assignments.recomputed events = %d", n)
	}
}

func TestExamSessionService_Cancel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	exam := testutil.SeedExam(t, ctx, env.db, models.ExamTypePreAssessment,
		testutil.QuestionSpec{Topic: "Loops", Correct: "0"})

	session, err := env.sessions.Start(ctx, "alice", startReq(exam.ID))
	if err != nil {
		t.Fatal(err)
	}
	// Warm the cache so cancel has to invalidate it
	if active, _ := env.sessions.GetActive(ctx, "alice", ""); active == nil {
		t.Fatal("expected active session")
	}

	if err := env.sessions.Cancel(ctx, session.ID, "bob"); !errors.Is(err, ErrSessionAccessDenied) {
		t.Errorf("foreign cancel error = %v", err)
	}
	if err := env.sessions.Cancel(ctx, session.ID, "alice"); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	active, err := env.sessions.GetActive(ctx, "alice", "")
	if err != nil || active != nil {
		t.Errorf("GetActive() after cancel = %+v, %v", active, err)
	}
	if err := env.sessions.Cancel(ctx, session.ID, "alice"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("second cancel error = %v", err)
	}
	if n := countRows(t, env.db, &models.ExamResult{}, "username = ?", "alice"); n != 0 {
		t.Errorf("cancel stored %d results", n)
	}
}

// runAfterFirstRead runs fn once, right after the next query on db returns.
func runAfterFirstRead(t *testing.T, db *gorm.DB, fn func()) {
	t.Helper()
	fired := false
	err := db.Callback().Query().After("gorm:query").Register("test:after_first_read", func(*gorm.DB) {
		if fired {
			return
		}
		fired = true
		fn()
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Callback().Query().Remove("test:after_first_read") })
}

func TestExamSessionService_InterleavedRequests(t *testing.T) {
	final := &CompleteSessionRequest{TimeSpent: 300}
	progress := &SaveProgressRequest{CurrentQuestion: 3, TimeLeft: 900}

	tests := []struct {
		name        string
		outer       func(*testEnv, string) error
		inner       func(*testEnv, string) error
		wantResults int64
	}{
		{
			name: "complete between save read and write",
			outer: func(env *testEnv, id string) error {
				_, err := env.sessions.SaveProgress(context.Background(), id, "alice", progress)
				return err
			},
			inner: func(env *testEnv, id string) error {
				_, err := env.sessions.Complete(context.Background(), id, "alice", final)
				return err
			},
			wantResults: 1,
		},
		{
			name: "second tab completes first",
			outer: func(env *testEnv, id string) error {
				_, err := env.sessions.Complete(context.Background(), id, "alice", final)
				return err
			},
			inner: func(env *testEnv, id string) error {
				_, err := env.sessions.Complete(context.Background(), id, "alice", final)
				return err
			},
			wantResults: 1,
		},
		{
			name: "cancel between save read and write",
			outer: func(env *testEnv, id string) error {
				_, err := env.sessions.SaveProgress(context.Background(), id, "alice", progress)
				return err
			},
			inner: func(env *testEnv, id string) error {
				return env.sessions.Cancel(context.Background(), id, "alice")
			},
			wantResults: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			exam := testutil.SeedExam(t, ctx, env.db, models.ExamTypePreAssessment,
				testutil.QuestionSpec{Topic: "Loops", Correct: "0"})
			session, err := env.sessions.Start(ctx, "alice", startReq(exam.ID))
			if err != nil {
				t.Fatal(err)
			}

			var innerErr error
			runAfterFirstRead(t, env.db, func() { innerErr = tt.inner(env, session.ID) })

			if err := tt.outer(env, session.ID); !errors.Is(err, ErrSessionNotActive) {
				t.Errorf("outer request error = %v, want ErrSessionNotActive", err)
			}
			if innerErr != nil {
				t.Fatalf("inner request error = %v", innerErr)
			}

			if n := countRows(t, env.db, &models.ExamResult{}, "session_id = ?", session.ID); n != tt.wantResults {
				t.Errorf("results = %d, want %d", n, tt.wantResults)
			}
			if n := countRows(t, env.db, &models.ExamSession{}, "id = ? AND is_active = ?", session.ID, true); n != 0 {
				t.Error("session is active again")
			}
			active, err := env.sessions.GetActive(ctx, "alice", "")
			if err != nil || active != nil {
				t.Errorf("GetActive() = %+v, %v; want none", active, err)
			}
			if n := len(env.publisher.EventsOfType(events.EventExamCompleted)); int64(n) != tt.wantResults {
				t.Errorf("exam.completed events = %d, want %d", n, tt.wantResults)
			}
		})
	}
}
