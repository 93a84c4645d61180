package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-path-service/internal/events"
	"github.com/SAP-F-2025/learning-path-service/internal/models"
	"github.com/SAP-F-2025/learning-path-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/learning-path-service/internal/services"
	"github.com/SAP-F-2025/learning-path-service/internal/testutil"
	"github.com/SAP-F-2025/learning-path-service/internal/utils"
	"github.com/SAP-F-2025/learning-path-service/internal/validator"
)

// headerAuth trusts "X-Test-User: name:role"
type headerAuth struct{}

func (headerAuth) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		name, role, ok := strings.Cut(c.GetHeader("X-Test-User"), ":")
		if !ok || name == "" {
			abortUnauthorized(c, "missing test user")
			return
		}
		SetUser(c, &models.User{ID: name, Username: name, Role: models.UserRole(role)})
		c.Next()
	}
}

func (headerAuth) RequireRoleMiddleware(roles ...models.UserRole) gin.HandlerFunc {
	return RequireRole(roles...)
}

type stubUsers struct{}

func (stubUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	return &models.User{ID: id, Username: id}, nil
}

func (stubUsers) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return &models.User{ID: username, Username: username}, nil
}

type apiEnv struct {
	router *gin.Engine
	db     *gorm.DB
	exam   *models.Exam
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	db := testutil.DB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	// Loops: three questions answered "0"; Functions: two answered "1"
	exam := testutil.SeedExam(t, ctx, db, models.ExamTypePreAssessment,
		testutil.QuestionSpec{Topic: "Loops", Correct: "0"},
		testutil.QuestionSpec{Topic: "Loops", Correct: "0"},
		testutil.QuestionSpec{Topic: "Loops", Correct: "0"},
		testutil.QuestionSpec{Topic: "Functions", Correct: "1"},
		testutil.QuestionSpec{Topic: "Functions", Correct: "1"},
	)
	testutil.SeedModules(t, ctx, db,
		testutil.Module("Loops", "tier1", 0, 49, "Loops basics"),
		testutil.Module("Loops", "tier2", 50, 100, "Loops practice"),
		testutil.Module("Functions", "tier1", 0, 49, "Functions basics"),
		testutil.Module("Functions", "tier2", 50, 100, "Functions practice"),
	)

	logger := testutil.Logger(t)
	repo := postgres.NewPostgreSQLRepository(postgres.RepositoryConfig{
		DB:             db,
		RedisClient:    client,
		UserRepository: stubUsers{},
	})
	sm := services.NewServiceManager(db, repo, logger, validator.New(), events.NewMockEventPublisher(logger),
		services.ServiceManagerConfig{AdvancedThreshold: 90})
	if err := sm.Initialize(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = sm.Shutdown(context.Background()) })

	router := gin.New()
	SetupMiddleware(router, utils.NewSlogLogger(logger), MiddlewareOptions{})
	NewHandlerManagerWithAuth(sm, utils.NewSlogLogger(logger), headerAuth{}).SetupRoutes(router)

	return &apiEnv{router: router, db: db, exam: exam}
}

func (e *apiEnv) do(t *testing.T, method, path, user string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
}

const alice = "alice:student"

func TestAPI_ExamFlow(t *testing.T) {
	env := newAPIEnv(t)
	q := env.exam.Questions

	w := env.do(t, http.MethodGet, "/api/v1/exams/active", alice, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET exam = %d %s", w.Code, w.Body)
	}
	if strings.Contains(w.Body.String(), "correct") {
		t.Errorf("exam leaks answers: %s", w.Body)
	}

	w = env.do(t, http.MethodPost, "/api/v1/exam-sessions/start", alice, map[string]interface{}{"exam_id": env.exam.ID})
	if w.Code != http.StatusCreated {
		t.Fatalf("start = %d %s", w.Code, w.Body)
	}
	var started models.SessionResponse
	decode(t, w, &started)
	id := started.Session.ID

	w = env.do(t, http.MethodPut, "/api/v1/exam-sessions/"+id+"/progress", alice, map[string]interface{}{
		"current_question": 2,
		"answers":          map[string]interface{}{q[0].AnswerKey(): 0, q[1].AnswerKey(): 0},
		"time_left":        1000,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("save = %d %s", w.Code, w.Body)
	}

	w = env.do(t, http.MethodGet, "/api/v1/exam-sessions/active", alice, nil)
	var active models.SessionResponse
	decode(t, w, &active)
	if active.Session == nil || active.Session.ID != id || active.Session.CurrentQuestion != 2 {
		t.Fatalf("active = %s", w.Body)
	}

	w = env.do(t, http.MethodPost, "/api/v1/exam-sessions/"+id+"/complete", alice, map[string]interface{}{
		"final_answers": map[string]interface{}{q[2].AnswerKey(): 2, q[3].AnswerKey(): 0, q[4].AnswerKey(): 0},
		"time_spent":    420,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("complete = %d %s", w.Code, w.Body)
	}
	var completion models.CompletionResult
	decode(t, w, &completion)
	if completion.Result == nil || completion.Assignment == nil || completion.Assignment.OverallPct != 40 {
		t.Fatalf("completion = %s", w.Body)
	}

	w = env.do(t, http.MethodGet, "/api/v1/exam-sessions/active", alice, nil)
	if !strings.Contains(w.Body.String(), `"session":null`) {
		t.Errorf("active after complete = %s", w.Body)
	}

	w = env.do(t, http.MethodGet, "/api/v1/progress/me", alice, nil)
	var progress models.ProgressResponse
	decode(t, w, &progress)
	if progress.OverallScore != 40 || !progress.HasCompletedPreAssessment || len(progress.AssignedModuleIDs) != 2 {
		t.Errorf("progress = %s", w.Body)
	}

	w = env.do(t, http.MethodGet, "/api/v1/modules/me", alice, nil)
	var views []models.ModuleView
	decode(t, w, &views)
	titles := map[string]bool{}
	for _, v := range views {
		titles[v.Title] = v.Assigned
	}
	if len(views) != 2 || !titles["Loops practice"] || !titles["Functions basics"] {
		t.Errorf("modules = %s", w.Body)
	}
}

func TestAPI_ErrorMapping(t *testing.T) {
	env := newAPIEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/exam-sessions/start", alice, map[string]interface{}{"exam_id": env.exam.ID})
	var started models.SessionResponse
	decode(t, w, &started)
	sessionPath := "/api/v1/exam-sessions/" + started.Session.ID

	tests := []struct {
		name   string
		method string
		path   string
		user   string
		body   interface{}
		want   int
	}{
		{"no credentials", http.MethodGet, "/api/v1/progress/me", "", nil, http.StatusUnauthorized},
		{"unknown exam", http.MethodPost, "/api/v1/exam-sessions/start", alice, map[string]interface{}{"exam_id": 999}, http.StatusNotFound},
		{"missing exam id", http.MethodPost, "/api/v1/exam-sessions/start", alice, map[string]interface{}{}, http.StatusBadRequest},
		{"bad exam type", http.MethodGet, "/api/v1/exams/active?exam_type=quiz", alice, nil, http.StatusBadRequest},
		{"no post assessment", http.MethodGet, "/api/v1/exams/active?exam_type=post_assessment", alice, nil, http.StatusNotFound},
		{"foreign session", http.MethodPut, sessionPath + "/progress", "bob:student", map[string]interface{}{"time_left": 10}, http.StatusForbidden},
		{"unknown session", http.MethodDelete, "/api/v1/exam-sessions/nope", alice, nil, http.StatusNotFound},
		{"student on tiers", http.MethodGet, "/api/v1/tiers", alice, nil, http.StatusForbidden},
		{"teacher on tiers", http.MethodGet, "/api/v1/tiers", "tom:teacher", nil, http.StatusOK},
		{"teacher deletes progress", http.MethodDelete, "/api/v1/progress/alice", "tom:teacher", nil, http.StatusForbidden},
		{"admin deletes missing progress", http.MethodDelete, "/api/v1/progress/alice", "ann:admin", nil, http.StatusNotFound},
		{"invalid tier table", http.MethodPut, "/api/v1/tiers", "ann:admin", map[string]interface{}{
			"ranges": []map[string]interface{}{{"key": "tier1", "label": "Low", "min": 60, "max": 10}},
		}, http.StatusBadRequest},
		{"empty tier table", http.MethodPut, "/api/v1/tiers", "ann:admin", map[string]interface{}{
			"ranges": []map[string]interface{}{},
		}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, tt.method, tt.path, tt.user, tt.body)
			if w.Code != tt.want {
				t.Errorf("%s %s = %d, want %d: %s", tt.method, tt.path, w.Code, tt.want, w.Body)
			}
		})
	}

	w = env.do(t, http.MethodPost, sessionPath+"/complete", alice, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("complete with saved answers = %d %s", w.Code, w.Body)
	}
	w = env.do(t, http.MethodPost, sessionPath+"/complete", alice, nil)
	if w.Code != http.StatusConflict {
		t.Errorf("second complete = %d, want 409", w.Code)
	}
}

func TestAPI_ImportModules(t *testing.T) {
	env := newAPIEnv(t)

	f := excelize.NewFile()
	if _, err := f.NewSheet(services.ModuleSheet); err != nil {
		t.Fatal(err)
	}
	rows := [][]interface{}{
		{"topic", "tier", "min", "max", "title", "checkpoint"},
		{"Loops", "tier1", 0, 49, "Loops refresher", ""},
		{"Sorting", "tier1", 0, 49, "Sorting basics", ""},
	}
	for i := range rows {
		cellName, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(services.ModuleSheet, cellName, &rows[i]); err != nil {
			t.Fatal(err)
		}
	}
	data, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	upload := func(user string) *httptest.ResponseRecorder {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		part, err := mw.CreateFormFile("file", "modules.xlsx")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write(data.Bytes()); err != nil {
			t.Fatal(err)
		}
		if err := mw.Close(); err != nil {
			t.Fatal(err)
		}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/modules/import", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("X-Test-User", user)
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		return w
	}

	if w := upload(alice); w.Code != http.StatusForbidden {
		t.Errorf("student import = %d", w.Code)
	}

	w := upload("tom:teacher")
	if w.Code != http.StatusOK {
		t.Fatalf("import = %d %s", w.Code, w.Body)
	}
	var report models.ImportReport
	decode(t, w, &report)
	if report.Imported != 1 || report.Skipped != 1 || len(report.Errors) != 1 || report.Errors[0].Row != 3 {
		t.Errorf("report = %s", w.Body)
	}
}

func TestAPI_Health(t *testing.T) {
	env := newAPIEnv(t)

	w := env.do(t, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "healthy") {
		t.Errorf("health = %d %s", w.Code, w.Body)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}
