package examsession

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/SAP-F-2025/learning-path-service/internal/models"
)

// TokenSource returns the bearer token for the next request.
type TokenSource func(ctx context.Context) (string, error)

// StaticToken always returns token.
func StaticToken(token string) TokenSource {
	return func(context.Context) (string, error) { return token, nil }
}

// StatusError is a non-2xx response from the session API.
type StatusError struct {
	Op      string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Code, e.Message)
}

func (e *StatusError) Unwrap() error {
	switch e.Code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	}
	return nil
}

// RemoteStore talks to the exam session endpoints under /api/v1.
type RemoteStore struct {
	baseURL string
	token   TokenSource
	http    *http.Client
}

type RemoteOption func(*RemoteStore)

func WithHTTPClient(c *http.Client) RemoteOption {
	return func(s *RemoteStore) { s.http = c }
}

func NewRemoteStore(baseURL string, token TokenSource, opts ...RemoteOption) *RemoteStore {
	s := &RemoteStore{
		baseURL: strings.TrimRight(baseURL, "/") + "/api/v1/exam-sessions",
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RemoteStore) Start(ctx context.Context, examID uint, examType models.ExamType) (*models.ExamSession, error) {
	body := models.StartSessionRequest{ExamID: examID, ExamType: examType}
	var out models.SessionResponse
	if err := s.do(ctx, "start session", http.MethodPost, "/start", body, &out); err != nil {
		return nil, err
	}
	if out.Session == nil {
		return nil, errors.New("start session: empty response")
	}
	return out.Session, nil
}

func (s *RemoteStore) Active(ctx context.Context, examType models.ExamType) (*models.ExamSession, error) {
	path := "/active"
	if examType != "" {
		path += "?exam_type=" + url.QueryEscape(string(examType))
	}
	var out models.SessionResponse
	if err := s.do(ctx, "load active session", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Session, nil
}

func (s *RemoteStore) Save(ctx context.Context, session *models.ExamSession) error {
	body := models.SaveProgressRequest{
		CurrentQuestion: session.CurrentQuestion,
		Answers:         session.AnswerMap(),
		TimeLeft:        session.TimeLeft,
	}
	return s.do(ctx, "save progress", http.MethodPut, "/"+url.PathEscape(session.ID)+"/progress", body, nil)
}

func (s *RemoteStore) Complete(ctx context.Context, session *models.ExamSession, finalAnswers map[string]json.RawMessage, timeSpent int) (*models.CompletionResult, error) {
	body := models.CompleteSessionRequest{FinalAnswers: finalAnswers, TimeSpent: timeSpent}
	var out models.CompletionResult
	if err := s.do(ctx, "complete session", http.MethodPost, "/"+url.PathEscape(session.ID)+"/complete", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *RemoteStore) Cancel(ctx context.Context, session *models.ExamSession) error {
	return s.do(ctx, "cancel session", http.MethodDelete, "/"+url.PathEscape(session.ID), nil, nil)
}

func (s *RemoteStore) do(ctx context.Context, op, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if s.token != nil {
		token, err := s.token(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w: %v", op, ErrUnauthorized, err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return statusError(op, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func statusError(op string, resp *http.Response) error {
	e := &StatusError{Op: op, Code: resp.StatusCode}
	var payload struct {
		Message string `json:"message"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if json.Unmarshal(data, &payload) == nil {
		e.Message = payload.Message
	}
	return e
}

var _ SessionStore = (*RemoteStore)(nil)
