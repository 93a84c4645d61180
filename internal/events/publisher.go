package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	EventSource  = "learning-path-service"
	EventVersion = "1.0"
)

// Event types
const (
	EventExamCompleted         = "exam.completed"
	EventAssignmentsRecomputed = "assignments.recomputed"
)

// Event is the envelope every published message carries
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	Version   string          `json:"version"`
	Timestamp time.Time       `json:"timestamp"`
	Subject   string          `json:"subject"` // username the event is about
	Data      json.RawMessage `json:"data"`
}

// EventPublisher publishes domain events
type EventPublisher interface {
	Publish(ctx context.Context, eventType, subject string, payload interface{}) error
	Close() error
}

// NewEvent wraps a payload in an envelope
func NewEvent(eventType, subject string, payload interface{}) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    EventSource,
		Version:   EventVersion,
		Timestamp: time.Now().UTC(),
		Subject:   subject,
		Data:      data,
	}, nil
}

// ===== PAYLOADS =====

type ExamCompletedPayload struct {
	ResultID  uint   `json:"result_id"`
	SessionID string `json:"session_id"`
	ExamID    uint   `json:"exam_id"`
	ExamType  string `json:"exam_type"`
	TimeSpent int    `json:"time_spent"`
}

type AssignmentsRecomputedPayload struct {
	OverallPct    int    `json:"overall_pct"`
	AdvancedUser  bool   `json:"advanced_user"`
	AssignedIDs   []uint `json:"assigned_ids"`
	AccessibleIDs []uint `json:"accessible_ids"`
	Changed       bool   `json:"changed"`
	SkippedTopics int    `json:"skipped_topics"`
}
