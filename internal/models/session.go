package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ExamSession tracks one in-progress attempt. At most one row per
// (username, exam_type) is active at a time.
type ExamSession struct {
	ID       string   `json:"id" gorm:"primaryKey;size:36"`
	Username string   `json:"username" gorm:"not null;size:255;uniqueIndex:idx_exam_sessions_one_active,where:is_active = true"`
	ExamID   uint     `json:"exam_id" gorm:"not null;index"`
	ExamType ExamType `json:"exam_type" gorm:"size:50;not null;uniqueIndex:idx_exam_sessions_one_active,where:is_active = true"`

	CurrentQuestion int            `json:"current_question"`
	Answers         datatypes.JSON `json:"answers"`
	TimeLeft        int            `json:"time_left"`  // seconds
	TimeSpent       int            `json:"time_spent"` // seconds

	StartedAt   time.Time `json:"started_at"`
	LastSavedAt time.Time `json:"last_saved_at"`
	IsActive    bool      `json:"is_active" gorm:"index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ExamSession) TableName() string {
	return "exam_sessions"
}

func (s *ExamSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

func (s *ExamSession) AnswerMap() map[string]json.RawMessage {
	answers := map[string]json.RawMessage{}
	if len(s.Answers) > 0 {
		_ = json.Unmarshal(s.Answers, &answers)
	}
	return answers
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s *ExamSession) Clone() *ExamSession {
	if s == nil {
		return nil
	}
	c := *s
	if s.Answers != nil {
		c.Answers = append(datatypes.JSON(nil), s.Answers...)
	}
	return &c
}
