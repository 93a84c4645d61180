package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// ExamResult is written once when a session completes and never updated.
type ExamResult struct {
	ID        uint     `json:"id" gorm:"primaryKey"`
	Username  string   `json:"username" gorm:"not null;size:255;index:idx_results_user_created,priority:1"`
	ExamID    uint     `json:"exam_id" gorm:"not null;index"`
	ExamType  ExamType `json:"exam_type" gorm:"size:50;not null"`
	SessionID string   `json:"session_id" gorm:"size:36;index"`

	// questionID -> raw answer
	Answers   datatypes.JSON `json:"answers"`
	TimeSpent int            `json:"time_spent"` // seconds

	CreatedAt time.Time `json:"created_at" gorm:"index:idx_results_user_created,priority:2"`
}

func (ExamResult) TableName() string {
	return "exam_results"
}

func (r *ExamResult) AnswerMap() (map[string]json.RawMessage, error) {
	answers := map[string]json.RawMessage{}
	if len(r.Answers) == 0 {
		return answers, nil
	}
	if err := json.Unmarshal(r.Answers, &answers); err != nil {
		return map[string]json.RawMessage{}, fmt.Errorf("decode answers of result %d: %w", r.ID, err)
	}
	return answers, nil
}

func EncodeAnswers(answers map[string]json.RawMessage) (datatypes.JSON, error) {
	if answers == nil {
		answers = map[string]json.RawMessage{}
	}
	data, err := json.Marshal(answers)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}
