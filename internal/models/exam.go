package models

import (
	"encoding/json"
	"strconv"
	"time"

	"gorm.io/datatypes"
)

type ExamType string

const (
	ExamTypePreAssessment  ExamType = "pre_assessment"
	ExamTypePostAssessment ExamType = "post_assessment"
)

const DefaultExamType = ExamTypePreAssessment

func (t ExamType) IsValid() bool {
	return t == ExamTypePreAssessment || t == ExamTypePostAssessment
}

// OrDefault returns the default exam type for an empty value.
func (t ExamType) OrDefault() ExamType {
	if t == "" {
		return DefaultExamType
	}
	return t
}

type Exam struct {
	ID           uint     `json:"id" gorm:"primaryKey"`
	Title        string   `json:"title" gorm:"not null;size:200"`
	ExamType     ExamType `json:"exam_type" gorm:"size:50;not null;index;default:pre_assessment"`
	TimeLimit    int      `json:"time_limit"` // minutes
	PassingScore int      `json:"passing_score"`
	IsActive     bool     `json:"is_active" gorm:"index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Questions []Question `json:"questions" gorm:"foreignKey:ExamID"`
}

func (Exam) TableName() string {
	return "exams"
}

type Question struct {
	ID     uint   `json:"id" gorm:"primaryKey"`
	ExamID uint   `json:"exam_id" gorm:"not null;index"`
	Text   string `json:"text" gorm:"type:text;not null"`

	Options datatypes.JSONSlice[string] `json:"options"`
	// Raw JSON: an index, a letter code or the option text.
	CorrectAnswer datatypes.JSON `json:"-" gorm:"type:text"`

	// TopicKey is the registry key; TopicLabel is the display label.
	// Either may be empty on legacy content.
	TopicKey   string `json:"topic_key" gorm:"size:100;index"`
	TopicLabel string `json:"topic_label" gorm:"size:100"`
	Order      int    `json:"order" gorm:"default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Question) TableName() string {
	return "questions"
}

// AnswerKey is the key a question's answer is stored under in answer maps.
func (q Question) AnswerKey() string {
	return strconv.FormatUint(uint64(q.ID), 10)
}

func (q Question) CorrectAnswerRaw() json.RawMessage {
	return json.RawMessage(q.CorrectAnswer)
}
