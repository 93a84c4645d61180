package models

import (
	"encoding/json"
	"time"
)

// ===== EXAM SESSION WIRE TYPES =====

type StartSessionRequest struct {
	ExamID   uint     `json:"exam_id" validate:"required"`
	ExamType ExamType `json:"exam_type" validate:"omitempty,exam_type"`
}

type SaveProgressRequest struct {
	CurrentQuestion int                        `json:"current_question" validate:"min=0"`
	Answers         map[string]json.RawMessage `json:"answers"`
	TimeLeft        int                        `json:"time_left" validate:"min=0"`
}

type CompleteSessionRequest struct {
	FinalAnswers map[string]json.RawMessage `json:"final_answers"`
	TimeSpent    int                        `json:"time_spent" validate:"min=0"`
}

type SessionResponse struct {
	Session *ExamSession `json:"session"`
}

// AssignmentSummary is what a completion or recompute hands back to the caller.
type AssignmentSummary struct {
	TopicStats    []TopicScoreStat `json:"topic_stats"`
	OverallPct    int              `json:"overall_pct"`
	AdvancedUser  bool             `json:"advanced_user"`
	AssignedIDs   []uint           `json:"assigned_ids"`
	AccessibleIDs []uint           `json:"accessible_ids"`
	Changed       bool             `json:"changed"`
	// Topics that had no matching module variant
	Skipped []SkippedTopic `json:"skipped,omitempty"`
}

type SkippedTopic struct {
	Key    string `json:"key"`
	Label  string `json:"label"`
	Pct    int    `json:"pct"`
	Tier   string `json:"tier"`
	Reason string `json:"reason"`
}

type CompletionResult struct {
	Result     *ExamResult        `json:"result"`
	Assignment *AssignmentSummary `json:"assignment,omitempty"`
}

// ===== EXAM CONTENT =====

// PublicQuestion is a question as shown to a test taker, without its answer.
type PublicQuestion struct {
	ID         uint     `json:"id"`
	Text       string   `json:"text"`
	Options    []string `json:"options"`
	TopicLabel string   `json:"topic_label"`
	Order      int      `json:"order"`
}

type PublicExam struct {
	ID           uint             `json:"id"`
	Title        string           `json:"title"`
	ExamType     ExamType         `json:"exam_type"`
	TimeLimit    int              `json:"time_limit"`
	PassingScore int              `json:"passing_score"`
	Questions    []PublicQuestion `json:"questions"`
}

func NewPublicExam(exam *Exam) *PublicExam {
	out := &PublicExam{
		ID:           exam.ID,
		Title:        exam.Title,
		ExamType:     exam.ExamType,
		TimeLimit:    exam.TimeLimit,
		PassingScore: exam.PassingScore,
		Questions:    make([]PublicQuestion, 0, len(exam.Questions)),
	}
	for _, q := range exam.Questions {
		out.Questions = append(out.Questions, PublicQuestion{
			ID:         q.ID,
			Text:       q.Text,
			Options:    append([]string(nil), q.Options...),
			TopicLabel: q.TopicLabel,
			Order:      q.Order,
		})
	}
	return out
}

// ===== PROGRESS =====

type ProgressResponse struct {
	Username                  string           `json:"username"`
	TopicScores               []TopicScoreStat `json:"topic_scores"`
	LegacyTopicScores         map[string]int   `json:"legacy_topic_scores"`
	OverallScore              int              `json:"overall_score"`
	AdvancedUser              bool             `json:"advanced_user"`
	AssignedModuleIDs         []uint           `json:"assigned_module_ids"`
	AccessibleModuleIDs       []uint           `json:"accessible_module_ids"`
	CompletedModuleIDs        []uint           `json:"completed_module_ids"`
	HasCompletedPreAssessment bool             `json:"has_completed_pre_assessment"`
	PreAssessmentCompletedAt  *time.Time       `json:"pre_assessment_completed_at"`
	LastRecomputedAt          *time.Time       `json:"last_recomputed_at"`
}

type ModuleView struct {
	ModuleVariant
	Assigned  bool `json:"assigned"`
	Completed bool `json:"completed"`
}

// ===== CATALOG IMPORT =====

type ImportRowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

type ImportReport struct {
	Imported int              `json:"imported"`
	Skipped  int              `json:"skipped"`
	Errors   []ImportRowError `json:"errors"`
}
