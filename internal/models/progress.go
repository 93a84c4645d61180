package models

import (
	"time"

	"gorm.io/datatypes"
)

// TopicScoreStat is derived by a recomputation pass and only stored inside UserProgress.
type TopicScoreStat struct {
	Key     string `json:"key"`
	Label   string `json:"label"`
	Correct int    `json:"correct"`
	Total   int    `json:"total"`
	Pct     int    `json:"pct"`
	Tier    string `json:"tier"`
}

// TopicScores is keyed by the normalized topic label.
type TopicScores map[string]TopicScoreStat

type UserProgress struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	Username string `json:"username" gorm:"not null;size:255;uniqueIndex"`

	TopicScores datatypes.JSONType[TopicScores] `json:"topic_scores"`
	// {label: pct} mirror read by older clients
	LegacyTopicScores datatypes.JSONType[map[string]int] `json:"legacy_topic_scores"`
	OverallScore      int                                `json:"overall_score"`
	AdvancedUser      bool                               `json:"advanced_user"`

	AssignedModuleIDs   datatypes.JSONSlice[uint] `json:"assigned_module_ids"`
	AccessibleModuleIDs datatypes.JSONSlice[uint] `json:"accessible_module_ids"`
	CompletedModuleIDs  datatypes.JSONSlice[uint] `json:"completed_module_ids"`

	HasCompletedPreAssessment bool       `json:"has_completed_pre_assessment"`
	PreAssessmentCompletedAt  *time.Time `json:"pre_assessment_completed_at"`
	LastRecomputedAt          *time.Time `json:"last_recomputed_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (UserProgress) TableName() string {
	return "user_progress"
}
