package testutil

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-path-service/internal/models"
)

// QuestionSpec describes one seeded question; Correct is raw JSON.
type QuestionSpec struct {
	Topic   string
	Correct string
	Options []string
}

func SeedExam(tb testing.TB, ctx context.Context, db *gorm.DB, examType models.ExamType, questions ...QuestionSpec) *models.Exam {
	tb.Helper()
	exam := &models.Exam{
		Title:        "Programming basics",
		ExamType:     examType,
		TimeLimit:    30,
		PassingScore: 60,
		IsActive:     true,
	}
	for i, q := range questions {
		options := q.Options
		if options == nil {
			options = []string{"A1", "B1", "C1", "D1"}
		}
		exam.Questions = append(exam.Questions, models.Question{
			Text:          "Question",
			Options:       datatypes.JSONSlice[string](options),
			CorrectAnswer: datatypes.JSON(q.Correct),
			TopicLabel:    q.Topic,
			Order:         i + 1,
		})
	}
	if err := db.WithContext(ctx).Create(exam).Error; err != nil {
		tb.Fatalf("seed exam: %v", err)
	}
	return exam
}

// SeedResult stores a result whose answers are given in question order.
func SeedResult(tb testing.TB, ctx context.Context, db *gorm.DB, username string, exam *models.Exam, createdAt time.Time, answers ...string) *models.ExamResult {
	tb.Helper()
	raw := map[string]json.RawMessage{}
	for i, a := range answers {
		if i >= len(exam.Questions) || a == "" {
			continue
		}
		raw[exam.Questions[i].AnswerKey()] = json.RawMessage(a)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		tb.Fatalf("encode answers: %v", err)
	}
	result := &models.ExamResult{
		Username:  username,
		ExamID:    exam.ID,
		ExamType:  exam.ExamType,
		Answers:   datatypes.JSON(data),
		TimeSpent: 600,
		CreatedAt: createdAt,
	}
	if err := db.WithContext(ctx).Create(result).Error; err != nil {
		tb.Fatalf("seed result: %v", err)
	}
	return result
}

func Module(topic, tier string, min, max float64, title string) models.ModuleVariant {
	return models.ModuleVariant{
		TopicTitle: topic,
		Tier:       tier,
		ScoreMin:   min,
		ScoreMax:   max,
		IsActive:   true,
		Title:      title,
	}
}

func SeedModules(tb testing.TB, ctx context.Context, db *gorm.DB, modules ...models.ModuleVariant) []models.ModuleVariant {
	tb.Helper()
	if len(modules) == 0 {
		return nil
	}
	if err := db.WithContext(ctx).Create(&modules).Error; err != nil {
		tb.Fatalf("seed modules: %v", err)
	}
	return modules
}
