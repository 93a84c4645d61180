package scoring

import (
	"encoding/json"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/SAP-F-2025/learning-path-service/internal/models"
)

const UnknownTopic = "Unknown"

// Classifier maps a percentage to a tier key.
type Classifier interface {
	Classify(pct float64) string
}

type AggregateResult struct {
	// Ordered by normalized topic key.
	TopicStats []models.TopicScoreStat
	OverallPct int
	Correct    int
	Total      int
}

// NormalizeTopic lowercases, trims and collapses inner whitespace.
func NormalizeTopic(label string) string {
	return strings.Join(strings.Fields(strings.ToLower(label)), " ")
}

// Percent returns round(correct/total*100), or 0 for an empty bucket.
func Percent(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(correct) / float64(total) * 100))
}

type bucket struct {
	label   string
	correct int
	total   int
}

// Aggregate scores every question and groups the tallies per topic.
// Overall percentage uses the combined counts, not the mean of topic percentages.
func Aggregate(questions []models.Question, answers map[string]json.RawMessage, classifier Classifier, logger *slog.Logger) AggregateResult {
	if logger == nil {
		logger = slog.Default()
	}

	buckets := make(map[string]*bucket)
	var correct, total int

	for i := range questions {
		q := &questions[i]
		key, label := topicOf(q)
		if label == UnknownTopic {
			logger.Warn("Question has no topic label", "question_id", q.ID, "exam_id", q.ExamID)
		}

		b, ok := buckets[key]
		if !ok {
			b = &bucket{label: label}
			buckets[key] = b
		} else if b.label == UnknownTopic && label != UnknownTopic {
			b.label = label
		}

		b.total++
		total++
		if IsCorrect(q, answers[q.AnswerKey()]) {
			b.correct++
			correct++
		}
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	stats := make([]models.TopicScoreStat, 0, len(keys))
	for _, k := range keys {
		b := buckets[k]
		pct := Percent(b.correct, b.total)
		stats = append(stats, models.TopicScoreStat{
			Key:     k,
			Label:   b.label,
			Correct: b.correct,
			Total:   b.total,
			Pct:     pct,
			Tier:    classifier.Classify(float64(pct)),
		})
	}

	return AggregateResult{
		TopicStats: stats,
		OverallPct: Percent(correct, total),
		Correct:    correct,
		Total:      total,
	}
}

// topicOf returns the bucket key and display label for a question. The key
// comes from the registry key when present, else from the label.
func topicOf(q *models.Question) (string, string) {
	label := strings.TrimSpace(q.TopicLabel)
	if label == "" {
		label = UnknownTopic
	}

	key := NormalizeTopic(q.TopicKey)
	if key == "" {
		key = NormalizeTopic(label)
	}
	return key, label
}
