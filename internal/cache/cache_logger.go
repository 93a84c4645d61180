package cache

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SAP-F-2025/learning-path-service/internal/models"
)

// SafeInvalidatePattern safely invalidates cache pattern with logging
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", pattern)
	}
}

// SafeDelete safely deletes cache keys with logging
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

func ActiveSessionKey(username string, examType models.ExamType) string {
	return fmt.Sprintf("active:%s:%s", username, examType)
}

func ProgressKey(username string) string {
	return fmt.Sprintf("user:%s", username)
}

func ActiveExamKey(examType models.ExamType) string {
	return fmt.Sprintf("active:%s", examType)
}

// InvalidateSessionCache drops every cached active-session lookup for a user.
// Keys are deleted by name; a username may contain glob metacharacters.
func InvalidateSessionCache(ctx context.Context, cm *CacheManager, username string) {
	SafeDelete(ctx, cm.Session,
		ActiveSessionKey(username, models.ExamTypePreAssessment),
		ActiveSessionKey(username, models.ExamTypePostAssessment))
}

// InvalidateModuleCache drops cached catalog listings
func InvalidateModuleCache(ctx context.Context, cm *CacheManager) {
	SafeInvalidatePattern(ctx, cm.Module, "list:*")
}

func InvalidateProgressCache(ctx context.Context, cm *CacheManager, username string) {
	SafeDelete(ctx, cm.Progress, ProgressKey(username))
}

// InvalidateExamCache drops the active exam lookups
func InvalidateExamCache(ctx context.Context, cm *CacheManager) {
	SafeInvalidatePattern(ctx, cm.Exam, "active:*")
}
