package postgres

import (
	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-path-service/internal/repositories"
	"github.com/SAP-F-2025/learning-path-service/internal/scoring"
)

// inTransaction reports whether db is bound to an open transaction. Cached
// reads are skipped inside transactions so callers see their own writes.
func inTransaction(db *gorm.DB) bool {
	if db == nil || db.Statement == nil {
		return false
	}
	_, ok := db.Statement.ConnPool.(gorm.TxCommitter)
	return ok
}

// applyModuleFilter narrows a module query. Topic matching happens after the
// query because titles are stored as authored, not normalized.
func applyModuleFilter(query *gorm.DB, filter repositories.ModuleFilter) *gorm.DB {
	query = query.Where("is_active = ?", true)
	if filter.ExcludeCheckpoints {
		query = query.Where("is_checkpoint = ?", false)
	}
	return query.Order("\"order\" ASC").Order("id ASC")
}

func matchesTopic(title, key string) bool {
	return key == "" || scoring.NormalizeTopic(title) == scoring.NormalizeTopic(key)
}
