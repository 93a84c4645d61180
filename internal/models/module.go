package models

import "time"

// ModuleVariant is one concrete learning module for a (topic, tier, score range).
type ModuleVariant struct {
	ID           uint    `json:"id" gorm:"primaryKey"`
	TopicTitle   string  `json:"topic_title" gorm:"not null;size:100;uniqueIndex:idx_module_variant_identity,priority:1"`
	Tier         string  `json:"tier" gorm:"not null;size:50;uniqueIndex:idx_module_variant_identity,priority:2"`
	ScoreMin     float64 `json:"score_min"`
	ScoreMax     float64 `json:"score_max"`
	IsActive     bool    `json:"is_active" gorm:"index"`
	IsCheckpoint bool    `json:"is_checkpoint" gorm:"default:false"`
	Title        string  `json:"title" gorm:"not null;size:200;uniqueIndex:idx_module_variant_identity,priority:3"`
	Order        int     `json:"order" gorm:"default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ModuleVariant) TableName() string {
	return "module_variants"
}

func (m ModuleVariant) Contains(pct float64) bool {
	return pct >= m.ScoreMin && pct <= m.ScoreMax
}
