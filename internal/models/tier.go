package models

import "time"

type TierKey string

const (
	Tier1 TierKey = "tier1"
	Tier2 TierKey = "tier2"
	Tier3 TierKey = "tier3"
)

// AllowedTierKeys is the fixed vocabulary a stored tier row may use.
var AllowedTierKeys = []TierKey{Tier1, Tier2, Tier3}

func IsAllowedTierKey(key string) bool {
	for _, k := range AllowedTierKeys {
		if string(k) == key {
			return true
		}
	}
	return false
}

// TierRange maps an inclusive percentage interval to a performance tier.
type TierRange struct {
	ID    uint    `json:"-" gorm:"primaryKey"`
	Key   string  `json:"key" gorm:"column:tier_key;size:20;not null;uniqueIndex" validate:"required,tier_key"`
	Label string  `json:"label" gorm:"size:50;not null" validate:"required"`
	Min   float64 `json:"min" gorm:"column:min_pct;not null" validate:"finite"`
	Max   float64 `json:"max" gorm:"column:max_pct;not null" validate:"finite,gtefield=Min"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (TierRange) TableName() string {
	return "tier_ranges"
}

func (r TierRange) Contains(pct float64) bool {
	return pct >= r.Min && pct <= r.Max
}

// DefaultTierRanges is used whenever the store is empty or holds no valid row.
func DefaultTierRanges() []TierRange {
	return []TierRange{
		{Key: string(Tier1), Label: "Tier 1", Min: 0, Max: 49},
		{Key: string(Tier2), Label: "Tier 2", Min: 50, Max: 100},
	}
}
