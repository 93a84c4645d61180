package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/SAP-F-2025/learning-path-service/internal/models"
	"github.com/SAP-F-2025/learning-path-service/internal/validator"
)

// TierSource loads the configured tier table.
type TierSource interface {
	FindAllTierRanges(ctx context.Context) ([]models.TierRange, error)
}

type TierSourceFunc func(ctx context.Context) ([]models.TierRange, error)

func (f TierSourceFunc) FindAllTierRanges(ctx context.Context) ([]models.TierRange, error) {
	return f(ctx)
}

type tierTable struct {
	ranges []models.TierRange
	byKey  map[string]models.TierRange
}

func newTierTable(ranges []models.TierRange) *tierTable {
	sorted := append([]models.TierRange(nil), ranges...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Min != sorted[j].Min {
			return sorted[i].Min < sorted[j].Min
		}
		return sorted[i].Key < sorted[j].Key
	})

	t := &tierTable{ranges: sorted, byKey: make(map[string]models.TierRange, len(sorted))}
	for _, r := range sorted {
		t.byKey[r.Key] = r
	}
	return t
}

// TierClassifier maps percentages to tier keys. The table is swapped as a
// whole on refresh, so readers never observe a partially loaded table.
type TierClassifier struct {
	source    TierSource
	validator *validator.Validator
	logger    *slog.Logger

	table atomic.Pointer[tierTable]
	group singleflight.Group
}

func NewTierClassifier(source TierSource, v *validator.Validator, logger *slog.Logger) *TierClassifier {
	if logger == nil {
		logger = slog.Default()
	}
	if v == nil {
		v = validator.New()
	}
	c := &TierClassifier{source: source, validator: v, logger: logger}
	c.table.Store(newTierTable(models.DefaultTierRanges()))
	return c
}

// Classify returns the key of the first range containing pct.
func (c *TierClassifier) Classify(pct float64) string {
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		pct = 0
	}
	pct = math.Max(0, math.Min(100, pct))

	t := c.table.Load()
	for _, r := range t.ranges {
		if r.Contains(pct) {
			return r.Key
		}
	}
	return c.lowestKey(t)
}

func (c *TierClassifier) lowestKey(t *tierTable) string {
	if len(t.ranges) == 0 {
		return string(models.Tier1)
	}
	return t.ranges[0].Key
}

// Refresh reloads the table from the source. Concurrent callers share one load.
// On a source error the current table is kept.
func (c *TierClassifier) Refresh(ctx context.Context) ([]models.TierRange, error) {
	if c.source == nil {
		return c.Ranges(), nil
	}

	v, err, _ := c.group.Do("tiers", func() (interface{}, error) {
		rows, err := c.source.FindAllTierRanges(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load tier ranges: %w", err)
		}

		valid := c.validRows(rows)
		if len(valid) == 0 {
			c.logger.Warn("No valid tier ranges configured, using defaults", "rows", len(rows))
			valid = models.DefaultTierRanges()
		}

		t := newTierTable(valid)
		c.table.Store(t)
		c.logger.Info("Tier table refreshed", "ranges", len(t.ranges))
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]models.TierRange(nil), v.(*tierTable).ranges...), nil
}

func (c *TierClassifier) validRows(rows []models.TierRange) []models.TierRange {
	valid := make([]models.TierRange, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for _, r := range rows {
		r.Key = strings.TrimSpace(strings.ToLower(r.Key))
		r.Label = strings.TrimSpace(r.Label)
		if err := c.validator.Validate(&r); err != nil {
			c.logger.Warn("Ignoring invalid tier range", "key", r.Key, "label", r.Label, "error", err)
			continue
		}
		if seen[r.Key] {
			c.logger.Warn("Ignoring duplicate tier range", "key", r.Key)
			continue
		}
		seen[r.Key] = true
		valid = append(valid, r)
	}
	return valid
}

// Ranges returns a copy of the active table, ordered by lower bound.
func (c *TierClassifier) Ranges() []models.TierRange {
	return append([]models.TierRange(nil), c.table.Load().ranges...)
}

// Label returns the display label for a tier key, or the key itself.
func (c *TierClassifier) Label(key string) string {
	if r, ok := c.table.Load().byKey[key]; ok {
		return r.Label
	}
	return key
}

// NormalizeKey resolves "tier 2", "Tier 2", "TIER_2", "tier2", "2" or a
// stored label to the canonical key.
func (c *TierClassifier) NormalizeKey(raw string) (string, bool) {
	t := c.table.Load()

	compact := compactTier(raw)
	if compact == "" {
		return "", false
	}
	if _, ok := t.byKey[compact]; ok {
		return compact, true
	}
	if isDigits(compact) {
		if _, ok := t.byKey["tier"+compact]; ok {
			return "tier" + compact, true
		}
	}
	for _, r := range t.ranges {
		if compactTier(r.Label) == compact {
			return r.Key, true
		}
	}
	return "", false
}

func compactTier(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-', '\t':
			return -1
		}
		return r
	}, s)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
