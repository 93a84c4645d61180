package scoring

import (
	"log/slog"
	"sort"

	"github.com/SAP-F-2025/learning-path-service/internal/models"
)

const DefaultAdvancedThreshold = 90

// TierResolver is the part of the tier classifier the selector needs.
type TierResolver interface {
	Classify(pct float64) string
	NormalizeKey(raw string) (string, bool)
}

// SelectorPolicy orders two matching candidates; negative means a wins.
type SelectorPolicy func(a, b *models.ModuleVariant) int

// PreferSpecific favors the larger range minimum, then the lexicographically
// larger tier label, then the smaller id so the outcome is always deterministic.
func PreferSpecific(a, b *models.ModuleVariant) int {
	switch {
	case a.ScoreMin > b.ScoreMin:
		return -1
	case a.ScoreMin < b.ScoreMin:
		return 1
	case a.Tier > b.Tier:
		return -1
	case a.Tier < b.Tier:
		return 1
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}

type SkippedTopic = models.SkippedTopic

type Selection struct {
	AssignedIDs   []uint
	AccessibleIDs []uint
	Skipped       []SkippedTopic
}

type ModuleSelector struct {
	tiers             TierResolver
	policy            SelectorPolicy
	advancedThreshold int
	logger            *slog.Logger
}

type SelectorOption func(*ModuleSelector)

func WithPolicy(p SelectorPolicy) SelectorOption {
	return func(s *ModuleSelector) {
		if p != nil {
			s.policy = p
		}
	}
}

func WithAdvancedThreshold(pct int) SelectorOption {
	return func(s *ModuleSelector) {
		if pct > 0 {
			s.advancedThreshold = pct
		}
	}
}

func NewModuleSelector(tiers TierResolver, logger *slog.Logger, opts ...SelectorOption) *ModuleSelector {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ModuleSelector{
		tiers:             tiers,
		policy:            PreferSpecific,
		advancedThreshold: DefaultAdvancedThreshold,
		logger:            logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ModuleSelector) IsAdvanced(overallPct int) bool {
	return overallPct >= s.advancedThreshold
}

// Select picks one module per topic from the given catalog. Inactive and
// checkpoint variants are never assigned. Assigned ids follow topic order.
func (s *ModuleSelector) Select(stats []models.TopicScoreStat, advanced bool, catalog []models.ModuleVariant) Selection {
	candidatesByTopic := make(map[string][]*models.ModuleVariant)
	activeIDs := make([]uint, 0, len(catalog))
	for i := range catalog {
		m := &catalog[i]
		if !m.IsActive {
			continue
		}
		activeIDs = append(activeIDs, m.ID)
		if m.IsCheckpoint {
			continue
		}
		key := NormalizeTopic(m.TopicTitle)
		candidatesByTopic[key] = append(candidatesByTopic[key], m)
	}

	sel := Selection{AssignedIDs: []uint{}}
	seen := make(map[uint]bool)

	for _, st := range stats {
		if st.Total == 0 {
			continue
		}
		pct := float64(st.Pct)
		expected := s.tiers.Classify(pct)

		var matches []*models.ModuleVariant
		for _, m := range candidatesByTopic[st.Key] {
			tier, ok := s.tiers.NormalizeKey(m.Tier)
			if !ok || tier != expected || !m.Contains(pct) {
				continue
			}
			matches = append(matches, m)
		}

		if len(matches) == 0 {
			s.logger.Warn("No module variant for topic",
				"topic", st.Label,
				"topic_key", st.Key,
				"pct", st.Pct,
				"tier", expected)
			sel.Skipped = append(sel.Skipped, SkippedTopic{
				Key:    st.Key,
				Label:  st.Label,
				Pct:    st.Pct,
				Tier:   expected,
				Reason: "no active module variant matches topic, tier and score range",
			})
			continue
		}

		sort.SliceStable(matches, func(i, j int) bool {
			return s.policy(matches[i], matches[j]) < 0
		})
		if len(matches) > 1 {
			s.logger.Debug("Overlapping module variants, applied tie-break",
				"topic_key", st.Key,
				"candidates", len(matches),
				"winner", matches[0].ID)
		}

		winner := matches[0].ID
		if !seen[winner] {
			seen[winner] = true
			sel.AssignedIDs = append(sel.AssignedIDs, winner)
		}
	}

	if advanced {
		sort.Slice(activeIDs, func(i, j int) bool { return activeIDs[i] < activeIDs[j] })
		sel.AccessibleIDs = dedupeIDs(activeIDs)
	} else {
		sel.AccessibleIDs = append([]uint{}, sel.AssignedIDs...)
	}
	return sel
}

func dedupeIDs(ids []uint) []uint {
	out := make([]uint, 0, len(ids))
	for i, id := range ids {
		if i > 0 && ids[i-1] == id {
			continue
		}
		out = append(out, id)
	}
	return out
}
