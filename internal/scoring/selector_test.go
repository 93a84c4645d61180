package scoring

import (
	"reflect"
	"testing"

	"github.com/SAP-F-2025/learning-path-service/internal/models"
)

func variant(id uint, topic, tier string, min, max float64) models.ModuleVariant {
	return models.ModuleVariant{
		ID:         id,
		TopicTitle: topic,
		Tier:       tier,
		ScoreMin:   min,
		ScoreMax:   max,
		IsActive:   true,
		Title:      topic + " " + tier,
	}
}

func catalog() []models.ModuleVariant {
	checkpoint := variant(9, "Loops", "tier2", 0, 100)
	checkpoint.IsCheckpoint = true
	inactive := variant(10, "Loops", "tier2", 50, 100)
	inactive.IsActive = false

	return []models.ModuleVariant{
		variant(1, "Loops", "tier1", 0, 49),
		variant(2, "Loops", "Tier 2", 50, 100),
		variant(3, "Functions", "tier1", 0, 49),
		variant(4, "Functions", "TIER_2", 50, 100),
		variant(5, "Arrays", "tier1", 0, 49),
		checkpoint,
		inactive,
	}
}

func TestModuleSelector_AssignsOnePerTopic(t *testing.T) {
	c := NewTierClassifier(nil, nil, testLogger())
	s := NewModuleSelector(c, testLogger())

	stats := []models.TopicScoreStat{
		{Key: "functions", Label: "Functions", Correct: 0, Total: 2, Pct: 0, Tier: "tier1"},
		{Key: "loops", Label: "Loops", Correct: 2, Total: 3, Pct: 67, Tier: "tier2"},
	}
	sel := s.Select(stats, s.IsAdvanced(40), catalog())

	if want := []uint{3, 2}; !reflect.DeepEqual(sel.AssignedIDs, want) {
		t.Errorf("AssignedIDs = %v, want %v", sel.AssignedIDs, want)
	}
	if !reflect.DeepEqual(sel.AccessibleIDs, sel.AssignedIDs) {
		t.Errorf("AccessibleIDs = %v, want assigned %v", sel.AccessibleIDs, sel.AssignedIDs)
	}
	if len(sel.Skipped) != 0 {
		t.Errorf("unexpected skipped topics %+v", sel.Skipped)
	}
}

func TestModuleSelector_AdvancedUnlocksCatalog(t *testing.T) {
	c := NewTierClassifier(nil, nil, testLogger())
	s := NewModuleSelector(c, testLogger())

	if !s.IsAdvanced(95) {
		t.Fatal("95 should be advanced")
	}
	if s.IsAdvanced(89) {
		t.Fatal("89 should not be advanced")
	}

	stats := []models.TopicScoreStat{
		{Key: "loops", Label: "Loops", Correct: 19, Total: 20, Pct: 95},
	}
	sel := s.Select(stats, true, catalog())

	if want := []uint{2}; !reflect.DeepEqual(sel.AssignedIDs, want) {
		t.Errorf("AssignedIDs = %v, want %v", sel.AssignedIDs, want)
	}
	// Every active module, checkpoints included, inactive excluded.
	if want := []uint{1, 2, 3, 4, 5, 9}; !reflect.DeepEqual(sel.AccessibleIDs, want) {
		t.Errorf("AccessibleIDs = %v, want %v", sel.AccessibleIDs, want)
	}
}

func TestModuleSelector_AdvancedThresholdOption(t *testing.T) {
	s := NewModuleSelector(NewTierClassifier(nil, nil, testLogger()), testLogger(), WithAdvancedThreshold(80))
	if !s.IsAdvanced(80) {
		t.Error("80 should be advanced with threshold 80")
	}
}

func TestModuleSelector_SkipsTopicWithoutMatch(t *testing.T) {
	c := NewTierClassifier(nil, nil, testLogger())
	s := NewModuleSelector(c, testLogger())

	stats := []models.TopicScoreStat{
		{Key: "arrays", Label: "Arrays", Correct: 4, Total: 4, Pct: 100},
		{Key: "graphs", Label: "Graphs", Correct: 0, Total: 1, Pct: 0},
		{Key: "loops", Label: "Loops", Correct: 0, Total: 1, Pct: 0},
	}
	sel := s.Select(stats, false, catalog())

	if want := []uint{1}; !reflect.DeepEqual(sel.AssignedIDs, want) {
		t.Errorf("AssignedIDs = %v, want %v", sel.AssignedIDs, want)
	}
	if len(sel.Skipped) != 2 || sel.Skipped[0].Key != "arrays" || sel.Skipped[1].Key != "graphs" {
		t.Errorf("Skipped = %+v", sel.Skipped)
	}
}

func TestModuleSelector_TieBreak(t *testing.T) {
	c := NewTierClassifier(nil, nil, testLogger())

	mods := []models.ModuleVariant{
		variant(20, "Loops", "tier2", 50, 100),
		variant(21, "Loops", "tier2", 60, 100),
		variant(22, "Loops", "tier2", 60, 90),
	}
	stats := []models.TopicScoreStat{{Key: "loops", Label: "Loops", Correct: 7, Total: 10, Pct: 70}}

	sel := NewModuleSelector(c, testLogger()).Select(stats, false, mods)
	if want := []uint{21}; !reflect.DeepEqual(sel.AssignedIDs, want) {
		t.Errorf("PreferSpecific picked %v, want %v", sel.AssignedIDs, want)
	}

	// Input order never changes the winner.
	reversed := []models.ModuleVariant{mods[2], mods[1], mods[0]}
	sel = NewModuleSelector(c, testLogger()).Select(stats, false, reversed)
	if want := []uint{21}; !reflect.DeepEqual(sel.AssignedIDs, want) {
		t.Errorf("reversed catalog picked %v, want %v", sel.AssignedIDs, want)
	}

	lowestID := func(a, b *models.ModuleVariant) int { return int(a.ID) - int(b.ID) }
	sel = NewModuleSelector(c, testLogger(), WithPolicy(lowestID)).Select(stats, false, reversed)
	if want := []uint{20}; !reflect.DeepEqual(sel.AssignedIDs, want) {
		t.Errorf("custom policy picked %v, want %v", sel.AssignedIDs, want)
	}
}

// Every assigned module matches its topic, tier and range, and no topic is
// assigned twice.
func TestModuleSelector_AssignmentsRespectRanges(t *testing.T) {
	c := NewTierClassifier(nil, nil, testLogger())
	s := NewModuleSelector(c, testLogger())
	cat := catalog()
	byID := map[uint]models.ModuleVariant{}
	for _, m := range cat {
		byID[m.ID] = m
	}

	for pct := 0; pct <= 100; pct += 5 {
		stats := []models.TopicScoreStat{
			{Key: "functions", Label: "Functions", Total: 1, Pct: pct},
			{Key: "loops", Label: "Loops", Total: 1, Pct: pct},
		}
		sel := s.Select(stats, false, cat)

		topics := map[string]bool{}
		for _, id := range sel.AssignedIDs {
			m := byID[id]
			if !m.IsActive || m.IsCheckpoint {
				t.Errorf("pct %d: assigned inactive or checkpoint module %d", pct, id)
			}
			if !m.Contains(float64(pct)) {
				t.Errorf("pct %d: module %d range [%v,%v] does not contain score", pct, id, m.ScoreMin, m.ScoreMax)
			}
			tier, _ := c.NormalizeKey(m.Tier)
			if tier != c.Classify(float64(pct)) {
				t.Errorf("pct %d: module %d tier %s, want %s", pct, id, tier, c.Classify(float64(pct)))
			}
			key := NormalizeTopic(m.TopicTitle)
			if topics[key] {
				t.Errorf("pct %d: topic %s assigned twice", pct, key)
			}
			topics[key] = true
		}
	}
}

func TestModuleSelector_Deterministic(t *testing.T) {
	c := NewTierClassifier(nil, nil, testLogger())
	s := NewModuleSelector(c, testLogger())
	stats := []models.TopicScoreStat{
		{Key: "functions", Label: "Functions", Total: 2, Pct: 50},
		{Key: "loops", Label: "Loops", Total: 3, Pct: 33},
	}

	first := s.Select(stats, false, catalog())
	for i := 0; i < 10; i++ {
		again := s.Select(stats, false, catalog())
		if !reflect.DeepEqual(first.AssignedIDs, again.AssignedIDs) {
			t.Fatalf("run %d: %v != %v", i, again.AssignedIDs, first.AssignedIDs)
		}
	}
}
