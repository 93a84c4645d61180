package services

import (
	"context"
	"errors"
	"testing"

	"github.com/SAP-F-2025/learning-path-service/internal/models"
)

func TestTierService_Replace(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ranges, err := env.tiers.Replace(ctx, []models.TierRange{
		{Key: " Tier1 ", Label: "Beginner", Min: 0, Max: 39},
		{Key: "tier2", Label: "Intermediate", Min: 40, Max: 79},
		{Key: "tier3", Label: "Advanced", Min: 80, Max: 100},
	})
	if err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if len(ranges) != 3 || ranges[0].Key != "tier1" {
		t.Fatalf("ranges = %+v", ranges)
	}

	classifier := env.tiers.Classifier()
	tests := []struct {
		pct  float64
		want string
	}{
		{0, "tier1"},
		{39.5, "tier1"},
		{40, "tier2"},
		{85, "tier3"},
	}
	for _, tt := range tests {
		if got := classifier.Classify(tt.pct); got != tt.want {
			t.Errorf("Classify(%v) = %s, want %s", tt.pct, got, tt.want)
		}
	}
	if key, ok := classifier.NormalizeKey("Advanced"); !ok || key != "tier3" {
		t.Errorf("NormalizeKey(Advanced) = %q, %v", key, ok)
	}

	if n := countRows(t, env.db, &models.TierRange{}, "1 = 1"); n != 3 {
		t.Errorf("stored ranges = %d, want 3", n)
	}
}

func TestTierService_ReplaceRejectsInvalidTable(t *testing.T) {
	tests := []struct {
		name   string
		ranges []models.TierRange
		field  string
	}{
		{
			name: "unknown key",
			ranges: []models.TierRange{
				{Key: "gold", Label: "Gold", Min: 0, Max: 100},
			},
			field: "ranges[0].Key",
		},
		{
			name: "inverted bounds",
			ranges: []models.TierRange{
				{Key: "tier1", Label: "Tier 1", Min: 0, Max: 49},
				{Key: "tier2", Label: "Tier 2", Min: 80, Max: 50},
			},
			field: "ranges[1].Max",
		},
		{
			name: "duplicate key",
			ranges: []models.TierRange{
				{Key: "tier1", Label: "Tier 1", Min: 0, Max: 49},
				{Key: "TIER1", Label: "Again", Min: 50, Max: 100},
			},
			field: "ranges[1].Key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			_, err := env.tiers.Replace(context.Background(), tt.ranges)

			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("Replace() error = %v, want validation errors", err)
			}
			found := false
			for _, fe := range verrs {
				if fe.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("errors = %+v, want field %s", verrs, tt.field)
			}

			// The default table stays in place
			if got := env.tiers.Classifier().Classify(75); got != "tier2" {
				t.Errorf("Classify(75) = %s after rejected replace", got)
			}
		})
	}

	t.Run("empty table", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.tiers.Replace(context.Background(), nil)
		var rule *BusinessRuleError
		if !errors.As(err, &rule) {
			t.Errorf("Replace(nil) error = %v", err)
		}
	})
}
