package validator

import (
	"math"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/SAP-F-2025/learning-path-service/internal/models"
)

// registerBusinessRules registers custom business rule validators
func registerBusinessRules(validate *validator.Validate) {
	// Tier key must belong to the fixed vocabulary
	validate.RegisterValidation("tier_key", func(fl validator.FieldLevel) bool {
		return models.IsAllowedTierKey(strings.TrimSpace(fl.Field().String()))
	})

	validate.RegisterValidation("exam_type", func(fl validator.FieldLevel) bool {
		return models.ExamType(fl.Field().String()).IsValid()
	})

	// Percentage in [0, 100]
	validate.RegisterValidation("score_pct", func(fl validator.FieldLevel) bool {
		v, ok := floatValue(fl)
		return ok && !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0 && v <= 100
	})

	validate.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		v, ok := floatValue(fl)
		return ok && !math.IsNaN(v) && !math.IsInf(v, 0)
	})
}

func floatValue(fl validator.FieldLevel) (float64, bool) {
	field := fl.Field()
	switch {
	case field.CanFloat():
		return field.Float(), true
	case field.CanInt():
		return float64(field.Int()), true
	case field.CanUint():
		return float64(field.Uint()), true
	}
	return 0, false
}
