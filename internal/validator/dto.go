package validator

// ModuleImportRow is one row of the module catalog workbook.
type ModuleImportRow struct {
	Topic      string  `json:"topic" validate:"required,max=100"`
	Tier       string  `json:"tier" validate:"required,max=50"`
	Min        float64 `json:"min" validate:"score_pct"`
	Max        float64 `json:"max" validate:"score_pct,gtefield=Min"`
	Title      string  `json:"title" validate:"required,max=200"`
	Order      int     `json:"order" validate:"min=0"`
	Checkpoint bool    `json:"checkpoint"`
	Active     bool    `json:"active"`
}
