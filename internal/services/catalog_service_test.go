package services

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/learning-path-service/internal/models"
	"github.com/SAP-F-2025/learning-path-service/internal/testutil"
)

func workbook(t *testing.T, sheet string, rows ...[]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(sheet); err != nil {
		t.Fatal(err)
	}
	for i, row := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow(sheet, cellName, &row); err != nil {
			t.Fatal(err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	return buf
}

func catalogRows() [][]interface{} {
	return [][]interface{}{
		{"Topic", "Tier", "Min", "Max", "Title", "Order", "Checkpoint", "Active"},
		{"loops", "Tier 1", 0, 49, "Loops basics", 1, "", ""},
		{"Loops", "2", "50%", 100, "Loops practice", 2, "no", "yes"},
		{"Recursion", "tier1", 0, 49, "Recursion basics", 3, "", ""},
		{"Functions", "tier9", 0, 49, "Functions basics", 4, "", ""},
		{"Functions", "tier2", 80, 50, "Functions practice", 5, "", ""},
		{},
		{"Functions", "tier1", 0, 100, "Functions checkpoint", 6, "x", ""},
	}
}

func TestCatalogService_Import(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	testutil.SeedExam(t, ctx, env.db, models.ExamTypePreAssessment,
		testutil.QuestionSpec{Topic: "Loops", Correct: "0"},
		testutil.QuestionSpec{Topic: "Functions", Correct: "1"})

	report, err := env.catalog.Import(ctx, workbook(t, ModuleSheet, catalogRows()...))
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if report.Imported != 3 || report.Skipped != 3 {
		t.Errorf("report = %+v", report)
	}

	wantRows := []int{4, 5, 6}
	if len(report.Errors) != len(wantRows) {
		t.Fatalf("row errors = %+v", report.Errors)
	}
	for i, row := range wantRows {
		if report.Errors[i].Row != row {
			t.Errorf("error %d reported on row %d, want %d", i, report.Errors[i].Row, row)
		}
	}

	var stored []models.ModuleVariant
	if err := env.db.Order(`"order"`).Find(&stored).Error; err != nil {
		t.Fatal(err)
	}
	if len(stored) != 3 {
		t.Fatalf("stored modules = %d, want 3", len(stored))
	}
	if stored[0].TopicTitle != "Loops" || stored[0].Tier != "tier1" {
		t.Errorf("first module = %+v", stored[0])
	}
	if stored[1].Tier != "tier2" || stored[1].ScoreMin != 50 || !stored[1].IsActive {
		t.Errorf("second module = %+v", stored[1])
	}
	if !stored[2].IsCheckpoint || stored[2].TopicTitle != "Functions" {
		t.Errorf("checkpoint module = %+v", stored[2])
	}

	// Importing the same workbook again updates in place
	again, err := env.catalog.Import(ctx, workbook(t, ModuleSheet, catalogRows()...))
	if err != nil {
		t.Fatal(err)
	}
	if again.Imported != 3 {
		t.Errorf("re-import = %+v", again)
	}
	if n := countRows(t, env.db, &models.ModuleVariant{}, "1 = 1"); n != 3 {
		t.Errorf("modules after re-import = %d, want 3", n)
	}

	topics := env.catalog.Topics()
	if len(topics) != 2 {
		t.Errorf("Topics() = %v", topics)
	}
}

func TestCatalogService_ImportRejectsWorkbook(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name string
		data *bytes.Buffer
	}{
		{"not a workbook", bytes.NewBufferString("topic,tier\nloops,tier1\n")},
		{"missing sheet", workbook(t, "catalog", []interface{}{"topic", "tier", "min", "max", "title"})},
		{"missing column", workbook(t, ModuleSheet, []interface{}{"topic", "tier", "min", "title"})},
		{"empty sheet", workbook(t, ModuleSheet)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.catalog.Import(ctx, tt.data); !errors.Is(err, ErrInvalidWorkbook) {
				t.Errorf("Import() error = %v, want ErrInvalidWorkbook", err)
			}
		})
	}
}

func TestParseCells(t *testing.T) {
	floats := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"49", 49, false},
		{"49.5%", 49.5, false},
		{"", 0, true},
		{"half", 0, true},
	}
	for _, tt := range floats {
		got, err := parseFloatCell(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseFloatCell(%q) = %v, %v", tt.in, got, err)
		}
	}

	bools := []struct {
		in      string
		def     bool
		want    bool
		wantErr bool
	}{
		{"", true, true, false},
		{"", false, false, false},
		{"Yes", false, true, false},
		{"x", false, true, false},
		{"0", true, false, false},
		{"maybe", false, false, true},
	}
	for _, tt := range bools {
		got, err := parseBoolCell(tt.in, tt.def)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseBoolCell(%q, %v) = %v, %v", tt.in, tt.def, got, err)
		}
	}
}
