package readiness

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/JaimeStill/binder/internal/sections"
)

const (
	readinessSheet = "Readiness"
	sectionsSheet  = "Sections"
)

// Export writes an xlsx workbook with a Readiness sheet (one row per group
// plus an overall row) and a Sections sheet listing every section.
func Export(w io.Writer, title string, secs []sections.Section) error {
	report := Compute(secs)

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", readinessSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(sectionsSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("total style: %w", err)
	}

	f.SetCellValue(readinessSheet, "A1", title)
	f.SetCellStyle(readinessSheet, "A1", "A1", bold)

	cols := []any{"Group", "Complete", "In Progress", "Not Started", "Not Applicable", "Total", "Percent"}
	if err := writeRow(f, readinessSheet, 3, cols, header); err != nil {
		return err
	}

	row := 4
	for _, g := range report.Groups {
		if err := writeRow(f, readinessSheet, row, summaryRow(string(g.Group), g), 0); err != nil {
			return err
		}
		row++
	}
	if err := writeRow(f, readinessSheet, row, summaryRow("Overall", report.Overall), bold); err != nil {
		return err
	}
	f.SetColWidth(readinessSheet, "A", "A", 24)
	f.SetColWidth(readinessSheet, "B", "G", 14)

	if err := writeRow(f, sectionsSheet, 1, []any{"Number", "Title", "Group", "Status"}, header); err != nil {
		return err
	}
	for i, s := range secs {
		vals := []any{s.DocNumber, s.Title, string(s.Group), string(s.Status)}
		if err := writeRow(f, sectionsSheet, i+2, vals, 0); err != nil {
			return err
		}
	}
	f.SetColWidth(sectionsSheet, "B", "B", 40)
	f.SetColWidth(sectionsSheet, "C", "D", 20)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func summaryRow(label string, s Summary) []any {
	return []any{label, s.Complete, s.InProgress, s.NotStarted, s.NotApplicable, s.Total, s.Percent}
}

func writeRow(f *excelize.File, sheet string, row int, vals []any, style int) error {
	start, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, start, &vals); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	if style == 0 {
		return nil
	}
	end, _ := excelize.CoordinatesToCellName(len(vals), row)
	return f.SetCellStyle(sheet, start, end, style)
}
