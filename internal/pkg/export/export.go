package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Table is a titled grid rendered by the exporters. Cells may be strings, numbers or
// decimals.
type Table struct {
	Title    string
	Subtitle []string
	Headers  []string
	Rows     [][]any
	Footer   []any
}

const sheetName = "Report"

// XLSX renders t as a single-sheet workbook.
func XLSX(t Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	row := 1
	if err := f.SetCellValue(sheetName, "A1", t.Title); err != nil {
		return nil, err
	}
	_ = f.SetCellStyle(sheetName, "A1", "A1", bold)
	row++
	for _, line := range t.Subtitle {
		if err := f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), line); err != nil {
			return nil, err
		}
		row++
	}
	row++

	if err := writeRow(f, row, toAny(t.Headers)); err != nil {
		return nil, err
	}
	if len(t.Headers) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(t.Headers), row)
		_ = f.SetCellStyle(sheetName, fmt.Sprintf("A%d", row), last, bold)
		lastCol, _ := excelize.ColumnNumberToName(len(t.Headers))
		_ = f.SetColWidth(sheetName, "A", lastCol, 18)
	}
	row++

	for _, r := range t.Rows {
		if err := writeRow(f, row, r); err != nil {
			return nil, err
		}
		row++
	}
	if len(t.Footer) > 0 {
		if err := writeRow(f, row, t.Footer); err != nil {
			return nil, err
		}
		last, _ := excelize.CoordinatesToCellName(len(t.Footer), row)
		_ = f.SetCellStyle(sheetName, fmt.Sprintf("A%d", row), last, bold)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, row int, values []any) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if d, ok := v.(decimal.Decimal); ok {
			v = d.InexactFloat64()
		}
		if err := f.SetCellValue(sheetName, cell, v); err != nil {
			return fmt.Errorf("failed to set cell %s: %w", cell, err)
		}
	}
	return nil
}

// PDF renders t as a landscape A4 document.
func PDF(t Table) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 10, t.Title)
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 10)
	for _, line := range t.Subtitle {
		pdf.Cell(0, 6, line)
		pdf.Ln(6)
	}
	pdf.Ln(4)

	width := 0.0
	if len(t.Headers) > 0 {
		pageWidth, _ := pdf.GetPageSize()
		left, _, right, _ := pdf.GetMargins()
		width = (pageWidth - left - right) / float64(len(t.Headers))
	}

	pdf.SetFont("Helvetica", "B", 9)
	for _, h := range t.Headers {
		pdf.CellFormat(width, 7, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, r := range t.Rows {
		for _, v := range r {
			pdf.CellFormat(width, 6, cellText(v), "1", 0, align(v), false, 0, "")
		}
		pdf.Ln(-1)
	}
	if len(t.Footer) > 0 {
		pdf.SetFont("Helvetica", "B", 9)
		for _, v := range t.Footer {
			pdf.CellFormat(width, 7, cellText(v), "1", 0, align(v), false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func cellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case decimal.Decimal:
		return x.StringFixed(2)
	case string:
		return x
	}
	return fmt.Sprint(v)
}

func align(v any) string {
	switch v.(type) {
	case decimal.Decimal, int, int64, float64:
		return "R"
	}
	return "L"
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
