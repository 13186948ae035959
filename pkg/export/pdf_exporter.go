package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// WeeklyGrid is one day-by-period table, typically one per division.
// Cells is indexed [time][day]; missing rows render empty.
type WeeklyGrid struct {
	Title string
	Days  []string
	Times []string
	Cells [][]string
}

// PDFExporter renders weekly timetable grids into PDF documents.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// RenderWeekly creates a landscape PDF with one grid per page.
func (e *PDFExporter) RenderWeekly(title string, grids []WeeklyGrid) ([]byte, error) {
	if len(grids) == 0 {
		return nil, fmt.Errorf("pdf requires at least one grid")
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)

	const timeColWidth = 30.0
	const tableWidth = 277.0

	for _, grid := range grids {
		if len(grid.Days) == 0 {
			return nil, fmt.Errorf("grid %q has no day columns", grid.Title)
		}
		pdf.AddPage()

		if title != "" {
			pdf.SetFont("Arial", "B", 14)
			pdf.CellFormat(0, 9, strings.ToUpper(title), "", 1, "C", false, 0, "")
		}
		if grid.Title != "" {
			pdf.SetFont("Arial", "B", 11)
			pdf.CellFormat(0, 7, grid.Title, "", 1, "C", false, 0, "")
		}
		pdf.Ln(3)

		colWidth := (tableWidth - timeColWidth) / float64(len(grid.Days))

		pdf.SetFont("Arial", "B", 9)
		pdf.CellFormat(timeColWidth, 8, "Time", "1", 0, "C", false, 0, "")
		for _, day := range grid.Days {
			pdf.CellFormat(colWidth, 8, day, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Arial", "", 8)
		for ti, label := range grid.Times {
			pdf.CellFormat(timeColWidth, 9, label, "1", 0, "C", false, 0, "")
			for di := range grid.Days {
				var value string
				if ti < len(grid.Cells) && di < len(grid.Cells[ti]) {
					value = grid.Cells[ti][di]
				}
				pdf.CellFormat(colWidth, 9, truncateCell(value, colWidth, pdf), "1", 0, "C", false, 0, "")
			}
			pdf.Ln(-1)
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// truncateCell trims the value until it fits the column, keeping a small
// inner padding so text never touches the borders.
func truncateCell(value string, colWidth float64, pdf *gofpdf.Fpdf) string {
	const padding = 2.0
	if value == "" {
		return value
	}
	for pdf.GetStringWidth(value) > colWidth-padding && len(value) > 1 {
		value = strings.TrimSpace(value[:len(value)-1])
	}
	return value
}
