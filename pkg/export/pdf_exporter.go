package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders a Grid into a landscape timetable page.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with an optional title and the grid body.
// The first column (the day) is rendered narrower than the period columns.
func (e *PDFExporter) Render(grid Grid, title string) ([]byte, error) {
	if len(grid.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	const usable = 277.0
	dayWidth := 25.0
	colWidth := (usable - dayWidth) / float64(len(grid.Headers)-1)
	width := func(i int) float64 {
		if i == 0 {
			return dayWidth
		}
		return colWidth
	}

	pdf.SetFont("Arial", "B", 10)
	for i, header := range grid.Headers {
		pdf.CellFormat(width(i), 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, row := range grid.Rows {
		for i := range grid.Headers {
			value := ""
			if i < len(row) {
				value = row[i]
			}
			pdf.CellFormat(width(i), 10, value, "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
