package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Grid is a tabular export payload: a header row followed by body rows.
// The timetable export uses the first column for the day and one column per
// period label.
type Grid struct {
	Headers []string
	Rows    [][]string
}

// CSVExporter renders a Grid into CSV bytes.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes for the grid.
func (e *CSVExporter) Render(grid Grid) ([]byte, error) {
	if len(grid.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(grid.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range grid.Rows {
		record := make([]string, len(grid.Headers))
		copy(record, row)
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
