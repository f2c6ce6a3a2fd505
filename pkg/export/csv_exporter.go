// Package export renders query results as downloadable tables.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"
)

// Dataset is a rendered table: headers in column order and one map per row.
type Dataset struct {
	Title       string
	Headers     []string
	Rows        []map[string]string
	GeneratedAt time.Time
}

// CSVExporter renders a Dataset as CSV.
type CSVExporter struct {
	// Comma is the field delimiter; zero means ','.
	Comma rune
}

// NewCSVExporter builds a comma-separated exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{Comma: ','}
}

// Render writes the header line followed by one line per row. Missing cells
// are written as empty fields.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one column")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if e.Comma != 0 {
		writer.Comma = e.Comma
	}
	if err := writer.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, len(data.Headers))
	for n, row := range data.Rows {
		for i, header := range data.Headers {
			record[i] = row[header]
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row %d: %w", n+1, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
