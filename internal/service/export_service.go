package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-presence-api/internal/repository"
	appErrors "github.com/noah-isme/sma-presence-api/pkg/errors"
	"github.com/noah-isme/sma-presence-api/pkg/export"
	"github.com/noah-isme/sma-presence-api/pkg/query"
)

// ExportFormat names a rendering of an export.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ParseExportFormat defaults an empty value to CSV.
func ParseExportFormat(raw string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ExportFormatCSV:
		return ExportFormatCSV, nil
	case ExportFormatPDF:
		return ExportFormatPDF, nil
	}
	return "", appErrors.Validation("unsupported export format %q", raw)
}

// ContentType returns the MIME type of the rendered file.
func (f ExportFormat) ContentType() string {
	if f == ExportFormatPDF {
		return "application/pdf"
	}
	return "text/csv"
}

// ExportFile is a rendered export.
type ExportFile struct {
	Filename    string
	ContentType string
	Rows        int
	Body        []byte
}

type RecordSource interface {
	Model() *query.Model
	Execute(ctx context.Context, op string, args map[string]interface{}) (interface{}, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportService renders findMany results as CSV or PDF tables.
type ExportService struct {
	csv    csvRenderer
	pdf    pdfRenderer
	logger *zap.Logger
	now    func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to
// the pkg/export implementations.
func NewExportService(logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{csv: csv, pdf: pdf, logger: logger, now: time.Now}
}

// Export runs findMany with args on source and renders the rows.
func (s *ExportService) Export(ctx context.Context, source RecordSource, args map[string]interface{}, format ExportFormat) (*ExportFile, error) {
	m := source.Model()
	out, err := source.Execute(ctx, "findMany", args)
	if err != nil {
		return nil, err
	}
	records, ok := out.([]repository.Record)
	if !ok {
		return nil, fmt.Errorf("export %s: unexpected result %T", m.Name, out)
	}

	dataset := BuildDataset(m, records)
	dataset.Title = m.Name
	dataset.GeneratedAt = s.now().UTC()
	var body []byte
	switch format {
	case ExportFormatCSV:
		body, err = s.csv.Render(dataset)
	case ExportFormatPDF:
		body, err = s.pdf.Render(dataset, m.Name)
	default:
		return nil, appErrors.Validation("unsupported export format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("render %s export: %w", format, err)
	}

	s.logger.Info("export rendered", zap.String("model", m.Name), zap.String("format", string(format)), zap.Int("rows", len(records)))
	return &ExportFile{
		Filename:    fmt.Sprintf("%s_%s.%s", m.Name, s.now().UTC().Format("20060102_150405"), format),
		ContentType: format.ContentType(),
		Rows:        len(records),
		Body:        body,
	}, nil
}

// BuildDataset lays records out in the model's column order. Only scalar
// columns present in the records become headers; loaded relations are left
// out.
func BuildDataset(m *query.Model, records []repository.Record) export.Dataset {
	present := make(map[string]bool)
	for _, rec := range records {
		for k := range rec {
			present[k] = true
		}
	}

	var headers []string
	for _, name := range m.ScalarNames() {
		if present[name] || len(records) == 0 {
			headers = append(headers, name)
		}
	}

	rows := make([]map[string]string, len(records))
	for i, rec := range records {
		row := make(map[string]string, len(headers))
		for _, h := range headers {
			row[h] = formatCell(rec[h])
		}
		rows[i] = row
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func formatCell(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case *time.Time:
		if t == nil {
			return ""
		}
		return t.UTC().Format(time.RFC3339)
	case []byte:
		return string(t)
	}
	return fmt.Sprint(v)
}
