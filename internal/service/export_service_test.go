package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-presence-api/internal/repository"
	appErrors "github.com/noah-isme/sma-presence-api/pkg/errors"
	"github.com/noah-isme/sma-presence-api/pkg/export"
	"github.com/noah-isme/sma-presence-api/pkg/query"
)

type stubSource struct {
	model   *query.Model
	records interface{}
	args    map[string]interface{}
	op      string
}

func (s *stubSource) Model() *query.Model { return s.model }

func (s *stubSource) Execute(_ context.Context, op string, args map[string]interface{}) (interface{}, error) {
	s.op, s.args = op, args
	return s.records, nil
}

func subjectModel(t *testing.T) *query.Model {
	t.Helper()
	m, ok := repository.Schema.Model(repository.ModelSubject)
	require.True(t, ok)
	return m
}

func TestParseExportFormat(t *testing.T) {
	f, err := ParseExportFormat("")
	require.NoError(t, err)
	assert.Equal(t, ExportFormatCSV, f)

	f, err = ParseExportFormat(" PDF ")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", f.ContentType())

	_, err = ParseExportFormat("xlsx")
	assert.True(t, appErrors.IsValidation(err))
}

func TestBuildDatasetUsesModelColumnOrder(t *testing.T) {
	created := time.Date(2024, 5, 1, 8, 0, 0, 0, time.FixedZone("WIB", 7*3600))
	records := []repository.Record{
		{"name": "Biology", "id": int64(2), "created_at": created, "lecture": []repository.Record{{"id": 1}}},
		{"id": int64(3), "name": "Physics", "created_at": nil},
	}

	ds := BuildDataset(subjectModel(t), records)
	assert.Equal(t, []string{"id", "name", "created_at"}, ds.Headers)
	assert.Equal(t, map[string]string{"id": "2", "name": "Biology", "created_at": "2024-05-01T01:00:00Z"}, ds.Rows[0])
	assert.Equal(t, "", ds.Rows[1]["created_at"])
}

func TestBuildDatasetWithoutRowsKeepsAllColumns(t *testing.T) {
	ds := BuildDataset(subjectModel(t), nil)
	assert.Equal(t, subjectModel(t).ScalarNames(), ds.Headers)
	assert.Empty(t, ds.Rows)
}

func TestExportRendersCSV(t *testing.T) {
	src := &stubSource{
		model:   subjectModel(t),
		records: []repository.Record{{"id": int64(1), "name": "Math"}},
	}
	svc := NewExportService(nil, nil, nil)
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC) }

	args := map[string]interface{}{"take": 10}
	file, err := svc.Export(context.Background(), src, args, ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "findMany", src.op)
	assert.Equal(t, args, src.args)
	assert.Equal(t, "subject_20240501_083000.csv", file.Filename)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.Equal(t, 1, file.Rows)
	assert.Equal(t, "id,name\n1,Math\n", string(file.Body))
}

type capturePDF struct{ got export.Dataset }

func (c *capturePDF) Render(data export.Dataset, title string) ([]byte, error) {
	c.got = data
	return []byte(title), nil
}

func TestExportPassesTitleToPDF(t *testing.T) {
	pdf := &capturePDF{}
	src := &stubSource{model: subjectModel(t), records: []repository.Record{}}

	file, err := NewExportService(nil, nil, pdf).Export(context.Background(), src, nil, ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "subject", string(file.Body))
	assert.Equal(t, "subject", pdf.got.Title)
	assert.False(t, pdf.got.GeneratedAt.IsZero())
}
