package export

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVRenderKeepsHeaderOrder(t *testing.T) {
	data := Dataset{
		Headers: []string{"id", "name", "note"},
		Rows: []map[string]string{
			{"id": "1", "name": "Ana", "note": "late, excused"},
			{"id": "2", "name": "Budi"},
		},
	}

	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	assert.Equal(t, "id,name,note\n1,Ana,\"late, excused\"\n2,Budi,\n", string(out))
}

func TestCSVRenderDelimiter(t *testing.T) {
	out, err := (&CSVExporter{Comma: ';'}).Render(Dataset{Headers: []string{"a", "b"}, Rows: []map[string]string{{"a": "1", "b": "2"}}})
	require.NoError(t, err)
	assert.Equal(t, "a;b\n1;2\n", string(out))
}

func TestRenderRequiresColumns(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
	_, err = NewPDFExporter().Render(Dataset{}, "x")
	assert.Error(t, err)
}

func TestPDFRenderPagesLongTables(t *testing.T) {
	data := Dataset{
		Title:       "presence",
		Headers:     []string{"id", "user_id", "lecture_id", "is_present", "created_at", "updated_at", "deleted_at"},
		GeneratedAt: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
	}
	for i := 0; i < 120; i++ {
		data.Rows = append(data.Rows, map[string]string{"id": fmt.Sprint(i), "user_id": "7", "is_present": "true"})
	}

	out, err := NewPDFExporter().Render(data, "")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short"))
	long := strings.Repeat("x", 60)
	assert.Len(t, []rune(truncate(long)), maxCellRunes)
}
