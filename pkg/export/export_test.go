package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() Table {
	return Table{
		Title:   "Validation Requests",
		Columns: []string{"Student No.", "Name", "Status"},
		Rows: [][]string{
			{"2021-00123", "Juan Dela Cruz", "pending"},
			{"2021-00456", "Maria Santos", "accepted"},
		},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat(" PDF ")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, f)

	_, err = ParseFormat("xlsx")
	require.Error(t, err)
}

func TestRenderCSV(t *testing.T) {
	out, err := Render(FormatCSV, sampleTable())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Student No.,Name,Status", lines[0])
	assert.Contains(t, lines[1], "2021-00123")
}

func TestRenderPDF(t *testing.T) {
	out, err := Render(FormatPDF, sampleTable())
	require.NoError(t, err)
	require.True(t, len(out) > 4)
	assert.Equal(t, "%PDF", string(out[:4]))
}

func TestRenderRequiresColumns(t *testing.T) {
	_, err := Render(FormatCSV, Table{})
	require.Error(t, err)
}
