package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seatRow struct {
	Room          string `csv:"Room"`
	RollRange     string `csv:"RollRange"`
	TotalStudents int    `csv:"TotalStudents"`
}

func TestCSVExporterDataset(t *testing.T) {
	rows := []seatRow{{Room: "B", RollRange: "1 - 20", TotalStudents: 20}, {Room: "A", RollRange: "21 - 45", TotalStudents: 25}}
	exporter := NewCSVExporter()

	data, err := exporter.Render(rows)
	require.NoError(t, err)
	assert.Equal(t, "Room,RollRange,TotalStudents\nB,1 - 20,20\nA,21 - 45,25\n", string(data))

	ds, err := exporter.Dataset(rows)
	require.NoError(t, err)
	assert.Equal(t, []string{"Room", "RollRange", "TotalStudents"}, ds.Headers)
	assert.Equal(t, [][]string{{"B", "1 - 20", "20"}, {"A", "21 - 45", "25"}}, ds.Rows)
}

func TestPDFExporterRender(t *testing.T) {
	ds := Dataset{Headers: []string{"Room", "TotalStudents"}}
	for i := 0; i < 60; i++ {
		ds.Rows = append(ds.Rows, []string{"R1", "30"})
	}
	data, err := NewPDFExporter().Render(ds, "CS Year 2", "2024-05-01 09:00")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))

	_, err = NewPDFExporter().Render(Dataset{}, "", "")
	assert.Error(t, err)
}

func TestParseFormats(t *testing.T) {
	formats, err := ParseFormats(nil)
	require.NoError(t, err)
	assert.Equal(t, []Format{FormatCSV}, formats)

	formats, err = ParseFormats([]string{"PDF", "csv", "pdf"})
	require.NoError(t, err)
	assert.Equal(t, []Format{FormatCSV, FormatPDF}, formats)

	_, err = ParseFormats([]string{"xlsx"})
	assert.Error(t, err)

	assert.Equal(t, FormatPDF, FormatForName("allocation.PDF"))
	assert.Equal(t, "text/csv", FormatForName("metrics.csv").ContentType())
}
