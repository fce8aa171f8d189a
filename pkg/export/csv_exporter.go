package export

import (
	"bytes"
	"fmt"

	"github.com/gocarina/gocsv"

	"github.com/noah-isme/exam-room-allocator/pkg/csvio"
)

// Dataset is a rendered table: a header row plus string cells in column order.
type Dataset struct {
	Headers []string
	Rows    [][]string
}

// CSVExporter renders csv-tagged structs.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render encodes rows (a slice of csv-tagged structs) with a header row.
func (e *CSVExporter) Render(rows interface{}) ([]byte, error) {
	return csvio.Marshal(rows)
}

// Dataset renders rows as CSV and reads them back as a table, so other formats show exactly
// the CSV cells.
func (e *CSVExporter) Dataset(rows interface{}) (Dataset, error) {
	data, err := e.Render(rows)
	if err != nil {
		return Dataset{}, err
	}
	records, err := gocsv.DefaultCSVReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return Dataset{}, fmt.Errorf("read rendered csv: %w", err)
	}
	if len(records) == 0 {
		return Dataset{}, fmt.Errorf("csv requires at least one header")
	}
	return Dataset{Headers: records[0], Rows: records[1:]}, nil
}
