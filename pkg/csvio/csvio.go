// Package csvio reads uploaded roster files and writes allocation tables.
package csvio

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
)

var (
	ErrEmpty    = errors.New("csv has no headers")
	utf8BOM     = []byte{0xEF, 0xBB, 0xBF}
	bomReplacer = strings.NewReplacer("\ufeff", "")
)

// ReadMaps parses a CSV document into header-keyed rows. Keys and values are kept as written.
func ReadMaps(r io.Reader) ([]map[string]string, error) {
	rows, err := gocsv.CSVToMaps(stripBOM(r))
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return rows, nil
}

// Headers returns the trimmed header row of a CSV document.
func Headers(r io.Reader) ([]string, error) {
	reader := gocsv.LazyCSVReader(stripBOM(r))
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	out := make([]string, 0, len(header))
	for _, h := range header {
		if h = strings.TrimSpace(bomReplacer.Replace(h)); h != "" {
			out = append(out, h)
		}
	}
	if len(out) == 0 {
		return nil, ErrEmpty
	}
	return out, nil
}

// Marshal renders a slice of csv-tagged structs, header row included.
func Marshal(rows interface{}) ([]byte, error) {
	data, err := gocsv.MarshalBytes(rows)
	if err != nil {
		return nil, fmt.Errorf("marshal csv: %w", err)
	}
	return data, nil
}

func stripBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}
