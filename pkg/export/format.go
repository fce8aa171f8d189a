package export

import (
	"fmt"
	"strings"
)

// Format is an output encoding for allocation tables.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "text/csv"
}

// FormatForName guesses the format of a stored file from its extension.
func FormatForName(name string) Format {
	if strings.HasSuffix(strings.ToLower(name), ".pdf") {
		return FormatPDF
	}
	return FormatCSV
}

// ParseFormats validates requested formats. CSV is always produced.
func ParseFormats(raw []string) ([]Format, error) {
	formats := []Format{FormatCSV}
	for _, item := range raw {
		switch Format(strings.ToLower(strings.TrimSpace(item))) {
		case "", FormatCSV:
		case FormatPDF:
			if len(formats) == 1 {
				formats = append(formats, FormatPDF)
			}
		default:
			return nil, fmt.Errorf("unsupported format %q", item)
		}
	}
	return formats, nil
}
