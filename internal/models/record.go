package models

import "strings"

// Record is a parsed tabular row keyed by lower-cased, trimmed header names.
type Record map[string]string

// NormalizeRecord lower-cases and trims keys and trims values.
func NormalizeRecord(raw map[string]string) Record {
	out := make(Record, len(raw))
	for k, v := range raw {
		out[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return out
}

// NormalizeRecords applies NormalizeRecord to every row, preserving order.
func NormalizeRecords(raw []map[string]string) []Record {
	out := make([]Record, 0, len(raw))
	for _, row := range raw {
		out = append(out, NormalizeRecord(row))
	}
	return out
}

// Value returns the first non-empty value among the given header aliases.
func (r Record) Value(aliases ...string) string {
	for _, alias := range aliases {
		if v := strings.TrimSpace(r[alias]); v != "" {
			return v
		}
	}
	return ""
}
