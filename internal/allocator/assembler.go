package allocator

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/noah-isme/exam-room-allocator/internal/models"
)

var (
	nonWord    = regexp.MustCompile(`[^\w]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// OutputGroup is the allocation table for one department/year in one slot.
type OutputGroup struct {
	Department string                 `json:"department"`
	Year       string                 `json:"year"`
	Slot       models.SlotKey         `json:"slot"`
	Rows       []models.AllocationRow `json:"rows"`
}

// FileName returns allocation_<dept>_<year>_<date>_<time>.csv.
func (g OutputGroup) FileName() string {
	safeTime := nonWord.ReplaceAllString(g.Slot.Time, "_")
	if safeTime == "" {
		safeTime = "time"
	}
	safeYear := whitespace.ReplaceAllString(g.Year, "")
	if safeYear == "" {
		safeYear = "UnknownYear"
	}
	return fmt.Sprintf("allocation_%s_%s_%s_%s.csv", safeName(g.Department), safeName(safeYear), safeName(g.Slot.Date), safeTime)
}

// Students sums TotalStudents over the group.
func (g OutputGroup) Students() int {
	total := 0
	for _, row := range g.Rows {
		total += row.TotalStudents
	}
	return total
}

// GroupRows partitions a slot's rows by department/year, in order of first appearance.
func GroupRows(slot models.SlotKey, rows []models.AllocationRow) []OutputGroup {
	var groups []OutputGroup
	index := make(map[models.DeptYear]int)
	for _, row := range rows {
		key := models.DeptYear{Department: row.Department, Year: row.Year}
		pos, ok := index[key]
		if !ok {
			pos = len(groups)
			index[key] = pos
			groups = append(groups, OutputGroup{Department: row.Department, Year: row.Year, Slot: slot})
		}
		groups[pos].Rows = append(groups[pos].Rows, row)
	}
	return groups
}

// Sink receives the assembled output of a run, e.g. to serialise and store it.
type Sink interface {
	WriteGroup(ctx context.Context, group OutputGroup) error
	WriteMetrics(ctx context.Context, rows []models.MetricsRow) error
}

// DiscardSink drops everything it is given.
type DiscardSink struct{}

// WriteGroup implements Sink.
func (DiscardSink) WriteGroup(context.Context, OutputGroup) error { return nil }

// WriteMetrics implements Sink.
func (DiscardSink) WriteMetrics(context.Context, []models.MetricsRow) error { return nil }

// safeName strips path separators so group names cannot escape a storage prefix.
func safeName(name string) string {
	return strings.NewReplacer("/", "-", "\\", "-", "..", ".").Replace(name)
}
