package dto

import (
	"time"

	"github.com/noah-isme/exam-room-allocator/internal/allocator"
	"github.com/noah-isme/exam-room-allocator/internal/models"
)

// AllocateRequest carries the three uploaded datasets and run options.
type AllocateRequest struct {
	Students    []byte   `json:"-"`
	Courses     []byte   `json:"-"`
	Rooms       []byte   `json:"-"`
	CohortOrder string   `json:"cohortOrder,omitempty" validate:"omitempty,oneof=largest_first insertion"`
	Formats     []string `json:"formats,omitempty" validate:"max=2"`
	RequestedBy string   `json:"-"`
	// RunID is preassigned by background jobs so retries reuse the same storage prefix.
	RunID string `json:"-"`
}

// FileKind classifies generated files.
type FileKind string

const (
	FileKindAllocation FileKind = "allocation"
	FileKindMetrics    FileKind = "metrics"
	FileKindShortages  FileKind = "shortages"
)

// GeneratedFile describes one stored output file.
type GeneratedFile struct {
	Name       string    `json:"name"`
	Kind       FileKind  `json:"kind"`
	Format     string    `json:"format"`
	Department string    `json:"department,omitempty"`
	Year       string    `json:"year,omitempty"`
	Date       string    `json:"date,omitempty"`
	Time       string    `json:"time,omitempty"`
	Rows       int       `json:"rows"`
	Path       string    `json:"path"`
	URL        string    `json:"url,omitempty"`
	ExpiresAt  time.Time `json:"expiresAt,omitempty"`
}

// RunSummary counts the inputs and outputs of a run.
type RunSummary struct {
	Students  int `json:"students"`
	Cohorts   int `json:"cohorts"`
	Courses   int `json:"courses"`
	Rooms     int `json:"rooms"`
	Slots     int `json:"slots"`
	Groups    int `json:"groups"`
	Seated    int `json:"seated"`
	Unseated  int `json:"unseated"`
	Shortages int `json:"shortages"`
}

// AllocateResponse is the outcome of an allocation run.
type AllocateResponse struct {
	RunID       string                  `json:"runId"`
	Fingerprint string                  `json:"fingerprint"`
	CohortOrder string                  `json:"cohortOrder"`
	Cached      bool                    `json:"cached"`
	Summary     RunSummary              `json:"summary"`
	Files       []GeneratedFile         `json:"files"`
	OutputFiles map[string]string       `json:"outputFiles"`
	Metrics     []models.MetricsRow     `json:"metrics"`
	Slots       []allocator.SlotSummary `json:"slots"`
	Shortages   []models.Shortage       `json:"shortages"`
	Warnings    []models.Warning        `json:"warnings"`
	GeneratedAt time.Time               `json:"generatedAt"`
}

// FileNames lists the names of the generated files in order.
func (r *AllocateResponse) FileNames() []string {
	names := make([]string, 0, len(r.Files))
	for _, f := range r.Files {
		names = append(names, f.Name)
	}
	return names
}
