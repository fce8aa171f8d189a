package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JobStatus captures the background allocation lifecycle.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "QUEUED"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusFinished   JobStatus = "FINISHED"
	JobStatusFailed     JobStatus = "FAILED"
)

// Terminal reports whether no further transitions are expected.
func (s JobStatus) Terminal() bool {
	return s == JobStatusFinished || s == JobStatusFailed
}

// AllocationJob is the bookkeeping row of an asynchronous allocation request.
type AllocationJob struct {
	ID           string      `db:"id" json:"id"`
	Status       JobStatus   `db:"status" json:"status"`
	Progress     int         `db:"progress" json:"progress"`
	CohortOrder  string      `db:"cohort_order" json:"cohortOrder"`
	Formats      StringList  `db:"formats" json:"formats"`
	InputPath    string      `db:"input_path" json:"-"`
	ResultPath   *string     `db:"result_path" json:"resultPath,omitempty"`
	Summary      *JobSummary `db:"summary" json:"summary,omitempty"`
	ErrorMessage *string     `db:"error_message" json:"errorMessage,omitempty"`
	CreatedBy    string      `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt    time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updatedAt"`
	FinishedAt   *time.Time  `db:"finished_at" json:"finishedAt,omitempty"`
}

// JobSummary is the compact outcome stored once a job finishes.
type JobSummary struct {
	RunID     string   `json:"runId"`
	Files     []string `json:"files"`
	Slots     int      `json:"slots"`
	Seated    int      `json:"seated"`
	Shortages int      `json:"shortages"`
	Warnings  int      `json:"warnings"`
}

// Value marshals the summary to JSON for persistence.
func (s JobSummary) Value() (driver.Value, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal job summary: %w", err)
	}
	return data, nil
}

// Scan unmarshals a JSONB summary.
func (s *JobSummary) Scan(value interface{}) error {
	data, err := jsonBytes(value)
	if err != nil || len(data) == 0 {
		*s = JobSummary{}
		return err
	}
	if err := json.Unmarshal(data, s); err != nil {
		return fmt.Errorf("unmarshal job summary: %w", err)
	}
	return nil
}

// StringList persists as a JSON array.
type StringList []string

// Value marshals the list to JSON.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	data, err := json.Marshal([]string(l))
	if err != nil {
		return nil, fmt.Errorf("marshal string list: %w", err)
	}
	return data, nil
}

// Scan unmarshals a JSON array.
func (l *StringList) Scan(value interface{}) error {
	data, err := jsonBytes(value)
	if err != nil || len(data) == 0 {
		*l = nil
		return err
	}
	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("unmarshal string list: %w", err)
	}
	*l = out
	return nil
}

func jsonBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported type %T for json column", value)
	}
}
