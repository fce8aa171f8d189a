package dto

import "github.com/noah-isme/exam-room-allocator/internal/models"

// AllocationJobPayload is the stored input of a background allocation.
type AllocationJobPayload struct {
	Students    []byte   `json:"students"`
	Courses     []byte   `json:"courses"`
	Rooms       []byte   `json:"rooms"`
	CohortOrder string   `json:"cohortOrder"`
	Formats     []string `json:"formats"`
}

// CreateJobResponse acknowledges a queued allocation.
type CreateJobResponse struct {
	JobID     string           `json:"jobId"`
	Status    models.JobStatus `json:"status"`
	StatusURL string           `json:"statusUrl"`
}

// JobStatusResponse reports progress and, once finished, the full result.
type JobStatusResponse struct {
	Job    *models.AllocationJob `json:"job"`
	Result *AllocateResponse     `json:"result,omitempty"`
}
