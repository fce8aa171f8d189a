package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/exam-room-allocator/internal/models"
)

const allocationJobColumns = `id, status, progress, cohort_order, formats, input_path, result_path, summary, error_message, created_by, created_at, updated_at, finished_at`

// AllocationJobRepository persists asynchronous allocation requests.
type AllocationJobRepository struct {
	db *sqlx.DB
}

// NewAllocationJobRepository constructs the repository.
func NewAllocationJobRepository(db *sqlx.DB) *AllocationJobRepository {
	return &AllocationJobRepository{db: db}
}

// Create inserts a new job row with generated defaults.
func (r *AllocationJobRepository) Create(ctx context.Context, job *models.AllocationJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.JobStatusQueued
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = job.CreatedAt
	const query = `INSERT INTO allocation_jobs (id, status, progress, cohort_order, formats, input_path, created_by, created_at, updated_at)
VALUES (:id, :status, :progress, :cohort_order, :formats, :input_path, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create allocation job: %w", err)
	}
	return nil
}

// GetByID returns a job row by its identifier.
func (r *AllocationJobRepository) GetByID(ctx context.Context, id string) (*models.AllocationJob, error) {
	query := `SELECT ` + allocationJobColumns + ` FROM allocation_jobs WHERE id = $1`
	var job models.AllocationJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, fmt.Errorf("get allocation job: %w", err)
	}
	return &job, nil
}

// UpdateAllocationJobParams defines the mutable fields.
type UpdateAllocationJobParams struct {
	Status       *models.JobStatus
	Progress     *int
	ResultPath   *string
	Summary      *models.JobSummary
	ErrorMessage *string
	FinishedAt   *time.Time
}

// Update persists the provided changes and bumps updated_at.
func (r *AllocationJobRepository) Update(ctx context.Context, id string, params UpdateAllocationJobParams) error {
	set := make([]string, 0, 7)
	args := make([]interface{}, 0, 8)
	add := func(column string, value interface{}) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if params.Status != nil {
		add("status", *params.Status)
	}
	if params.Progress != nil {
		add("progress", *params.Progress)
	}
	if params.ResultPath != nil {
		add("result_path", *params.ResultPath)
	}
	if params.Summary != nil {
		add("summary", *params.Summary)
	}
	if params.ErrorMessage != nil {
		add("error_message", *params.ErrorMessage)
	}
	if params.FinishedAt != nil {
		add("finished_at", *params.FinishedAt)
	}
	if len(set) == 0 {
		return nil
	}
	set = append(set, "updated_at = NOW()")

	args = append(args, id)
	query := fmt.Sprintf("UPDATE allocation_jobs SET %s WHERE id = $%d", strings.Join(set, ", "), len(args))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update allocation job: %w", err)
	}
	return nil
}

// ListByStatus fetches jobs in a status, oldest first (used for cold start recovery).
func (r *AllocationJobRepository) ListByStatus(ctx context.Context, status models.JobStatus, limit int) ([]models.AllocationJob, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + allocationJobColumns + ` FROM allocation_jobs WHERE status = $1 ORDER BY created_at ASC LIMIT $2`
	var jobs []models.AllocationJob
	if err := r.db.SelectContext(ctx, &jobs, query, status, limit); err != nil {
		return nil, fmt.Errorf("list %s allocation jobs: %w", strings.ToLower(string(status)), err)
	}
	return jobs, nil
}

// DeleteFinishedBefore removes terminal jobs older than cutoff and returns their ids.
func (r *AllocationJobRepository) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	const query = `DELETE FROM allocation_jobs WHERE status IN ('FINISHED', 'FAILED') AND finished_at IS NOT NULL AND finished_at < $1 RETURNING id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, cutoff); err != nil {
		return nil, fmt.Errorf("delete finished allocation jobs: %w", err)
	}
	return ids, nil
}
