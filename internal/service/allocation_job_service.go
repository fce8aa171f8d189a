package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-room-allocator/internal/dto"
	"github.com/noah-isme/exam-room-allocator/internal/models"
	"github.com/noah-isme/exam-room-allocator/internal/repository"
	appErrors "github.com/noah-isme/exam-room-allocator/pkg/errors"
	"github.com/noah-isme/exam-room-allocator/pkg/export"
	"github.com/noah-isme/exam-room-allocator/pkg/jobs"
)

// JobTypeAllocation tags allocation jobs on the queue.
const JobTypeAllocation = "allocation"

type allocationJobStore interface {
	Create(ctx context.Context, job *models.AllocationJob) error
	GetByID(ctx context.Context, id string) (*models.AllocationJob, error)
	Update(ctx context.Context, id string, params repository.UpdateAllocationJobParams) error
	ListByStatus(ctx context.Context, status models.JobStatus, limit int) ([]models.AllocationJob, error)
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) ([]string, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type resultLoader interface {
	LoadResult(ctx context.Context, relPath string) (*dto.AllocateResponse, error)
}

type allocationRunner interface {
	Allocate(ctx context.Context, req dto.AllocateRequest) (*dto.AllocateResponse, error)
}

// AllocationJobConfig governs queue recovery and cleanup.
type AllocationJobConfig struct {
	APIPrefix       string
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

// AllocationJobService manages asynchronous allocation requests.
type AllocationJobService struct {
	repo      allocationJobStore
	queue     jobDispatcher
	store     objectStore
	results   resultLoader
	validator *validator.Validate
	logger    *zap.Logger
	cfg       AllocationJobConfig
}

// NewAllocationJobService constructs the service.
func NewAllocationJobService(repo allocationJobStore, queue jobDispatcher, store objectStore, results resultLoader, validate *validator.Validate, logger *zap.Logger, cfg AllocationJobConfig) *AllocationJobService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	cfg.APIPrefix = strings.TrimRight(cfg.APIPrefix, "/")
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api"
	}
	return &AllocationJobService{
		repo:      repo,
		queue:     queue,
		store:     store,
		results:   results,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

func jobInputPath(jobID string) string {
	return path.Join("jobs", jobID, "input.json")
}

// CreateJob stores the uploads, persists a QUEUED job and enqueues it.
func (s *AllocationJobService) CreateJob(ctx context.Context, req dto.AllocateRequest) (*dto.CreateJobResponse, error) {
	if len(req.Students) == 0 || len(req.Courses) == 0 || len(req.Rooms) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "All three CSV files are required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid allocation options")
	}
	if _, err := export.ParseFormats(req.Formats); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid output format")
	}

	job := &models.AllocationJob{
		ID:          uuid.NewString(),
		Status:      models.JobStatusQueued,
		CohortOrder: req.CohortOrder,
		Formats:     models.StringList(req.Formats),
		CreatedBy:   req.RequestedBy,
	}
	payload, err := json.Marshal(dto.AllocationJobPayload{
		Students:    req.Students,
		Courses:     req.Courses,
		Rooms:       req.Rooms,
		CohortOrder: req.CohortOrder,
		Formats:     req.Formats,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode job input")
	}
	job.InputPath, err = s.store.Save(ctx, jobInputPath(job.ID), payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to store job input")
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create allocation job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: JobTypeAllocation}); err != nil {
		status := models.JobStatusFailed
		msg := "failed to enqueue job"
		now := time.Now().UTC()
		progress := 100
		_ = s.repo.Update(ctx, job.ID, repository.UpdateAllocationJobParams{
			Status:       &status,
			Progress:     &progress,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		})
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to enqueue allocation job")
	}
	s.logger.Info("allocation job queued", zap.String("job_id", job.ID), zap.String("created_by", job.CreatedBy))
	return &dto.CreateJobResponse{
		JobID:     job.ID,
		Status:    job.Status,
		StatusURL: fmt.Sprintf("%s/allocations/jobs/%s", s.cfg.APIPrefix, job.ID),
	}, nil
}

// GetStatus returns job metadata and, once finished, the stored result.
func (s *AllocationJobService) GetStatus(ctx context.Context, id string) (*dto.JobStatusResponse, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "allocation job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load allocation job")
	}
	resp := &dto.JobStatusResponse{Job: job}
	if job.Status == models.JobStatusFinished && job.ResultPath != nil && s.results != nil {
		result, err := s.results.LoadResult(ctx, *job.ResultPath)
		if err != nil {
			s.logger.Warn("job result unavailable", zap.String("job_id", id), zap.Error(err))
		} else {
			resp.Result = result
		}
	}
	return resp, nil
}

// RecoverPendingJobs replays queued and interrupted jobs after a restart.
func (s *AllocationJobService) RecoverPendingJobs(ctx context.Context) int {
	recovered := 0
	for _, status := range []models.JobStatus{models.JobStatusProcessing, models.JobStatusQueued} {
		pending, err := s.repo.ListByStatus(ctx, status, 50)
		if err != nil {
			s.logger.Warn("failed to list pending allocation jobs", zap.String("status", string(status)), zap.Error(err))
			continue
		}
		for _, job := range pending {
			if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: JobTypeAllocation}); err != nil {
				s.logger.Warn("failed to requeue allocation job", zap.String("job_id", job.ID), zap.Error(err))
				continue
			}
			recovered++
		}
	}
	if recovered > 0 {
		s.logger.Info("allocation jobs recovered", zap.Int("jobs", recovered))
	}
	return recovered
}

// OnFailure is the queue hook for jobs that exhausted their retries. It marks the row FAILED so a
// job the queue has dropped is never reported as pending.
func (s *AllocationJobService) OnFailure(ctx context.Context, job jobs.Job, err error) {
	s.logger.Error("allocation job abandoned", zap.String("job_id", job.ID), zap.Int("attempts", job.Attempt), zap.Error(err))
	if ctx == nil || ctx.Err() != nil {
		ctx = context.Background()
	}
	record, getErr := s.repo.GetByID(ctx, job.ID)
	if getErr != nil {
		s.logger.Warn("failed to load abandoned job", zap.String("job_id", job.ID), zap.Error(getErr))
		return
	}
	if record.Status.Terminal() {
		return
	}
	failed := models.JobStatusFailed
	progress := 100
	now := time.Now().UTC()
	msg := "allocation failed"
	if err != nil {
		msg = err.Error()
	}
	if updateErr := s.repo.Update(ctx, job.ID, repository.UpdateAllocationJobParams{
		Status:       &failed,
		Progress:     &progress,
		ErrorMessage: &msg,
		FinishedAt:   &now,
	}); updateErr != nil {
		s.logger.Warn("failed to mark abandoned job failed", zap.String("job_id", job.ID), zap.Error(updateErr))
	}
}

// StartCleanup boots a goroutine that deletes expired job rows and their inputs.
func (s *AllocationJobService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpired(ctx)
			}
		}
	}()
}

func (s *AllocationJobService) cleanupExpired(ctx context.Context) {
	ids, err := s.repo.DeleteFinishedBefore(ctx, time.Now().UTC().Add(-s.cfg.ResultTTL))
	if err != nil {
		s.logger.Warn("allocation job cleanup failed", zap.Error(err))
		return
	}
	for _, id := range ids {
		if err := s.store.Delete(ctx, jobInputPath(id)); err != nil {
			s.logger.Warn("job input cleanup failed", zap.String("job_id", id), zap.Error(err))
		}
	}
}

// AllocationWorker bridges queue jobs to AllocationService.
type AllocationWorker struct {
	repo       allocationJobStore
	store      objectStore
	runner     allocationRunner
	logger     *zap.Logger
	maxRetries int
}

// JobRetries normalises the configured retry count shared by the worker and its queue. Zero means
// a failed run is not retried.
func JobRetries(configured int) int {
	if configured < 0 {
		return 0
	}
	return configured
}

// NewAllocationWorker constructs a worker. maxRetries must match the queue's MaxRetries.
func NewAllocationWorker(repo allocationJobStore, store objectStore, runner allocationRunner, maxRetries int, logger *zap.Logger) *AllocationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxRetries = JobRetries(maxRetries)
	return &AllocationWorker{repo: repo, store: store, runner: runner, logger: logger, maxRetries: maxRetries}
}

// Handle processes a queue job.
func (w *AllocationWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	if record.Status.Terminal() {
		return nil
	}
	processing := models.JobStatusProcessing
	progress := 10
	if err := w.repo.Update(ctx, job.ID, repository.UpdateAllocationJobParams{Status: &processing, Progress: &progress}); err != nil {
		return err
	}

	resp, err := w.run(ctx, record)
	if err != nil {
		permanent := appErrors.FromError(err).Status < 500
		if permanent || job.Attempt >= w.maxRetries {
			w.finish(ctx, job.ID, models.JobStatusFailed, nil, nil, err.Error())
			if permanent {
				w.logger.Warn("allocation job rejected", zap.String("job_id", job.ID), zap.Error(err))
				return nil
			}
		} else {
			queued := models.JobStatusQueued
			reset := 0
			msg := err.Error()
			if updateErr := w.repo.Update(ctx, job.ID, repository.UpdateAllocationJobParams{
				Status:       &queued,
				Progress:     &reset,
				ErrorMessage: &msg,
			}); updateErr != nil {
				w.logger.Warn("failed to mark job queued", zap.String("job_id", job.ID), zap.Error(updateErr))
			}
		}
		return err
	}

	resultPath := path.Join(RunPrefix(resp.RunID), resultFileName)
	summary := models.JobSummary{
		RunID:     resp.RunID,
		Files:     resp.FileNames(),
		Slots:     resp.Summary.Slots,
		Seated:    resp.Summary.Seated,
		Shortages: resp.Summary.Shortages,
		Warnings:  len(resp.Warnings),
	}
	return w.finish(ctx, job.ID, models.JobStatusFinished, &resultPath, &summary, "")
}

func (w *AllocationWorker) run(ctx context.Context, record *models.AllocationJob) (*dto.AllocateResponse, error) {
	raw, err := w.store.Open(ctx, record.InputPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to read job input")
	}
	var payload dto.AllocationJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidCSV.Code, appErrors.ErrInvalidCSV.Status, "corrupt job input")
	}
	return w.runner.Allocate(ctx, dto.AllocateRequest{
		Students:    payload.Students,
		Courses:     payload.Courses,
		Rooms:       payload.Rooms,
		CohortOrder: payload.CohortOrder,
		Formats:     payload.Formats,
		RequestedBy: record.CreatedBy,
		RunID:       record.ID,
	})
}

func (w *AllocationWorker) finish(ctx context.Context, id string, status models.JobStatus, resultPath *string, summary *models.JobSummary, message string) error {
	progress := 100
	now := time.Now().UTC()
	err := w.repo.Update(ctx, id, repository.UpdateAllocationJobParams{
		Status:       &status,
		Progress:     &progress,
		ResultPath:   resultPath,
		Summary:      summary,
		ErrorMessage: &message,
		FinishedAt:   &now,
	})
	if err != nil {
		w.logger.Warn("failed to mark job "+strings.ToLower(string(status)), zap.String("job_id", id), zap.Error(err))
	}
	return err
}
