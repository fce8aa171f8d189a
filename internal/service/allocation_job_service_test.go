package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-room-allocator/internal/dto"
	"github.com/noah-isme/exam-room-allocator/internal/models"
	"github.com/noah-isme/exam-room-allocator/internal/repository"
	appErrors "github.com/noah-isme/exam-room-allocator/pkg/errors"
	"github.com/noah-isme/exam-room-allocator/pkg/jobs"
)

type jobStoreStub struct {
	mu      sync.Mutex
	jobs    map[string]*models.AllocationJob
	deleted []string
}

func newJobStoreStub() *jobStoreStub {
	return &jobStoreStub{jobs: make(map[string]*models.AllocationJob)}
}

func (s *jobStoreStub) Create(_ context.Context, job *models.AllocationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *jobStoreStub) GetByID(_ context.Context, id string) (*models.AllocationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("get allocation job: %w", sql.ErrNoRows)
	}
	copied := *job
	return &copied, nil
}

func (s *jobStoreStub) Update(_ context.Context, id string, params repository.UpdateAllocationJobParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.jobs[id]
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultPath != nil {
		job.ResultPath = params.ResultPath
	}
	if params.Summary != nil {
		job.Summary = params.Summary
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (s *jobStoreStub) ListByStatus(_ context.Context, status models.JobStatus, _ int) ([]models.AllocationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AllocationJob
	for _, job := range s.jobs {
		if job.Status == status {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (s *jobStoreStub) DeleteFinishedBefore(_ context.Context, cutoff time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, job := range s.jobs {
		if job.Status.Terminal() && job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			ids = append(ids, id)
			delete(s.jobs, id)
		}
	}
	s.deleted = append(s.deleted, ids...)
	return ids, nil
}

type dispatcherStub struct {
	jobs []jobs.Job
	err  error
}

func (d *dispatcherStub) Enqueue(job jobs.Job) error {
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}

type runnerStub struct {
	err  error
	reqs []dto.AllocateRequest
}

func (r *runnerStub) Allocate(_ context.Context, req dto.AllocateRequest) (*dto.AllocateResponse, error) {
	r.reqs = append(r.reqs, req)
	if r.err != nil {
		return nil, r.err
	}
	return &dto.AllocateResponse{
		RunID:   req.RunID,
		Files:   []dto.GeneratedFile{{Name: "metrics.csv"}},
		Summary: dto.RunSummary{Slots: 1, Seated: 7},
	}, nil
}

func TestAllocationJobLifecycle(t *testing.T) {
	exporter, store := newExportServiceForTest(t, nil)
	repo := newJobStoreStub()
	queue := &dispatcherStub{}
	svc := NewAllocationJobService(repo, queue, store, exporter, nil, nil, AllocationJobConfig{})
	ctx := context.Background()

	created, err := svc.CreateJob(ctx, dto.AllocateRequest{
		Students:    []byte(studentsCSV),
		Courses:     []byte(coursesCSV),
		Rooms:       []byte(roomsCSV),
		CohortOrder: "insertion",
		RequestedBy: "u-1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusQueued, created.Status)
	assert.Equal(t, "/api/allocations/jobs/"+created.JobID, created.StatusURL)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, JobTypeAllocation, queue.jobs[0].Type)

	runner := &runnerStub{}
	worker := NewAllocationWorker(repo, store, runner, 3, nil)
	require.NoError(t, worker.Handle(ctx, queue.jobs[0]))

	require.Len(t, runner.reqs, 1)
	assert.Equal(t, created.JobID, runner.reqs[0].RunID)
	assert.Equal(t, "insertion", runner.reqs[0].CohortOrder)
	assert.Equal(t, []byte(roomsCSV), runner.reqs[0].Rooms)
	assert.Equal(t, "u-1", runner.reqs[0].RequestedBy)

	status, err := svc.GetStatus(ctx, created.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFinished, status.Job.Status)
	assert.Equal(t, 100, status.Job.Progress)
	require.NotNil(t, status.Job.Summary)
	assert.Equal(t, 7, status.Job.Summary.Seated)
	assert.Equal(t, []string{"metrics.csv"}, status.Job.Summary.Files)
	assert.Nil(t, status.Result)
}

func TestAllocationWorkerRetriesThenFails(t *testing.T) {
	_, store := newExportServiceForTest(t, nil)
	repo := newJobStoreStub()
	queue := &dispatcherStub{}
	svc := NewAllocationJobService(repo, queue, store, nil, nil, nil, AllocationJobConfig{})
	ctx := context.Background()

	created, err := svc.CreateJob(ctx, allocateRequest())
	require.NoError(t, err)

	runner := &runnerStub{err: errors.New("storage offline")}
	worker := NewAllocationWorker(repo, store, runner, 2, nil)

	require.Error(t, worker.Handle(ctx, jobs.Job{ID: created.JobID}))
	job, _ := repo.GetByID(ctx, created.JobID)
	assert.Equal(t, models.JobStatusQueued, job.Status)

	require.Error(t, worker.Handle(ctx, jobs.Job{ID: created.JobID, Attempt: 2}))
	job, _ = repo.GetByID(ctx, created.JobID)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Contains(t, *job.ErrorMessage, "storage offline")

	require.NoError(t, worker.Handle(ctx, jobs.Job{ID: created.JobID, Attempt: 3}))
	assert.Len(t, runner.reqs, 2)
}

func TestAllocationWorkerDoesNotRetryClientErrors(t *testing.T) {
	_, store := newExportServiceForTest(t, nil)
	repo := newJobStoreStub()
	queue := &dispatcherStub{}
	svc := NewAllocationJobService(repo, queue, store, nil, nil, nil, AllocationJobConfig{})
	ctx := context.Background()

	created, err := svc.CreateJob(ctx, allocateRequest())
	require.NoError(t, err)

	runner := &runnerStub{err: appErrors.Clone(appErrors.ErrNoUsableRooms, "")}
	worker := NewAllocationWorker(repo, store, runner, 3, nil)
	require.NoError(t, worker.Handle(ctx, jobs.Job{ID: created.JobID}))

	job, _ := repo.GetByID(ctx, created.JobID)
	assert.Equal(t, models.JobStatusFailed, job.Status)
}

func TestAllocationJobServiceValidationAndEnqueueFailure(t *testing.T) {
	_, store := newExportServiceForTest(t, nil)
	repo := newJobStoreStub()
	queue := &dispatcherStub{err: jobs.ErrNotStarted}
	svc := NewAllocationJobService(repo, queue, store, nil, nil, nil, AllocationJobConfig{})
	ctx := context.Background()

	_, err := svc.CreateJob(ctx, dto.AllocateRequest{Students: []byte("x")})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	req := allocateRequest()
	req.Formats = []string{"docx"}
	_, err = svc.CreateJob(ctx, req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.CreateJob(ctx, allocateRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnavailable.Code, appErrors.FromError(err).Code)
	failed, _ := repo.ListByStatus(ctx, models.JobStatusFailed, 10)
	assert.Len(t, failed, 1)

	_, err = svc.GetStatus(ctx, "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAllocationJobServiceRecoversAndCleansUp(t *testing.T) {
	_, store := newExportServiceForTest(t, nil)
	repo := newJobStoreStub()
	queue := &dispatcherStub{}
	svc := NewAllocationJobService(repo, queue, store, nil, nil, nil, AllocationJobConfig{ResultTTL: time.Hour})
	ctx := context.Background()

	created, err := svc.CreateJob(ctx, allocateRequest())
	require.NoError(t, err)
	old := time.Now().Add(-2 * time.Hour)
	repo.jobs["interrupted"] = &models.AllocationJob{ID: "interrupted", Status: models.JobStatusProcessing}
	repo.jobs["done"] = &models.AllocationJob{ID: "done", Status: models.JobStatusFinished, FinishedAt: &old}

	queue.jobs = nil
	assert.Equal(t, 2, svc.RecoverPendingJobs(ctx))
	ids := []string{queue.jobs[0].ID, queue.jobs[1].ID}
	assert.ElementsMatch(t, []string{created.JobID, "interrupted"}, ids)

	svc.cleanupExpired(ctx)
	assert.Equal(t, []string{"done"}, repo.deleted)
	exists, err := store.Exists(ctx, jobInputPath(created.JobID))
	require.NoError(t, err)
	assert.True(t, exists)
}

type flakyRunner struct {
	calls atomic.Int32
}

func (r *flakyRunner) Allocate(context.Context, dto.AllocateRequest) (*dto.AllocateResponse, error) {
	r.calls.Add(1)
	return nil, errors.New("storage offline")
}

func runJobThroughQueue(t *testing.T, workerRetries, queueRetries int) (*models.AllocationJob, int32) {
	t.Helper()
	_, store := newExportServiceForTest(t, nil)
	repo := newJobStoreStub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := &flakyRunner{}
	worker := NewAllocationWorker(repo, store, runner, workerRetries, nil)
	abandoned := make(chan struct{})
	var svc *AllocationJobService
	queue := jobs.NewQueue(JobTypeAllocation, worker.Handle, jobs.QueueConfig{
		MaxRetries: JobRetries(queueRetries),
		RetryDelay: 5 * time.Millisecond,
		OnFailure: func(ctx context.Context, job jobs.Job, err error) {
			svc.OnFailure(ctx, job, err)
			close(abandoned)
		},
	})
	svc = NewAllocationJobService(repo, queue, store, nil, nil, nil, AllocationJobConfig{})
	queue.Start(ctx)
	defer queue.Stop()

	created, err := svc.CreateJob(ctx, allocateRequest())
	require.NoError(t, err)

	select {
	case <-abandoned:
	case <-time.After(5 * time.Second):
		t.Fatal("queue never gave up on the job")
	}
	job, err := repo.GetByID(context.Background(), created.JobID)
	require.NoError(t, err)
	return job, runner.calls.Load()
}

func TestAllocationQueueWithoutRetriesFailsJob(t *testing.T) {
	job, calls := runJobThroughQueue(t, 0, 0)
	assert.Equal(t, int32(1), calls)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Contains(t, *job.ErrorMessage, "storage offline")
}

func TestAllocationQueueRetriesThenFailsJob(t *testing.T) {
	job, calls := runJobThroughQueue(t, 2, 2)
	assert.Equal(t, int32(3), calls)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.NotNil(t, job.FinishedAt)
}

func TestAllocationQueueFailureHookFailsJobLeftQueued(t *testing.T) {
	job, calls := runJobThroughQueue(t, 5, 0)
	assert.Equal(t, int32(1), calls)
	assert.Equal(t, models.JobStatusFailed, job.Status)
}

func TestJobRetriesClampsNegative(t *testing.T) {
	assert.Equal(t, 0, JobRetries(-1))
	assert.Equal(t, 0, JobRetries(0))
	assert.Equal(t, 3, JobRetries(3))
}
