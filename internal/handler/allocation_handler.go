package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-room-allocator/internal/dto"
	"github.com/noah-isme/exam-room-allocator/internal/service"
	appErrors "github.com/noah-isme/exam-room-allocator/pkg/errors"
	"github.com/noah-isme/exam-room-allocator/pkg/response"
)

type allocationService interface {
	Allocate(ctx context.Context, req dto.AllocateRequest) (*dto.AllocateResponse, error)
}

type allocationJobService interface {
	CreateJob(ctx context.Context, req dto.AllocateRequest) (*dto.CreateJobResponse, error)
	GetStatus(ctx context.Context, id string) (*dto.JobStatusResponse, error)
}

type downloadResolver interface {
	Resolve(ctx context.Context, token string) (*service.Download, error)
}

// AllocationHandler exposes allocation runs, background jobs and file downloads.
type AllocationHandler struct {
	allocations allocationService
	jobs        allocationJobService
	downloads   downloadResolver
	maxUpload   int64
}

// NewAllocationHandler constructs the handler. jobs may be nil when background jobs are disabled.
func NewAllocationHandler(allocations allocationService, jobs allocationJobService, downloads downloadResolver, maxUpload int64) *AllocationHandler {
	return &AllocationHandler{allocations: allocations, jobs: jobs, downloads: downloads, maxUpload: maxUpload}
}

// Allocate godoc
// @Summary Allocate exam rooms
// @Description Seats every cohort with an exam in each slot and returns the generated files.
// @Tags Allocation
// @Accept multipart/form-data
// @Produce json
// @Param students formData file true "students.csv"
// @Param courses formData file true "courses.csv"
// @Param rooms formData file true "rooms.csv"
// @Param cohortOrder formData string false "largest_first or insertion"
// @Param formats formData string false "comma separated output formats (csv, pdf)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /allocate [post]
func (h *AllocationHandler) Allocate(c *gin.Context) {
	req, err := h.bindAllocateRequest(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.allocations.Allocate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// CreateJob godoc
// @Summary Queue an allocation run
// @Tags Allocation
// @Accept multipart/form-data
// @Produce json
// @Param students formData file true "students.csv"
// @Param courses formData file true "courses.csv"
// @Param rooms formData file true "rooms.csv"
// @Param cohortOrder formData string false "largest_first or insertion"
// @Param formats formData string false "comma separated output formats (csv, pdf)"
// @Success 202 {object} response.Envelope
// @Router /allocations/jobs [post]
func (h *AllocationHandler) CreateJob(c *gin.Context) {
	if h.jobs == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnavailable, "background allocation jobs are disabled"))
		return
	}
	req, err := h.bindAllocateRequest(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	job, err := h.jobs.CreateJob(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job)
}

// JobStatus godoc
// @Summary Allocation job status
// @Tags Allocation
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /allocations/jobs/{id} [get]
func (h *AllocationHandler) JobStatus(c *gin.Context) {
	if h.jobs == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnavailable, "background allocation jobs are disabled"))
		return
	}
	status, err := h.jobs.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status)
}

// Download godoc
// @Summary Download a generated file
// @Tags Allocation
// @Produce text/csv
// @Produce application/pdf
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /allocations/files/{token} [get]
func (h *AllocationHandler) Download(c *gin.Context) {
	file, err := h.downloads.Resolve(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

func (h *AllocationHandler) bindAllocateRequest(c *gin.Context) (dto.AllocateRequest, error) {
	req := dto.AllocateRequest{
		CohortOrder: c.PostForm("cohortOrder"),
		Formats:     formList(c, "formats"),
		RequestedBy: actorID(c),
	}
	var err error
	if req.Students, err = readUpload(c, "students", h.maxUpload); err != nil {
		return req, err
	}
	if req.Courses, err = readUpload(c, "courses", h.maxUpload); err != nil {
		return req, err
	}
	if req.Rooms, err = readUpload(c, "rooms", h.maxUpload); err != nil {
		return req, err
	}
	if req.Students == nil || req.Courses == nil || req.Rooms == nil {
		return req, appErrors.Clone(appErrors.ErrValidation, "All three CSV files are required")
	}
	return req, nil
}
