package service

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/noah-isme/exam-room-allocator/internal/allocator"
	"github.com/noah-isme/exam-room-allocator/internal/dto"
	"github.com/noah-isme/exam-room-allocator/internal/models"
	appErrors "github.com/noah-isme/exam-room-allocator/pkg/errors"
	"github.com/noah-isme/exam-room-allocator/pkg/csvio"
	"github.com/noah-isme/exam-room-allocator/pkg/export"
	"github.com/noah-isme/exam-room-allocator/pkg/logger"
	"github.com/noah-isme/exam-room-allocator/pkg/tracing"
)

// AllocationConfig holds the defaults applied to requests that leave options unset.
type AllocationConfig struct {
	CohortOrder allocator.CohortOrder
	Formats     []string
	CacheTTL    time.Duration
}

// AllocationService parses uploads, runs the engine and stores its output.
type AllocationService struct {
	exporter  *ExportService
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	tracer    trace.Tracer
	logger    *zap.Logger
	cfg       AllocationConfig
	clock     allocator.Clock
}

// NewAllocationService constructs the service. cache and metrics may be nil.
func NewAllocationService(exporter *ExportService, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg AllocationConfig) *AllocationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.CohortOrder == "" {
		cfg.CohortOrder = allocator.OrderLargestFirst
	}
	return &AllocationService{
		exporter:  exporter,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		tracer:    tracing.Tracer(),
		logger:    logger,
		cfg:       cfg,
		clock:     time.Now,
	}
}

// Allocate runs one allocation over the uploaded datasets.
func (s *AllocationService) Allocate(ctx context.Context, req dto.AllocateRequest) (*dto.AllocateResponse, error) {
	if len(req.Students) == 0 || len(req.Courses) == 0 || len(req.Rooms) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "All three CSV files are required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid allocation options")
	}
	order, err := allocator.ParseCohortOrder(req.CohortOrder)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cohort order")
	}
	if req.CohortOrder == "" {
		order = s.cfg.CohortOrder
	}
	requested := req.Formats
	if len(requested) == 0 {
		requested = s.cfg.Formats
	}
	formats, err := export.ParseFormats(requested)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid output format")
	}

	fingerprint := Fingerprint(req.Students, req.Courses, req.Rooms, order, formats)
	ctx, span := s.tracer.Start(ctx, "allocation.run", trace.WithAttributes(
		attribute.String("allocation.fingerprint", fingerprint),
		attribute.String("allocation.cohort_order", string(order)),
	))
	defer span.End()

	var cached dto.AllocateResponse
	if hit, err := s.cache.Get(ctx, fingerprint, &cached); err == nil && hit {
		cached.Cached = true
		span.SetAttributes(attribute.Bool("allocation.cached", true))
		s.logger.Info("allocation served from cache", zap.String("run_id", cached.RunID), zap.String("fingerprint", fingerprint))
		return &cached, nil
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	log := logger.ForRun(s.logger, runID)
	span.SetAttributes(attribute.String("allocation.run_id", runID))

	started := time.Now()
	resp, err := s.run(ctx, runID, fingerprint, order, formats, req, log)
	var seated, shortages int
	if resp != nil {
		seated, shortages = resp.Summary.Seated, resp.Summary.Shortages
	}
	s.metrics.ObserveAllocation(seated, shortages, time.Since(started), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("allocation run failed", zap.Error(err))
		return nil, err
	}
	span.SetStatus(codes.Ok, "")

	if err := s.cache.Set(ctx, fingerprint, resp, s.cfg.CacheTTL); err != nil {
		log.Warn("allocation result not cached", zap.Error(err))
	}
	return resp, nil
}

func (s *AllocationService) run(ctx context.Context, runID, fingerprint string, order allocator.CohortOrder, formats []export.Format, req dto.AllocateRequest, log *zap.Logger) (*dto.AllocateResponse, error) {
	in, err := ParseInput(req.Students, req.Courses, req.Rooms)
	if err != nil {
		return nil, err
	}

	engine := allocator.NewEngine(allocator.EngineConfig{CohortOrder: order, Clock: s.clock}, log)
	sink := s.exporter.NewRun(runID, formats)
	result, err := engine.Run(ctx, in, sink)
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, appErrors.Wrap(ctxErr, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "allocation cancelled")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "allocation run failed")
	}
	if err := sink.WriteShortages(ctx, result.Shortages); err != nil {
		return nil, err
	}

	resp := &dto.AllocateResponse{
		RunID:       runID,
		Fingerprint: fingerprint,
		CohortOrder: string(order),
		Summary: dto.RunSummary{
			Students:  result.Students,
			Cohorts:   result.Cohorts,
			Courses:   result.Courses,
			Rooms:     len(result.Rooms),
			Slots:     len(result.Slots),
			Groups:    len(result.Groups),
			Seated:    result.Seated(),
			Unseated:  unseated(result.Shortages),
			Shortages: len(result.Shortages),
		},
		Files:       sink.Files(),
		OutputFiles: sink.OutputFiles(),
		Metrics:     nonNil(result.Metrics),
		Slots:       nonNil(result.Slots),
		Shortages:   nonNil(result.Shortages),
		Warnings:    nonNil(result.Warnings),
		GeneratedAt: s.clock().UTC(),
	}
	if _, err := s.exporter.SaveResult(ctx, runID, resp); err != nil {
		return nil, err
	}
	log.Info("allocation stored",
		zap.Int("files", len(resp.Files)),
		zap.Int("seated", resp.Summary.Seated),
		zap.Int("unseated", resp.Summary.Unseated),
	)
	return resp, nil
}

// ParseInput decodes the three uploaded datasets into engine input.
func ParseInput(studentsCSV, coursesCSV, roomsCSV []byte) (allocator.Input, error) {
	students, err := parseDataset(DatasetStudents, studentsCSV)
	if err != nil {
		return allocator.Input{}, err
	}
	courses, err := parseDataset(DatasetCourses, coursesCSV)
	if err != nil {
		return allocator.Input{}, err
	}
	rooms, err := parseDataset(DatasetRooms, roomsCSV)
	if err != nil {
		return allocator.Input{}, err
	}
	return allocator.Input{Students: students, Courses: courses, Rooms: rooms}, nil
}

func parseDataset(kind string, data []byte) ([]models.Record, error) {
	rows, err := csvio.ReadMaps(bytes.NewReader(data))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidCSV.Code, appErrors.ErrInvalidCSV.Status, fmt.Sprintf("%s.csv could not be parsed", kind))
	}
	return models.NormalizeRecords(rows), nil
}

// Fingerprint identifies an allocation request by its inputs and options.
func Fingerprint(students, courses, rooms []byte, order allocator.CohortOrder, formats []export.Format) string {
	h, _ := blake2b.New256(nil)
	for _, part := range [][]byte{students, courses, rooms} {
		_, _ = fmt.Fprintf(h, "%d:", len(part))
		_, _ = h.Write(part)
	}
	names := make([]string, 0, len(formats))
	for _, f := range formats {
		names = append(names, string(f))
	}
	_, _ = fmt.Fprintf(h, "order=%s;formats=%s", order, strings.Join(names, ","))
	return hex.EncodeToString(h.Sum(nil))
}

func unseated(shortages []models.Shortage) int {
	total := 0
	for _, s := range shortages {
		total += s.Unseated
	}
	return total
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
