package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-room-allocator/internal/dto"
	appErrors "github.com/noah-isme/exam-room-allocator/pkg/errors"
	"github.com/noah-isme/exam-room-allocator/pkg/csvio"
)

// Dataset kinds accepted by the upload endpoints.
const (
	DatasetStudents = "students"
	DatasetCourses  = "courses"
	DatasetRooms    = "rooms"
)

var requiredHeaders = map[string][]string{
	DatasetStudents: {"RollNo", "Name", "Department", "Section", "Year"},
	DatasetCourses:  {"Department", "CourseCode", "CourseName", "ExamDate", "ExamTime", "Year"},
	DatasetRooms:    {"RoomNo", "NoOfBenches", "BenchCapacity"},
}

// RequiredHeaders returns the header names a dataset must carry.
func RequiredHeaders(kind string) ([]string, bool) {
	headers, ok := requiredHeaders[kind]
	return headers, ok
}

// CSVValidationService checks uploaded files before they reach the allocator.
type CSVValidationService struct {
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCSVValidationService constructs the service.
func NewCSVValidationService(validate *validator.Validate, logger *zap.Logger) *CSVValidationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CSVValidationService{validator: validate, logger: logger}
}

// Validate reports missing required headers. Header matching ignores case and surrounding spaces.
func (s *CSVValidationService) Validate(_ context.Context, req dto.ValidateCSVRequest) (*dto.ValidateCSVResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("unknown csv type: %s", req.Type))
	}

	headers, err := csvio.Headers(bytes.NewReader(req.Data))
	if err != nil {
		if errors.Is(err, csvio.ErrEmpty) {
			return &dto.ValidateCSVResponse{Valid: false, Errors: []string{"CSV has no headers"}}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidCSV.Code, appErrors.ErrInvalidCSV.Status, fmt.Sprintf("%s.csv could not be read", req.Type))
	}

	missing := MissingHeaders(req.Type, headers)
	if len(missing) > 0 {
		s.logger.Info("csv headers missing", zap.String("type", req.Type), zap.Strings("missing", missing))
		return &dto.ValidateCSVResponse{
			Valid:   false,
			Errors:  []string{fmt.Sprintf("%s.csv missing headers: %s", req.Type, strings.Join(missing, ", "))},
			Headers: headers,
		}, nil
	}
	return &dto.ValidateCSVResponse{Valid: true, Errors: []string{}, Headers: headers}, nil
}

// MissingHeaders lists the required headers of kind absent from headers, in declaration order.
func MissingHeaders(kind string, headers []string) []string {
	present := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		present[strings.ToLower(strings.TrimSpace(h))] = struct{}{}
	}
	var missing []string
	for _, required := range requiredHeaders[kind] {
		if _, ok := present[strings.ToLower(required)]; !ok {
			missing = append(missing, required)
		}
	}
	return missing
}
