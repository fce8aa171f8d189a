package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-room-allocator/internal/dto"
	appErrors "github.com/noah-isme/exam-room-allocator/pkg/errors"
)

func TestCSVValidationAcceptsCaseInsensitiveHeaders(t *testing.T) {
	svc := NewCSVValidationService(nil, nil)
	resp, err := svc.Validate(context.Background(), dto.ValidateCSVRequest{
		Type: DatasetRooms,
		Data: []byte(" roomno ,NOOFBENCHES,BenchCapacity\nR1,10,2\n"),
	})
	require.NoError(t, err)
	assert.True(t, resp.Valid)
	assert.Empty(t, resp.Errors)
}

func TestCSVValidationReportsMissingHeaders(t *testing.T) {
	svc := NewCSVValidationService(nil, nil)
	resp, err := svc.Validate(context.Background(), dto.ValidateCSVRequest{
		Type: DatasetStudents,
		Data: []byte("RollNo,Department\n1,CS\n"),
	})
	require.NoError(t, err)
	assert.False(t, resp.Valid)
	assert.Equal(t, []string{"students.csv missing headers: Name, Section, Year"}, resp.Errors)
}

func TestCSVValidationEmptyFile(t *testing.T) {
	svc := NewCSVValidationService(nil, nil)
	resp, err := svc.Validate(context.Background(), dto.ValidateCSVRequest{Type: DatasetCourses, Data: nil})
	require.NoError(t, err)
	assert.False(t, resp.Valid)
	assert.Equal(t, []string{"CSV has no headers"}, resp.Errors)
}

func TestCSVValidationUnknownType(t *testing.T) {
	svc := NewCSVValidationService(nil, nil)
	_, err := svc.Validate(context.Background(), dto.ValidateCSVRequest{Type: "invigilators", Data: []byte("a\n")})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Contains(t, err.Error(), "unknown csv type: invigilators")
}
