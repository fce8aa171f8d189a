package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-room-allocator/internal/allocator"
	"github.com/noah-isme/exam-room-allocator/internal/dto"
	appErrors "github.com/noah-isme/exam-room-allocator/pkg/errors"
	"github.com/noah-isme/exam-room-allocator/pkg/export"
)

const (
	studentsCSV = "RollNo,Name,Department,Section,Year\n" +
		"CS001,Asha,CS,A,2\nCS002,Bala,CS,A,2\nCS003,Chitra,CS,A,2\n" +
		"CS101,Dev,CS,B,2\nCS102,Esha,CS,B,2\n" +
		"EE001,Farah,EE,A,1\nEE002,Gopi,EE,A,1\n"
	coursesCSV = "Department,CourseCode,CourseName,ExamDate,ExamTime,Year\n" +
		"CS,CS201,Algorithms,2024-05-01,09:00 AM,2\n" +
		"EE,EE101,Circuits,2024-05-01,09:00 AM,1\n"
	roomsCSV = "RoomNo,NoOfBenches,BenchCapacity\nR1,2,2\nR2,3,1\n"
)

type memoryResultCache struct {
	entries map[string][]byte
}

func newMemoryResultCache() *memoryResultCache {
	return &memoryResultCache{entries: make(map[string][]byte)}
}

func (c *memoryResultCache) Get(_ context.Context, fingerprint string, dest interface{}) error {
	raw, ok := c.entries[fingerprint]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memoryResultCache) Set(_ context.Context, fingerprint string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[fingerprint] = raw
	return nil
}

func (c *memoryResultCache) Purge(context.Context) (int, error) {
	n := len(c.entries)
	c.entries = make(map[string][]byte)
	return n, nil
}

func newAllocationServiceForTest(t *testing.T, cache *CacheService) (*AllocationService, *ExportService, *MetricsService) {
	t.Helper()
	exporter, _ := newExportServiceForTest(t, cache)
	metrics := NewMetricsService()
	svc := NewAllocationService(exporter, cache, metrics, nil, nil, AllocationConfig{Formats: []string{"csv"}})
	svc.clock = func() time.Time { return time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC) }
	return svc, exporter, metrics
}

func allocateRequest() dto.AllocateRequest {
	return dto.AllocateRequest{
		Students: []byte(studentsCSV),
		Courses:  []byte(coursesCSV),
		Rooms:    []byte(roomsCSV),
	}
}

func TestAllocationServiceAllocate(t *testing.T) {
	svc, exporter, metrics := newAllocationServiceForTest(t, nil)

	resp, err := svc.Allocate(context.Background(), allocateRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, resp.RunID)
	assert.Len(t, resp.Fingerprint, 64)
	assert.Equal(t, string(allocator.OrderLargestFirst), resp.CohortOrder)
	assert.False(t, resp.Cached)
	assert.Equal(t, dto.RunSummary{Students: 7, Cohorts: 3, Courses: 2, Rooms: 2, Slots: 1, Groups: 2, Seated: 7}, resp.Summary)
	assert.Empty(t, resp.Shortages)
	assert.Empty(t, resp.Warnings)
	require.Len(t, resp.Metrics, 2)
	assert.Equal(t, "100.00", resp.Metrics[0].AvgUtilization.String())

	assert.Equal(t, []string{
		"allocation_CS_2_2024-05-01_09_00_AM.csv",
		"allocation_EE_1_2024-05-01_09_00_AM.csv",
		"metrics.csv",
	}, resp.FileNames())
	assert.Contains(t, resp.OutputFiles, "allocation_CS_2_2024-05-01_09_00_AM.csv")
	assert.Contains(t, resp.OutputFiles, "metrics.csv")

	stored, err := exporter.LoadResult(context.Background(), RunPrefix(resp.RunID)+"/result.json")
	require.NoError(t, err)
	assert.Equal(t, resp.Summary, stored.Summary)

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(1), snapshot.AllocationRuns)
	assert.Equal(t, uint64(7), snapshot.StudentsSeated)
}

func TestAllocationServiceReportsShortages(t *testing.T) {
	svc, _, metrics := newAllocationServiceForTest(t, nil)
	req := allocateRequest()
	req.Rooms = []byte("RoomNo,NoOfBenches,BenchCapacity\nR1,1,2\n")

	resp, err := svc.Allocate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 2, resp.Summary.Seated)
	assert.Equal(t, 5, resp.Summary.Unseated)
	assert.NotEmpty(t, resp.Shortages)
	assert.Contains(t, resp.FileNames(), "shortages.csv")
	assert.Equal(t, uint64(len(resp.Shortages)), metrics.Snapshot().Shortages)
}

func TestAllocationServiceUsesCache(t *testing.T) {
	cache := NewCacheService(newMemoryResultCache(), nil, time.Minute, nil, true)
	svc, _, _ := newAllocationServiceForTest(t, cache)

	first, err := svc.Allocate(context.Background(), allocateRequest())
	require.NoError(t, err)
	second, err := svc.Allocate(context.Background(), allocateRequest())
	require.NoError(t, err)

	assert.True(t, second.Cached)
	assert.Equal(t, first.RunID, second.RunID)
	assert.Equal(t, first.Summary, second.Summary)

	req := allocateRequest()
	req.CohortOrder = string(allocator.OrderInsertion)
	third, err := svc.Allocate(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.NotEqual(t, first.Fingerprint, third.Fingerprint)
}

func TestAllocationServiceRequiresAllFiles(t *testing.T) {
	svc, _, _ := newAllocationServiceForTest(t, nil)
	req := allocateRequest()
	req.Rooms = nil

	_, err := svc.Allocate(context.Background(), req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, "All three CSV files are required", appErr.Message)
}

func TestAllocationServiceRejectsBadOptions(t *testing.T) {
	svc, _, _ := newAllocationServiceForTest(t, nil)

	req := allocateRequest()
	req.CohortOrder = "random"
	_, err := svc.Allocate(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	req = allocateRequest()
	req.Formats = []string{"xlsx"}
	_, err = svc.Allocate(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAllocationServiceSurfacesConfigurationErrors(t *testing.T) {
	svc, _, metrics := newAllocationServiceForTest(t, nil)
	req := allocateRequest()
	req.Rooms = []byte("RoomNo,NoOfBenches,BenchCapacity\nR1,0,2\n")

	_, err := svc.Allocate(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNoUsableRooms))
	assert.Equal(t, 422, appErrors.FromError(err).Status)
	assert.Equal(t, uint64(1), metrics.Snapshot().AllocationFailures)
}

func TestFingerprintDependsOnOptions(t *testing.T) {
	a := Fingerprint([]byte("s"), []byte("c"), []byte("r"), allocator.OrderLargestFirst, []export.Format{export.FormatCSV})
	b := Fingerprint([]byte("s"), []byte("c"), []byte("r"), allocator.OrderLargestFirst, []export.Format{export.FormatCSV, export.FormatPDF})
	c := Fingerprint([]byte("sc"), []byte(""), []byte("r"), allocator.OrderLargestFirst, []export.Format{export.FormatCSV})
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, a, Fingerprint([]byte("s"), []byte("c"), []byte("r"), allocator.OrderLargestFirst, []export.Format{export.FormatCSV}))
}
