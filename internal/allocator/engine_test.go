package allocator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-room-allocator/internal/models"
	appErrors "github.com/noah-isme/exam-room-allocator/pkg/errors"
)

type recordingSink struct {
	groups    []OutputGroup
	metrics   []models.MetricsRow
	failGroup error
}

func (s *recordingSink) WriteGroup(_ context.Context, group OutputGroup) error {
	if s.failGroup != nil {
		return s.failGroup
	}
	s.groups = append(s.groups, group)
	return nil
}

func (s *recordingSink) WriteMetrics(_ context.Context, rows []models.MetricsRow) error {
	s.metrics = append(s.metrics, rows...)
	return nil
}

// steppingClock advances by step on every reading.
func steppingClock(step time.Duration) Clock {
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		current := now
		now = now.Add(step)
		return current
	}
}

func engineInput() Input {
	var students []models.Record
	students = append(students, studentRecords("CS", "2", "A", 25)...)
	students = append(students, studentRecords("CS", "2", "B", 15)...)
	students = append(students, studentRecords("EE", "3", "A", 12)...)
	students = append(students, models.Record{"department": "EE", "year": "3", "section": "A"})
	return Input{
		Students: students,
		Courses: []models.Record{
			courseRecord("CS", "2", "2024-05-01", "09:00"),
			courseRecord("EE", "3", "2024-05-01", "09:00"),
			courseRecord("EE", "3", "2024-05-02", "14:00"),
			courseRecord("", "", "2024-05-03", "09:00"),
		},
		Rooms: []models.Record{
			roomRecord("R101", "15", "2"),
			roomRecord("R102", "10", "2"),
			roomRecord("R103", "0", "2"),
			roomRecord("R104", "6", "2"),
		},
	}
}

func TestEngineRunProducesGroupsAndMetrics(t *testing.T) {
	engine := NewEngine(EngineConfig{Clock: steppingClock(250 * time.Millisecond)}, nil)
	sink := &recordingSink{}

	result, err := engine.Run(context.Background(), engineInput(), sink)
	require.NoError(t, err)

	assert.Equal(t, 52, result.Students)
	assert.Equal(t, 3, result.Cohorts)
	assert.Len(t, result.Rooms, 3)
	assert.Len(t, result.Warnings, 2)
	require.Len(t, result.Slots, 3)
	assert.Equal(t, 0, result.Slots[2].Groups)

	require.Len(t, result.Groups, 3)
	assert.Equal(t, result.Groups, sink.groups)
	assert.Equal(t, "CS", result.Groups[0].Department)
	assert.Equal(t, 40, result.Groups[0].Students())
	assert.Equal(t, "EE", result.Groups[1].Department)
	assert.Equal(t, models.SlotKey{Date: "2024-05-02", Time: "14:00"}, result.Groups[2].Slot)
	assert.Equal(t, 52+12, result.Seated())
	assert.Empty(t, result.Shortages)

	require.Len(t, result.Metrics, 3)
	assert.Equal(t, result.Metrics, sink.metrics)
	for _, m := range result.Metrics {
		assert.Equal(t, 0, m.Conflicts)
		assert.Equal(t, 3, m.Timeslots)
	}
	// Slot one seats 52 students in all three rooms (62 seats).
	assert.Equal(t, "83.87", result.Metrics[0].AvgUtilization.String())
	assert.Equal(t, result.Metrics[0].AvgUtilization, result.Metrics[1].AvgUtilization)
	assert.Equal(t, "100.00", result.Metrics[2].AvgUtilization.String())
	assert.Greater(t, float64(result.Metrics[1].Runtime), float64(result.Metrics[0].Runtime))
}

func TestEngineRunIsDeterministic(t *testing.T) {
	clock := func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	first, err := NewEngine(EngineConfig{Clock: clock}, nil).Run(context.Background(), engineInput(), nil)
	require.NoError(t, err)
	second, err := NewEngine(EngineConfig{Clock: clock}, nil).Run(context.Background(), engineInput(), nil)
	require.NoError(t, err)

	assert.Equal(t, first.Groups, second.Groups)
	assert.Equal(t, first.Metrics, second.Metrics)
}

func TestEngineRunFailsWithoutRooms(t *testing.T) {
	in := engineInput()
	in.Rooms = []models.Record{roomRecord("R1", "0", "4")}
	sink := &recordingSink{}

	_, err := NewEngine(EngineConfig{}, nil).Run(context.Background(), in, sink)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNoUsableRooms))
	assert.Empty(t, sink.groups)
}

func TestEngineRunPropagatesSinkErrors(t *testing.T) {
	sink := &recordingSink{failGroup: errors.New("disk full")}
	_, err := NewEngine(EngineConfig{}, nil).Run(context.Background(), engineInput(), sink)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestEngineRunStopsBetweenSlotsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink := &recordingSink{}

	result, err := NewEngine(EngineConfig{}, nil).Run(ctx, engineInput(), sink)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, result)
	assert.Empty(t, sink.groups)
}
