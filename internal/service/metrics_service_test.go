package service

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceSnapshot(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodPost, "/api/allocate", http.StatusOK, 20*time.Millisecond)
	m.ObserveHTTPRequest(http.MethodPost, "/api/allocate", http.StatusBadRequest, 10*time.Millisecond)
	m.ObserveAllocation(40, 2, time.Second, nil)
	m.ObserveAllocation(0, 0, time.Millisecond, errors.New("boom"))

	snapshot := m.Snapshot()
	assert.Equal(t, uint64(2), snapshot.RequestsTotal)
	assert.InDelta(t, 15.0, snapshot.AverageRequestDurationMs, 0.001)
	assert.Equal(t, uint64(2), snapshot.AllocationRuns)
	assert.Equal(t, uint64(1), snapshot.AllocationFailures)
	assert.Equal(t, uint64(40), snapshot.StudentsSeated)
	assert.Equal(t, uint64(2), snapshot.Shortages)
	assert.Positive(t, snapshot.Goroutines)
}

func TestMetricsServiceHandlerExposesCollectors(t *testing.T) {
	m := NewMetricsService()
	m.ObserveAllocation(3, 0, time.Millisecond, nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `allocation_runs_total{outcome="succeeded"} 1`)
	assert.Contains(t, rec.Body.String(), "allocation_students_seated_total 3")

	var nilMetrics *MetricsService
	rec = httptest.NewRecorder()
	nilMetrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
