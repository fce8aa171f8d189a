package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingResultCache struct{}

func (failingResultCache) Get(context.Context, string, interface{}) error {
	return errors.New("redis down")
}

func (failingResultCache) Set(context.Context, string, interface{}, time.Duration) error {
	return errors.New("redis down")
}

func (failingResultCache) Purge(context.Context) (int, error) {
	return 0, errors.New("redis down")
}

func TestCacheServiceHitMissAndMetrics(t *testing.T) {
	metrics := NewMetricsService()
	svc := NewCacheService(newMemoryResultCache(), metrics, 0, nil, true)
	ctx := context.Background()

	var dest map[string]int
	hit, err := svc.Get(ctx, "fp", &dest)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(ctx, "fp", map[string]int{"seated": 7}, 0))
	hit, err = svc.Get(ctx, "fp", &dest)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 7, dest["seated"])

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(1), snapshot.CacheHits)
	assert.Equal(t, uint64(1), snapshot.CacheMisses)
	assert.InDelta(t, 0.5, snapshot.CacheHitRatio, 0.0001)

	require.NoError(t, svc.Invalidate(ctx))
	hit, err = svc.Get(ctx, "fp", &dest)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCacheServiceDisabledAndFailing(t *testing.T) {
	disabled := NewCacheService(newMemoryResultCache(), nil, time.Minute, nil, false)
	assert.False(t, disabled.Enabled())
	hit, err := disabled.Get(context.Background(), "fp", &struct{}{})
	require.NoError(t, err)
	assert.False(t, hit)

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())

	failing := NewCacheService(failingResultCache{}, nil, time.Minute, nil, true)
	_, err = failing.Get(context.Background(), "fp", &struct{}{})
	require.Error(t, err)
	require.Error(t, failing.Set(context.Background(), "fp", 1, 0))
	require.Error(t, failing.Invalidate(context.Background()))
}
