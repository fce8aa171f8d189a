package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/exam-room-allocator/pkg/errors"
)

// ResultCache abstracts persistence for cached allocation responses.
type ResultCache interface {
	Get(ctx context.Context, fingerprint string, dest interface{}) error
	Set(ctx context.Context, fingerprint string, value interface{}, ttl time.Duration) error
	Purge(ctx context.Context) (int, error)
}

// CacheService orchestrates result cache operations and related metrics.
type CacheService struct {
	repo       ResultCache
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo ResultCache, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 15 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get attempts to retrieve a cached entry. It returns true when the cache was hit.
func (s *CacheService) Get(ctx context.Context, fingerprint string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, fingerprint, dest)
	duration := time.Since(start)
	if err != nil {
		s.metrics.RecordCacheOperation(false, duration)
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return false, nil
		}
		s.logger.Warn("cache get failed", zap.String("fingerprint", fingerprint), zap.Error(err))
		return false, err
	}
	s.metrics.RecordCacheOperation(true, duration)
	return true, nil
}

// Set stores the value in cache.
func (s *CacheService) Set(ctx context.Context, fingerprint string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, fingerprint, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("fingerprint", fingerprint), zap.Error(err))
	}
	return err
}

// Invalidate drops every cached result, e.g. after stored files were cleaned up.
func (s *CacheService) Invalidate(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	removed, err := s.repo.Purge(ctx)
	if err != nil {
		s.logger.Warn("cache invalidate failed", zap.Error(err))
		return err
	}
	s.logger.Info("result cache purged", zap.Int("keys", removed))
	return nil
}
