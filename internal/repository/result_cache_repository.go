package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/exam-room-allocator/pkg/errors"
)

const resultKeyPrefix = "allocation:result:"

// ResultCacheRepository stores allocation responses in Redis keyed by input fingerprint.
type ResultCacheRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewResultCacheRepository constructs a cache repository. A nil client disables caching.
func NewResultCacheRepository(client *redis.Client, logger *zap.Logger) *ResultCacheRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultCacheRepository{client: client, logger: logger}
}

// Key namespaces a fingerprint.
func (r *ResultCacheRepository) Key(fingerprint string) string {
	return resultKeyPrefix + fingerprint
}

// Get retrieves and unmarshals the cached value into dest.
func (r *ResultCacheRepository) Get(ctx context.Context, fingerprint string, dest interface{}) error {
	if r.client == nil {
		return appErrors.ErrCacheMiss
	}
	key := r.Key(fingerprint)

	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return appErrors.ErrCacheMiss
		}
		return fmt.Errorf("redis get %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("unmarshal cache value for %s: %w", key, err)
	}
	return nil
}

// Set marshals value and stores it with the given TTL.
func (r *ResultCacheRepository) Set(ctx context.Context, fingerprint string, value interface{}, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}
	key := r.Key(fingerprint)

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	r.logger.Debug("allocation result cached", zap.String("key", key), zap.Int("bytes", len(payload)))
	return nil
}

// Purge removes every cached allocation result.
func (r *ResultCacheRepository) Purge(ctx context.Context) (int, error) {
	if r.client == nil {
		return 0, nil
	}

	removed := 0
	iter := r.client.Scan(ctx, 0, resultKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if err := r.client.Del(ctx, key).Err(); err != nil {
			return removed, fmt.Errorf("redis delete %s: %w", key, err)
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis scan %s: %w", resultKeyPrefix, err)
	}
	return removed, nil
}

// Ping reports whether the cache is reachable.
func (r *ResultCacheRepository) Ping(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying Redis connection if present.
func (r *ResultCacheRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
