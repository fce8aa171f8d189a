package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/exam-room-allocator/pkg/errors"
)

func TestResultCacheRepositoryDisabled(t *testing.T) {
	repo := NewResultCacheRepository(nil, nil)
	ctx := context.Background()

	var dest map[string]string
	err := repo.Get(ctx, "abc", &dest)
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))
	require.NoError(t, repo.Set(ctx, "abc", map[string]string{"a": "b"}, time.Minute))
	removed, err := repo.Purge(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
	require.NoError(t, repo.Ping(ctx))
	require.NoError(t, repo.Close())
	assert.Equal(t, "allocation:result:abc", repo.Key("abc"))
}

func TestResultCacheRepositoryUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	repo := NewResultCacheRepository(client, nil)
	defer repo.Close()

	var dest map[string]string
	err := repo.Get(context.Background(), "abc", &dest)
	require.Error(t, err)
	assert.False(t, errors.Is(err, appErrors.ErrCacheMiss))
	assert.Error(t, repo.Ping(context.Background()))
}
