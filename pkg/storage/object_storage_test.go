package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemStorage(t *testing.T) *ObjectStorage {
	t.Helper()
	store, err := NewObjectStorage(context.Background(), "mem://localhost/allocations-"+uuid.NewString())
	require.NoError(t, err)
	return store
}

func TestObjectStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newMemStorage(t)
	require.NoError(t, store.Ping(ctx))

	rel, err := store.Save(ctx, "runs/run-1/metrics.csv", []byte("Department\nCS\n"))
	require.NoError(t, err)
	assert.Equal(t, "runs/run-1/metrics.csv", rel)

	ok, err := store.Exists(ctx, rel)
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := store.Open(ctx, rel)
	require.NoError(t, err)
	assert.Equal(t, "Department\nCS\n", string(data))

	require.NoError(t, store.Delete(ctx, rel))
	_, err = store.Open(ctx, rel)
	require.ErrorIs(t, err, ErrObjectNotFound)
	require.NoError(t, store.Delete(ctx, rel))
}

func TestObjectStorageRejectsTraversal(t *testing.T) {
	store := newMemStorage(t)
	_, err := store.Save(context.Background(), "../escape.csv", []byte("x"))
	require.Error(t, err)
	_, err = store.Save(context.Background(), "", []byte("x"))
	require.Error(t, err)
}

func TestObjectStorageCleanup(t *testing.T) {
	ctx := context.Background()
	store := newMemStorage(t)
	_, err := store.Save(ctx, "runs/old/metrics.csv", []byte("x"))
	require.NoError(t, err)

	deleted, err := store.CleanupOlderThan(ctx, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, deleted)

	store.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	deleted, err = store.CleanupOlderThan(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"runs/old/metrics.csv"}, deleted)
}
