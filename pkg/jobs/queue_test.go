package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	done := make(chan string, 2)
	q := NewQueue("allocations", func(_ context.Context, job Job) error {
		done <- job.ID
		return nil
	}, QueueConfig{Workers: 2})

	require.ErrorIs(t, q.Enqueue(Job{ID: "early"}), ErrNotStarted)

	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "a"}))
	require.NoError(t, q.Enqueue(Job{ID: "b"}))

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case id := <-done:
			seen[id] = true
		case <-time.After(2 * time.Second):
			t.Fatal("job not processed")
		}
	}
	assert.True(t, seen["a"] && seen["b"])
	assert.Eventually(t, func() bool { return q.Stats().Processed == 2 }, time.Second, 10*time.Millisecond)
}

func TestQueueRetriesThenReportsFailure(t *testing.T) {
	var attempts atomic.Int32
	failed := make(chan Job, 1)
	q := NewQueue("allocations", func(context.Context, Job) error {
		attempts.Add(1)
		return errors.New("storage down")
	}, QueueConfig{
		MaxRetries: 2,
		RetryDelay: 5 * time.Millisecond,
		OnFailure:  func(_ context.Context, job Job, _ error) { failed <- job },
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "run-1"}))

	select {
	case job := <-failed:
		assert.Equal(t, "run-1", job.ID)
		assert.Equal(t, 3, job.Attempt)
	case <-time.After(2 * time.Second):
		t.Fatal("failure hook not called")
	}
	assert.Equal(t, int32(3), attempts.Load())
	stats := q.Stats()
	assert.Equal(t, int64(2), stats.Retried)
	assert.Equal(t, int64(1), stats.Failed)
}
