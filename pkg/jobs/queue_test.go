package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var handled int32
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&handled, 1)
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(Job{Type: "notification"}))
	}
	require.True(t, q.Drain(time.Second))
	assert.Equal(t, int32(5), atomic.LoadInt32(&handled))
}

func TestQueueRetriesThenGivesUp(t *testing.T) {
	var attempts int32
	var mu sync.Mutex
	var dropped []Job
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("store unavailable")
	}, QueueConfig{
		Workers:    1,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		OnGiveUp: func(job Job, err error) {
			mu.Lock()
			dropped = append(dropped, job)
			mu.Unlock()
		},
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1"}))
	require.True(t, q.Drain(time.Second))

	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, dropped, 1)
	assert.Equal(t, "job-1", dropped[0].ID)
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("idle", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job{}))
}
