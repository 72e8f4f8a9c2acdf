package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var processed int32
	done := make(chan struct{})

	q := NewQueue("test", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&processed, 1) == 3 {
			close(done)
		}
		return nil
	}, QueueConfig{Workers: 2, BufferSize: 8})

	q.Start(context.Background())
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(Job{ID: "j", Type: "t"}))
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("jobs not processed in time")
	}
	assert.Equal(t, 0, q.Stop(time.Second))
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("test", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job{ID: "j"}))
}

func TestQueueFullDoesNotBlock(t *testing.T) {
	block := make(chan struct{})
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		<-block
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())
	defer func() {
		close(block)
		q.Stop(time.Second)
	}()

	// First job occupies the worker, second fills the buffer.
	require.NoError(t, q.Enqueue(Job{ID: "1"}))
	require.Eventually(t, func() bool {
		return q.Enqueue(Job{ID: "2"}) == nil
	}, time.Second, 10*time.Millisecond)

	assert.ErrorIs(t, q.Enqueue(Job{ID: "3"}), ErrQueueFull)
}

func TestQueueRetries(t *testing.T) {
	var attempts int32
	done := make(chan struct{})

	q := NewQueue("test", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return assert.AnError
		}
		close(done)
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 5, RetryDelay: time.Millisecond})

	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job{ID: "j"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job not retried to success")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	q.Stop(time.Second)
}

func TestQueueStopRejectsNewJobs(t *testing.T) {
	q := NewQueue("test", func(context.Context, Job) error { return nil }, QueueConfig{})
	q.Start(context.Background())
	assert.Equal(t, 0, q.Stop(time.Second))
	assert.Error(t, q.Enqueue(Job{ID: "late"}))
}
