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
	var processed atomic.Int32
	done := make(chan struct{})

	queue := NewQueue("test", func(ctx context.Context, job Job) error {
		if processed.Add(1) == 3 {
			close(done)
		}
		return nil
	}, QueueConfig{Workers: 2})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue.Start(ctx)
	defer queue.Stop()

	for i := 0; i < 3; i++ {
		require.NoError(t, queue.Enqueue(Job{ID: "job", Type: "test.job", Payload: i}))
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("jobs were not processed in time")
	}
	assert.Equal(t, int32(3), processed.Load())
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	queue := NewQueue("test", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})
	err := queue.Enqueue(Job{ID: "early"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not started")
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var attempts atomic.Int32
	done := make(chan struct{})

	queue := NewQueue("test", func(ctx context.Context, job Job) error {
		if attempts.Add(1) < 3 {
			return errors.New("transient failure")
		}
		close(done)
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 5, RetryDelay: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue.Start(ctx)
	defer queue.Stop()

	require.NoError(t, queue.Enqueue(Job{ID: "flaky", Type: "test.job"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried to completion")
	}
	assert.Equal(t, int32(3), attempts.Load())
}

func TestQueueReportsFailedOutcomeAfterRetriesExhausted(t *testing.T) {
	var mu sync.Mutex
	var outcomes []string
	done := make(chan struct{})

	queue := NewQueue("test", func(ctx context.Context, job Job) error {
		return errors.New("permanent failure")
	}, QueueConfig{
		Workers:    1,
		MaxRetries: 2,
		RetryDelay: 5 * time.Millisecond,
		OnJobDone: func(outcome string) {
			mu.Lock()
			outcomes = append(outcomes, outcome)
			mu.Unlock()
			close(done)
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue.Start(ctx)
	defer queue.Stop()

	require.NoError(t, queue.Enqueue(Job{ID: "doomed", Type: "test.job"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job outcome was not reported")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"failed"}, outcomes)
}

func TestQueueDepthCallback(t *testing.T) {
	block := make(chan struct{})
	var depths []int
	var mu sync.Mutex

	queue := NewQueue("test", func(ctx context.Context, job Job) error {
		<-block
		return nil
	}, QueueConfig{
		Workers:    1,
		BufferSize: 4,
		OnDepthChange: func(depth int) {
			mu.Lock()
			depths = append(depths, depth)
			mu.Unlock()
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue.Start(ctx)

	require.NoError(t, queue.Enqueue(Job{ID: "a"}))
	require.NoError(t, queue.Enqueue(Job{ID: "b"}))
	close(block)
	queue.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.NotEmpty(t, depths)
}
