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
	var processed int32
	done := make(chan struct{}, 3)
	q := NewQueue("test", func(_ context.Context, job Job) error {
		atomic.AddInt32(&processed, 1)
		done <- struct{}{}
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(Job{Type: "noop"}))
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("job not processed")
		}
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&processed))
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("idle", func(context.Context, Job) error { return nil }, QueueConfig{})
	err := q.Enqueue(Job{})
	assert.True(t, errors.Is(err, ErrNotStarted))
}

func TestQueueFull(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{}, 1)
	q := NewQueue("full", func(ctx context.Context, _ Job) error {
		started <- struct{}{}
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())
	defer q.Stop()
	defer close(block)

	require.NoError(t, q.Enqueue(Job{}))
	<-started
	require.NoError(t, q.Enqueue(Job{}))
	err := q.Enqueue(Job{})
	assert.True(t, errors.Is(err, ErrQueueFull))
}

func TestQueueRetriesThenDrops(t *testing.T) {
	var attempts int32
	var (
		mu      sync.Mutex
		dropped []Job
	)
	droppedCh := make(chan struct{})
	q := NewQueue("retry", func(context.Context, Job) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("boom")
	}, QueueConfig{
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		OnDrop: func(job Job, _ error) {
			mu.Lock()
			dropped = append(dropped, job)
			mu.Unlock()
			close(droppedCh)
		},
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{Type: "flaky", Payload: "x"}))
	select {
	case <-droppedCh:
	case <-time.After(2 * time.Second):
		t.Fatal("job never dropped")
	}

	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, dropped, 1)
	assert.Equal(t, 3, dropped[0].Attempt)
	assert.Equal(t, "x", dropped[0].Payload)
}

func TestQueueCoalescesWaitingKeys(t *testing.T) {
	release := make(chan struct{})
	busy := make(chan struct{}, 1)
	q := NewQueue("coalesce", func(ctx context.Context, job Job) error {
		if job.Type == "hold" {
			busy <- struct{}{}
			select {
			case <-release:
			case <-ctx.Done():
			}
		}
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 4})
	q.Start(context.Background())
	defer q.Stop()
	defer close(release)

	require.NoError(t, q.Enqueue(Job{Type: "hold"}))
	<-busy

	require.NoError(t, q.Enqueue(Job{Key: "u1"}))
	require.NoError(t, q.Enqueue(Job{Key: "u1"}))
	require.NoError(t, q.Enqueue(Job{Key: "u2"}))
	assert.Equal(t, 2, q.Len())
}
