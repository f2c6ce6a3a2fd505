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
	var handled int32
	q := NewQueue("test", func(_ context.Context, _ Job) error {
		atomic.AddInt32(&handled, 1)
		return nil
	}, QueueConfig{Workers: 2, BufferSize: 4})

	q.Start(context.Background())
	defer q.Stop()

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(Job{ID: "j"}))
	}
	require.Eventually(t, func() bool { return atomic.LoadInt32(&handled) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(3), q.Stats().Processed)
}

func TestQueueRetriesThenGivesUp(t *testing.T) {
	var attempts int32
	q := NewQueue("retry", func(_ context.Context, _ Job) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("boom")
	}, QueueConfig{MaxRetries: 2, RetryDelay: time.Millisecond})

	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "j"}))
	require.Eventually(t, func() bool { return q.Stats().Failed == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	assert.Equal(t, uint64(2), q.Stats().Retried)
}

func TestTryEnqueueReportsFullAndStopped(t *testing.T) {
	block := make(chan struct{})
	q := NewQueue("full", func(ctx context.Context, _ Job) error {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})

	assert.ErrorIs(t, q.TryEnqueue(Job{}), ErrQueueNotStarted)

	q.Start(context.Background())
	require.NoError(t, q.TryEnqueue(Job{ID: "running"}))
	require.Eventually(t, func() bool { return q.Len() == 0 }, time.Second, time.Millisecond)
	require.NoError(t, q.TryEnqueue(Job{ID: "buffered"}))
	assert.ErrorIs(t, q.TryEnqueue(Job{ID: "overflow"}), ErrQueueFull)

	close(block)
	q.Stop()
	assert.ErrorIs(t, q.TryEnqueue(Job{}), ErrQueueStopped)
	assert.GreaterOrEqual(t, q.Stats().Dropped, uint64(3))
}

func TestStopDrainsBufferedJobs(t *testing.T) {
	var handled int32
	q := NewQueue("drain", func(_ context.Context, _ Job) error {
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&handled, 1)
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 8, DrainTimeout: time.Second})

	q.Start(context.Background())
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(Job{}))
	}
	q.Stop()
	assert.GreaterOrEqual(t, atomic.LoadInt32(&handled), int32(4))
	assert.Equal(t, 0, q.Len())
}
