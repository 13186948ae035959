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
	var processed sync.Map
	var count atomic.Int32
	done := make(chan struct{})

	q := NewQueue("test", func(ctx context.Context, job Job) error {
		processed.Store(job.ID, true)
		if count.Add(1) == 3 {
			close(done)
		}
		return nil
	}, QueueConfig{Workers: 2})

	require.Error(t, q.Enqueue(Job{ID: "early"}), "enqueue before start must fail")

	q.Start(context.Background())
	defer q.Stop()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(Job{ID: id, Type: "noop"}))
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("jobs not processed in time")
	}
	_, ok := processed.Load("a")
	assert.True(t, ok)
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var attempts atomic.Int32
	done := make(chan struct{})

	q := NewQueue("retry", func(ctx context.Context, job Job) error {
		if attempts.Add(1) == 1 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 1, RetryDelay: 10 * time.Millisecond})

	q.Start(context.Background())
	defer q.Stop()
	require.NoError(t, q.Enqueue(Job{ID: "flaky", Type: "noop"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}
	assert.Equal(t, int32(2), attempts.Load())
}

func TestQueueStopCancelsWorkers(t *testing.T) {
	started := make(chan struct{})
	q := NewQueue("stop", func(ctx context.Context, job Job) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}, QueueConfig{Workers: 1})

	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job{ID: "long", Type: "noop"}))
	<-started

	done := make(chan struct{})
	go func() {
		q.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return after cancelling workers")
	}
}
