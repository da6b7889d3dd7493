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

func TestQueueProcessesAndDrainsOnStop(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	q := NewQueue("purge", func(_ context.Context, key string) error {
		mu.Lock()
		seen = append(seen, key)
		mu.Unlock()
		return nil
	}, Config{Workers: 1})
	q.Start(context.Background())

	for _, key := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(context.Background(), key))
	}
	q.Stop()

	assert.Equal(t, []string{"a", "b", "c"}, seen)
	assert.ErrorIs(t, q.Enqueue(context.Background(), "d"), ErrStopped)
}

func TestQueueRetriesFailures(t *testing.T) {
	var calls int32
	done := make(chan struct{})
	q := NewQueue("purge", func(_ context.Context, _ string) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, Config{Workers: 1, MaxRetries: 3, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(context.Background(), "k"))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("purge", func(context.Context, int) error { return nil }, Config{})
	assert.ErrorIs(t, q.Enqueue(context.Background(), 1), ErrStopped)
}
