package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskQueueRunsAndWaits(t *testing.T) {
	q := NewTaskQueue("test-run", 2, 8)
	defer q.Shutdown(context.Background())

	var ran int32
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Submit("inc", func(ctx context.Context) {
			atomic.AddInt32(&ran, 1)
		}))
	}
	q.Wait()

	assert.Equal(t, int32(5), atomic.LoadInt32(&ran))
	assert.Equal(t, 0, q.Pending())
}

func TestTaskQueueRejectsWhenFull(t *testing.T) {
	q := NewTaskQueue("test-full", 1, 1)
	release := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, q.Submit("block", func(ctx context.Context) {
		close(started)
		<-release
	}))
	<-started

	require.NoError(t, q.Submit("queued", func(ctx context.Context) {}))
	assert.Equal(t, 2, q.Pending())
	assert.ErrorIs(t, q.Submit("overflow", func(ctx context.Context) {}), ErrQueueFull)

	close(release)
	q.Wait()
	require.NoError(t, q.Shutdown(context.Background()))
	assert.ErrorIs(t, q.Submit("late", func(ctx context.Context) {}), ErrQueueClosed)
}

func TestTaskQueueRecoversPanics(t *testing.T) {
	q := NewTaskQueue("test-panic", 1, 4)
	defer q.Shutdown(context.Background())

	var after int32
	require.NoError(t, q.Submit("boom", func(ctx context.Context) { panic("boom") }))
	require.NoError(t, q.Submit("after", func(ctx context.Context) { atomic.StoreInt32(&after, 1) }))
	q.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&after))
}

func TestTaskQueueShutdownTimeoutCancelsTasks(t *testing.T) {
	q := NewTaskQueue("test-shutdown", 1, 1)
	cancelled := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, q.Submit("slow", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(cancelled)
	}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, q.Shutdown(ctx))

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("task context was not cancelled")
	}
}
