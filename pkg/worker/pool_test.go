package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/errors"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/metric"
)

type testJob struct {
	id   int
	fail bool
}

func noopProcessor(_ context.Context, _ testJob) error { return nil }

func TestNewPool_Defaults(t *testing.T) {
	pool, err := NewPool(0, 0, noopProcessor)
	require.NoError(t, err)

	assert.Equal(t, 4, pool.workers)
	assert.Equal(t, 256, pool.queueSize)

	pool, err = NewPool(8, 32, noopProcessor)
	require.NoError(t, err)
	assert.Equal(t, 8, pool.workers)
	assert.Equal(t, 32, pool.queueSize)
}

func TestNewPool_NilProcessor(t *testing.T) {
	pool, err := NewPool[testJob](4, 16, nil)
	require.ErrorIs(t, err, ErrNilProcessor)
	assert.Nil(t, pool)
}

func TestNewPool_DuplicateMetricsRegistration(t *testing.T) {
	registry := metric.NewMetricsRegistry()

	_, err := NewPool(2, 8, noopProcessor, WithMetrics[testJob](registry, "dup_pool"))
	require.NoError(t, err)

	_, err = NewPool(2, 8, noopProcessor, WithMetrics[testJob](registry, "dup_pool"))
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalid(err))
}

func TestPool_SubmitBeforeStart(t *testing.T) {
	pool, err := NewPool(2, 8, noopProcessor)
	require.NoError(t, err)

	err = pool.Submit(testJob{id: 1})
	require.ErrorIs(t, err, ErrPoolNotStarted)
}

func TestPool_DoubleStart(t *testing.T) {
	pool, err := NewPool(2, 8, noopProcessor)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, pool.Start(ctx))
	t.Cleanup(func() { _ = pool.Stop(time.Second) })

	require.ErrorIs(t, pool.Start(ctx), ErrPoolAlreadyStarted)
}

func TestPool_ProcessesSubmittedWork(t *testing.T) {
	var processed atomic.Int64
	pool, err := NewPool(3, 16, func(_ context.Context, _ testJob) error {
		processed.Add(1)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))

	for i := 0; i < 10; i++ {
		require.NoError(t, pool.Submit(testJob{id: i}))
	}

	require.NoError(t, pool.Stop(5*time.Second))

	assert.Equal(t, int64(10), processed.Load())

	stats := pool.Stats()
	assert.Equal(t, int64(10), stats.Submitted)
	assert.Equal(t, int64(10), stats.Processed)
	assert.Equal(t, int64(0), stats.Failed)
	assert.Equal(t, int64(0), stats.Dropped)
}

func TestPool_FailedIsSubsetOfProcessed(t *testing.T) {
	pool, err := NewPool(2, 16, func(_ context.Context, job testJob) error {
		if job.fail {
			return errors.New("processing failed")
		}
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))

	for i := 0; i < 6; i++ {
		require.NoError(t, pool.Submit(testJob{id: i, fail: i%2 == 0}))
	}

	require.NoError(t, pool.Stop(5*time.Second))

	stats := pool.Stats()
	assert.Equal(t, int64(6), stats.Processed)
	assert.Equal(t, int64(3), stats.Failed)
}

func TestPool_QueueFullDrops(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})

	pool, err := NewPool(1, 2, func(_ context.Context, _ testJob) error {
		entered <- struct{}{}
		<-release
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))

	// Occupy the single worker, then fill the queue behind it.
	require.NoError(t, pool.Submit(testJob{id: 0}))
	<-entered
	require.NoError(t, pool.Submit(testJob{id: 1}))
	require.NoError(t, pool.Submit(testJob{id: 2}))

	err = pool.Submit(testJob{id: 3})
	require.ErrorIs(t, err, ErrQueueFull)

	stats := pool.Stats()
	assert.Equal(t, int64(3), stats.Submitted)
	assert.Equal(t, int64(1), stats.Dropped)

	close(release)
	go func() {
		for range entered {
		}
	}()
	require.NoError(t, pool.Stop(5*time.Second))
	close(entered)
}

func TestPool_StopDrainsQueue(t *testing.T) {
	var processed atomic.Int64
	pool, err := NewPool(1, 16, func(_ context.Context, _ testJob) error {
		time.Sleep(time.Millisecond)
		processed.Add(1)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))

	for i := 0; i < 12; i++ {
		require.NoError(t, pool.Submit(testJob{id: i}))
	}

	require.NoError(t, pool.Stop(10*time.Second))

	assert.Equal(t, int64(12), processed.Load())
}

func TestPool_StopTimeout(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})

	pool, err := NewPool(1, 4, func(_ context.Context, _ testJob) error {
		close(entered)
		<-release
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))

	require.NoError(t, pool.Submit(testJob{id: 1}))
	<-entered

	err = pool.Stop(50 * time.Millisecond)
	require.ErrorIs(t, err, ErrStopTimeout)

	close(release)
}

func TestPool_SubmitAfterStop(t *testing.T) {
	pool, err := NewPool(2, 8, noopProcessor)
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))
	require.NoError(t, pool.Stop(time.Second))

	err = pool.Submit(testJob{id: 1})
	require.ErrorIs(t, err, ErrPoolStopped)

	// A second Stop is a no-op.
	require.NoError(t, pool.Stop(time.Second))
}

func TestPool_StopWithoutStart(t *testing.T) {
	pool, err := NewPool(2, 8, noopProcessor)
	require.NoError(t, err)
	require.NoError(t, pool.Stop(time.Second))
}

func TestPool_ContextCancelAbortsWorkers(t *testing.T) {
	pool, err := NewPool(2, 8, noopProcessor)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, pool.Start(ctx))
	cancel()

	// Workers exit on cancellation, so the drain has nothing to wait for.
	require.NoError(t, pool.Stop(time.Second))
}

func TestPool_ConcurrentSubmits(t *testing.T) {
	var processed atomic.Int64
	pool, err := NewPool(4, 512, func(_ context.Context, _ testJob) error {
		processed.Add(1)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))

	const goroutines = 8
	const perGoroutine = 50

	var accepted, dropped atomic.Int64
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				switch submitErr := pool.Submit(testJob{id: g*perGoroutine + i}); {
				case submitErr == nil:
					accepted.Add(1)
				case errors.Is(submitErr, ErrQueueFull):
					dropped.Add(1)
				default:
					t.Errorf("unexpected submit error: %v", submitErr)
				}
			}
		}(g)
	}
	wg.Wait()

	require.NoError(t, pool.Stop(10*time.Second))

	assert.Equal(t, int64(goroutines*perGoroutine), accepted.Load()+dropped.Load())
	assert.Equal(t, accepted.Load(), processed.Load())

	stats := pool.Stats()
	assert.Equal(t, accepted.Load(), stats.Submitted)
	assert.Equal(t, dropped.Load(), stats.Dropped)
}
