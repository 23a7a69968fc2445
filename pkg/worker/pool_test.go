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

	"github.com/ScGaSe/smartlogistics-sub001/metric"
)

type testWork struct {
	id    int
	delay time.Duration
	fail  bool
}

func TestNewPool(t *testing.T) {
	processor := func(_ context.Context, _ testWork) error { return nil }

	pool, err := NewPool(5, 100, processor)
	require.NoError(t, err)
	assert.Equal(t, 5, pool.workers)
	assert.Equal(t, 100, pool.queueSize)

	pool, err = NewPool(0, 0, processor)
	require.NoError(t, err)
	assert.Equal(t, 1, pool.workers)
	assert.Equal(t, 64, pool.queueSize)
}

func TestNewPool_NilProcessor(t *testing.T) {
	_, err := NewPool[testWork](5, 100, nil)
	assert.ErrorIs(t, err, ErrNilProcessor)
}

func TestPool_LifecycleErrors(t *testing.T) {
	pool, err := NewPool(1, 1, func(_ context.Context, _ testWork) error { return nil })
	require.NoError(t, err)

	assert.ErrorIs(t, pool.Submit(testWork{}), ErrPoolNotStarted)
	// Stop before start is a no-op
	assert.NoError(t, pool.Stop(time.Second))

	require.NoError(t, pool.Start(context.Background()))
	assert.ErrorIs(t, pool.Start(context.Background()), ErrPoolAlreadyStarted)

	require.NoError(t, pool.Stop(time.Second))
	assert.ErrorIs(t, pool.Submit(testWork{}), ErrPoolStopped)
	// Stop is idempotent
	assert.NoError(t, pool.Stop(time.Second))
}

func TestPool_StartStop(t *testing.T) {
	var processedCount atomic.Int64
	pool, err := NewPool(2, 10, func(_ context.Context, _ testWork) error {
		processedCount.Add(1)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))

	for i := 0; i < 5; i++ {
		require.NoError(t, pool.Submit(testWork{id: i}))
	}

	// Stop drains queued work
	require.NoError(t, pool.Stop(5*time.Second))
	assert.Equal(t, int64(5), processedCount.Load())
}

func TestPool_QueueFull(t *testing.T) {
	release := make(chan struct{})
	pool, err := NewPool(1, 1, func(_ context.Context, _ testWork) error {
		<-release
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))

	// First item occupies the worker, second fills the queue
	require.NoError(t, pool.Submit(testWork{id: 1}))
	require.Eventually(t, func() bool { return pool.Stats().QueueDepth == 0 },
		time.Second, 5*time.Millisecond)
	require.NoError(t, pool.Submit(testWork{id: 2}))

	assert.ErrorIs(t, pool.Submit(testWork{id: 3}), ErrQueueFull)
	assert.Equal(t, int64(1), pool.Stats().Dropped)

	close(release)
	require.NoError(t, pool.Stop(5*time.Second))
}

func TestPool_ProcessingErrorsAndPanics(t *testing.T) {
	var mu sync.Mutex
	var reported []error

	pool, err := NewPool(2, 10,
		func(_ context.Context, w testWork) error {
			if w.id == 99 {
				panic("boom")
			}
			if w.fail {
				return errors.New("processing failed")
			}
			return nil
		},
		WithErrorHandler[testWork](func(_ testWork, err error) {
			mu.Lock()
			reported = append(reported, err)
			mu.Unlock()
		}),
	)
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))

	require.NoError(t, pool.Submit(testWork{id: 1}))
	require.NoError(t, pool.Submit(testWork{id: 2, fail: true}))
	require.NoError(t, pool.Submit(testWork{id: 99}))
	require.NoError(t, pool.Stop(5*time.Second))

	stats := pool.Stats()
	assert.Equal(t, int64(3), stats.Processed)
	assert.Equal(t, int64(2), stats.Failed)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, reported, 2)

	panicked := false
	for _, e := range reported {
		if errors.Is(e, ErrProcessorPanic) {
			panicked = true
		}
	}
	assert.True(t, panicked)
}

func TestPool_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool, err := NewPool(2, 10, func(ctx context.Context, w testWork) error {
		select {
		case <-time.After(w.delay):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	require.NoError(t, err)
	require.NoError(t, pool.Start(ctx))

	require.NoError(t, pool.Submit(testWork{delay: time.Hour}))
	cancel()

	assert.NoError(t, pool.Stop(2*time.Second))
}

func TestPool_ConcurrentSubmissions(t *testing.T) {
	var processed atomic.Int64
	pool, err := NewPool(4, 1000, func(_ context.Context, _ testWork) error {
		processed.Add(1)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				assert.NoError(t, pool.Submit(testWork{id: g*50 + i}))
			}
		}(g)
	}
	wg.Wait()

	require.NoError(t, pool.Stop(5*time.Second))
	assert.Equal(t, int64(500), processed.Load())
	assert.Equal(t, int64(500), pool.Stats().Submitted)
}

func TestPool_WithMetrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()

	pool, err := NewPool(1, 4, func(_ context.Context, _ testWork) error { return nil },
		WithMetricsRegistry[testWork](registry, "desktop_sink"))
	require.NoError(t, err)
	require.NotNil(t, pool.metrics)

	require.NoError(t, pool.Start(context.Background()))
	require.NoError(t, pool.Submit(testWork{}))
	require.NoError(t, pool.Stop(time.Second))

	// Duplicate prefix is rejected at construction
	_, err = NewPool(1, 4, func(_ context.Context, _ testWork) error { return nil },
		WithMetricsRegistry[testWork](registry, "desktop_sink"))
	assert.Error(t, err)
}
