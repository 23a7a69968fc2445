package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ScGaSe/smartlogistics-sub001/metric"
)

const defaultQueueSize = 64

type lifecycle int

const (
	idle lifecycle = iota
	running
	stopped
)

// Pool runs a processor over submitted items of type T on a fixed number of
// goroutines fed by a bounded queue
type Pool[T any] struct {
	workers   int
	queueSize int
	process   func(context.Context, T) error
	onError   func(T, error)

	queue chan T
	wg    sync.WaitGroup

	mu    sync.Mutex
	state lifecycle

	stats   counters
	metrics *poolMetrics

	registry *metric.MetricsRegistry
	name     string
}

type counters struct {
	submitted, processed, failed, dropped atomic.Int64
}

// Option configures a Pool
type Option[T any] func(*Pool[T])

// WithMetricsRegistry exports pool metrics labelled with name
func WithMetricsRegistry[T any](registry *metric.MetricsRegistry, name string) Option[T] {
	return func(p *Pool[T]) {
		p.registry = registry
		p.name = name
	}
}

// WithErrorHandler receives every item whose processor failed or panicked
func WithErrorHandler[T any](fn func(T, error)) Option[T] {
	return func(p *Pool[T]) { p.onError = fn }
}

// NewPool builds a stopped pool. Non-positive workers and queueSize fall
// back to 1 and 64.
func NewPool[T any](workers, queueSize int, process func(context.Context, T) error, opts ...Option[T]) (*Pool[T], error) {
	if process == nil {
		return nil, ErrNilProcessor
	}

	p := &Pool[T]{
		workers:   max(workers, 1),
		queueSize: queueSize,
		process:   process,
	}
	if p.queueSize <= 0 {
		p.queueSize = defaultQueueSize
	}
	p.queue = make(chan T, p.queueSize)

	for _, opt := range opts {
		opt(p)
	}

	if p.registry != nil && p.name != "" {
		m, err := newPoolMetrics(p.registry, p.name)
		if err != nil {
			return nil, err
		}
		p.metrics = m
	}
	return p, nil
}

// Start launches the workers. They exit when ctx ends or the queue drains
// after Stop.
func (p *Pool[T]) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != idle {
		return ErrPoolAlreadyStarted
	}
	p.state = running

	p.wg.Add(p.workers)
	for range p.workers {
		go p.run(ctx)
	}
	return nil
}

// Submit enqueues work without blocking
func (p *Pool[T]) Submit(work T) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case idle:
		return ErrPoolNotStarted
	case stopped:
		return ErrPoolStopped
	}

	select {
	case p.queue <- work:
		p.stats.submitted.Add(1)
		p.metrics.depth(len(p.queue))
		return nil
	default:
		p.stats.dropped.Add(1)
		p.metrics.drop()
		return ErrQueueFull
	}
}

// Stop closes the queue and waits up to timeout for the workers to finish
// what is already queued. Calling it before Start or twice is a no-op.
func (p *Pool[T]) Stop(timeout time.Duration) error {
	p.mu.Lock()
	if p.state != running {
		p.mu.Unlock()
		return nil
	}
	p.state = stopped
	close(p.queue)
	p.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-time.After(timeout):
		return ErrStopTimeout
	}
}

// PoolStats is a point-in-time view of the pool counters
type PoolStats struct {
	Workers    int   `json:"workers"`
	QueueSize  int   `json:"queue_size"`
	QueueDepth int   `json:"queue_depth"`
	Submitted  int64 `json:"submitted"`
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
	Dropped    int64 `json:"dropped"`
}

func (p *Pool[T]) Stats() PoolStats {
	return PoolStats{
		Workers:    p.workers,
		QueueSize:  p.queueSize,
		QueueDepth: len(p.queue),
		Submitted:  p.stats.submitted.Load(),
		Processed:  p.stats.processed.Load(),
		Failed:     p.stats.failed.Load(),
		Dropped:    p.stats.dropped.Load(),
	}
}

func (p *Pool[T]) run(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case work, ok := <-p.queue:
			if !ok {
				return
			}
			p.handle(ctx, work)
		}
	}
}

func (p *Pool[T]) handle(ctx context.Context, work T) {
	began := time.Now()
	err := p.safeProcess(ctx, work)

	p.stats.processed.Add(1)
	if err != nil {
		p.stats.failed.Add(1)
		if p.onError != nil {
			p.onError(work, err)
		}
	}
	p.metrics.observe(err, time.Since(began), len(p.queue))
}

func (p *Pool[T]) safeProcess(ctx context.Context, work T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrProcessorPanic, r)
		}
	}()
	return p.process(ctx, work)
}

type poolMetrics struct {
	queueDepth prometheus.Gauge
	outcomes   *prometheus.CounterVec
	dropped    prometheus.Counter
	duration   prometheus.Histogram
}

func newPoolMetrics(reg *metric.MetricsRegistry, name string) (*poolMetrics, error) {
	labels := prometheus.Labels{"pool": name}
	m := &poolMetrics{
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gatelink", Subsystem: "worker", Name: "queue_depth",
			Help: "Items waiting in the worker queue", ConstLabels: labels,
		}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatelink", Subsystem: "worker", Name: "processed_total",
			Help: "Items processed by outcome", ConstLabels: labels,
		}, []string{"status"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gatelink", Subsystem: "worker", Name: "dropped_total",
			Help: "Items rejected because the queue was full", ConstLabels: labels,
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gatelink", Subsystem: "worker", Name: "processing_duration_seconds",
			Help: "Processor run time", ConstLabels: labels,
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}

	for suffix, c := range map[string]prometheus.Collector{
		"queue_depth": m.queueDepth,
		"processed":   m.outcomes,
		"dropped":     m.dropped,
		"duration":    m.duration,
	} {
		if err := reg.Register("worker_pool", name+"_"+suffix, c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *poolMetrics) depth(n int) {
	if m != nil {
		m.queueDepth.Set(float64(n))
	}
}

func (m *poolMetrics) drop() {
	if m != nil {
		m.dropped.Inc()
	}
}

func (m *poolMetrics) observe(err error, took time.Duration, depth int) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.outcomes.WithLabelValues(status).Inc()
	m.duration.Observe(took.Seconds())
	m.queueDepth.Set(float64(depth))
}
