package notification

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/ScGaSe/smartlogistics-sub001/errors"
	"github.com/ScGaSe/smartlogistics-sub001/message"
	"github.com/ScGaSe/smartlogistics-sub001/metric"
	"github.com/ScGaSe/smartlogistics-sub001/pkg/worker"
)

// Sink receives every decoded notification for platform-level alerting
type Sink interface {
	Notify(ctx context.Context, n message.Notification) error
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ctx context.Context, n message.Notification) error

// Notify implements Sink
func (f SinkFunc) Notify(ctx context.Context, n message.Notification) error {
	return f(ctx, n)
}

// LogSink logs notifications
type LogSink struct {
	Logger *slog.Logger
	Level  slog.Level
}

// Notify implements Sink
func (s LogSink) Notify(ctx context.Context, n message.Notification) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Log(ctx, s.Level, "notification",
		"id", n.ID,
		"category", n.Category.String(),
		"title", n.Title,
		"created_at", n.CreatedAt)
	return nil
}

// DesktopSink raises a desktop notification per event
type DesktopSink struct {
	// Icon is a path passed to the platform backend; may be empty
	Icon string

	notify func(title, body, icon string) error
}

// NewDesktopSink creates a sink backed by beeep
func NewDesktopSink(icon string) *DesktopSink {
	return &DesktopSink{
		Icon: icon,
		notify: func(title, body, icon string) error {
			return beeep.Notify(title, body, icon)
		},
	}
}

// Notify implements Sink
func (s *DesktopSink) Notify(_ context.Context, n message.Notification) error {
	title := n.Title
	if title == "" {
		title = categoryTitle(n.Category)
	}
	if err := s.notify(title, n.Body, s.Icon); err != nil {
		return errors.WrapTransient(err, "DesktopSink", "Notify", "raise desktop notification")
	}
	return nil
}

func categoryTitle(c message.Category) string {
	switch c {
	case message.CategoryFlightUpdate:
		return "Flight update"
	case message.CategoryTrainUpdate:
		return "Train update"
	case message.CategoryLocationShare:
		return "Location share"
	case message.CategoryParking:
		return "Parking"
	case message.CategoryCongestionAlert:
		return "Congestion alert"
	default:
		return "Notification"
	}
}

// MultiSink delivers to every sink and joins their errors
type MultiSink []Sink

// Notify implements Sink
func (m MultiSink) Notify(ctx context.Context, n message.Notification) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// AsyncSink queues notifications and delivers them from a worker pool.
// Notify fails fast when the queue is full.
type AsyncSink struct {
	next    Sink
	pool    *worker.Pool[message.Notification]
	timeout time.Duration
	logger  *slog.Logger
	metrics *metric.Metrics
}

// AsyncOption configures an AsyncSink
type AsyncOption func(*asyncOptions)

type asyncOptions struct {
	workers   int
	queueSize int
	timeout   time.Duration
	logger    *slog.Logger
	registry  *metric.MetricsRegistry
}

// WithWorkers sets the worker count and queue size
func WithWorkers(workers, queueSize int) AsyncOption {
	return func(o *asyncOptions) {
		o.workers = workers
		o.queueSize = queueSize
	}
}

// WithDeliveryTimeout bounds each delivery
func WithDeliveryTimeout(d time.Duration) AsyncOption {
	return func(o *asyncOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithAsyncLogger sets the logger for delivery failures
func WithAsyncLogger(logger *slog.Logger) AsyncOption {
	return func(o *asyncOptions) {
		o.logger = logger
	}
}

// WithAsyncMetrics registers pool metrics and counts delivery failures
func WithAsyncMetrics(registry *metric.MetricsRegistry) AsyncOption {
	return func(o *asyncOptions) {
		o.registry = registry
	}
}

// NewAsyncSink wraps next. Call Start before use and Stop when done.
func NewAsyncSink(next Sink, opts ...AsyncOption) (*AsyncSink, error) {
	if next == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("nil sink"), "AsyncSink", "New", "check sink")
	}

	o := asyncOptions{workers: 1, queueSize: 64, timeout: 10 * time.Second, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	s := &AsyncSink{
		next:    next,
		timeout: o.timeout,
		logger:  o.logger.With("component", "notification_sink"),
		metrics: o.registry.CoreMetrics(),
	}

	poolOpts := []worker.Option[message.Notification]{
		worker.WithErrorHandler(func(n message.Notification, err error) {
			s.metrics.RecordSinkFailure("async")
			s.logger.Warn("notification delivery failed", "id", n.ID, "error", err)
		}),
	}
	if o.registry != nil {
		poolOpts = append(poolOpts, worker.WithMetricsRegistry[message.Notification](o.registry, "notification_sink"))
	}

	pool, err := worker.NewPool(o.workers, o.queueSize, s.deliver, poolOpts...)
	if err != nil {
		return nil, errors.WrapInvalid(err, "AsyncSink", "New", "create worker pool")
	}
	s.pool = pool
	return s, nil
}

func (s *AsyncSink) deliver(ctx context.Context, n message.Notification) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.Notify(ctx, n)
}

// Start launches the workers
func (s *AsyncSink) Start(ctx context.Context) error {
	return s.pool.Start(ctx)
}

// Notify enqueues n without blocking
func (s *AsyncSink) Notify(_ context.Context, n message.Notification) error {
	if err := s.pool.Submit(n); err != nil {
		return errors.WrapTransient(err, "AsyncSink", "Notify", "enqueue notification")
	}
	return nil
}

// Stop drains queued notifications for up to timeout
func (s *AsyncSink) Stop(timeout time.Duration) error {
	return s.pool.Stop(timeout)
}

// Stats returns worker pool statistics
func (s *AsyncSink) Stats() worker.PoolStats {
	return s.pool.Stats()
}
