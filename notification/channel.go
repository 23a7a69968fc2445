package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ScGaSe/smartlogistics-sub001/bus"
	"github.com/ScGaSe/smartlogistics-sub001/channel"
	"github.com/ScGaSe/smartlogistics-sub001/errors"
	"github.com/ScGaSe/smartlogistics-sub001/message"
	"github.com/ScGaSe/smartlogistics-sub001/metric"
	"github.com/ScGaSe/smartlogistics-sub001/pkg/buffer"
)

// Defaults
const (
	DefaultHistorySize = 50
	DefaultSinkTimeout = 5 * time.Second
)

// Channel is the user notification channel
type Channel struct {
	sup         *channel.Supervisor
	sink        Sink
	sinkTimeout time.Duration
	logger      *slog.Logger
	metrics     *metric.Metrics
	history     buffer.Buffer[message.Notification]

	mu     sync.RWMutex
	latest *message.Notification
	unread int
}

// Option configures a Channel
type Option func(*options)

type options struct {
	sink        Sink
	sinkTimeout time.Duration
	historySize int
	policy      buffer.OverflowPolicy
	logger      *slog.Logger
	registry    *metric.MetricsRegistry
	channelOpts []channel.Option
}

// WithSink sets the downstream sink
func WithSink(s Sink) Option {
	return func(o *options) { o.sink = s }
}

// WithSinkTimeout bounds each sink call
func WithSinkTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.sinkTimeout = d
		}
	}
}

// WithHistorySize sets how many notifications Recent keeps
func WithHistorySize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.historySize = n
		}
	}
}

// WithHistoryPolicy picks which notification a full history discards
func WithHistoryPolicy(p buffer.OverflowPolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetricsRegistry records channel and history metrics
func WithMetricsRegistry(r *metric.MetricsRegistry) Option {
	return func(o *options) { o.registry = r }
}

// WithChannelOptions passes options to the underlying supervisor
func WithChannelOptions(opts ...channel.Option) Option {
	return func(o *options) { o.channelOpts = append(o.channelOpts, opts...) }
}

// New creates a disconnected notification channel
func New(opts ...Option) (*Channel, error) {
	o := options{
		historySize: DefaultHistorySize,
		policy:      buffer.DropOldest,
		sinkTimeout: DefaultSinkTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	historyOpts := []buffer.Option[message.Notification]{
		buffer.WithOverflowPolicy[message.Notification](o.policy),
	}
	if o.registry != nil {
		historyOpts = append(historyOpts, buffer.WithMetrics[message.Notification](o.registry, "notifications"))
	}
	history, err := buffer.NewCircularBuffer(o.historySize, historyOpts...)
	if err != nil {
		return nil, errors.WrapInvalid(err, "notification", "New", "create history")
	}

	c := &Channel{
		sink:        o.sink,
		sinkTimeout: o.sinkTimeout,
		logger:      o.logger.With("component", "notification"),
		metrics:     o.registry.CoreMetrics(),
		history:     history,
	}

	supOpts := []channel.Option{
		channel.WithLogger(o.logger),
		channel.WithMetrics(c.metrics),
	}
	supOpts = append(supOpts, o.channelOpts...)
	supOpts = append(supOpts,
		channel.WithEventHandler(c.apply),
		channel.WithDeliveryHandler(c.deliver),
	)
	c.sup = channel.NewSupervisor(channel.KindNotifications, Decode, supOpts...)
	return c, nil
}

// Decode decodes a notification frame. Unknown categories are rejected.
func Decode(data []byte) (any, error) {
	n, err := message.DecodeNotification(data)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// apply runs on the session goroutine for each decoded notification
func (c *Channel) apply(event any) {
	n, ok := event.(message.Notification)
	if !ok {
		return
	}

	c.mu.Lock()
	latest := n
	c.latest = &latest
	c.unread++
	c.mu.Unlock()

	if err := c.history.Write(n); err != nil {
		c.logger.Debug("history write failed", "error", err)
	}
}

// deliver hands a notification to the sink once its state update is
// visible. Failures never reach the channel.
func (c *Channel) deliver(event any) {
	n, ok := event.(message.Notification)
	if !ok || c.sink == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.sinkTimeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("sink panic: %v", r)
			}
		}()
		return c.sink.Notify(ctx, n)
	}()
	if err != nil {
		c.metrics.RecordSinkFailure("notification")
		c.logger.Warn("notification sink failed", "id", n.ID, "category", n.Category.String(), "error", err)
	}
}

// Connect opens the channel for userID
func (c *Channel) Connect(userID string) error {
	return c.sup.Connect(channel.Params{UserID: userID})
}

// Disconnect closes the channel. No notification is applied after it returns.
func (c *Channel) Disconnect() {
	c.sup.Disconnect()
}

// Close disconnects and releases the channel
func (c *Channel) Close() error {
	err := c.sup.Close()
	_ = c.history.Close()
	return err
}

// State returns the channel state
func (c *Channel) State() channel.State { return c.sup.State() }

// Status returns the channel snapshot
func (c *Channel) Status() channel.Snapshot { return c.sup.Snapshot() }

// LastError returns the last transport error description
func (c *Channel) LastError() string { return c.sup.LastError() }

// ClearError clears the last error
func (c *Channel) ClearError() { c.sup.ClearError() }

// Supervisor returns the underlying supervisor
func (c *Channel) Supervisor() *channel.Supervisor { return c.sup }

// Latest returns the most recent notification
func (c *Channel) Latest() (message.Notification, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.latest == nil {
		return message.Notification{}, false
	}
	return *c.latest, true
}

// ClearLatest dismisses the latest notification. History and the unread
// counter are kept.
func (c *Channel) ClearLatest() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest = nil
}

// UnreadCount returns notifications received since the last MarkRead
func (c *Channel) UnreadCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.unread
}

// MarkRead resets the unread counter and marks the latest notification and
// the history as read
func (c *Channel) MarkRead() {
	c.mu.Lock()
	c.unread = 0
	if c.latest != nil {
		c.latest.Read = true
	}
	c.mu.Unlock()

	c.history.Update(func(n *message.Notification) {
		n.Read = true
	})
}

// Recent returns the history, oldest first
func (c *Channel) Recent() []message.Notification {
	return c.history.Snapshot()
}

// Subscribe returns a subscription receiving every decoded notification
func (c *Channel) Subscribe() bus.Subscription { return c.sup.SubscribeEvents() }

// SubscribeState returns a subscription receiving every channel snapshot
func (c *Channel) SubscribeState() bus.Subscription { return c.sup.SubscribeState() }

// SubscribeSession returns a subscription receiving every notification
// stamped with the user it was received for
func (c *Channel) SubscribeSession() bus.Subscription { return c.sup.SubscribeSession() }

// Unsubscribe releases a subscription
func (c *Channel) Unsubscribe(ch bus.Subscription) { c.sup.Unsubscribe(ch) }
