package traffic

import (
	"log/slog"
	"sync/atomic"

	"github.com/ScGaSe/smartlogistics-sub001/bus"
	"github.com/ScGaSe/smartlogistics-sub001/channel"
	"github.com/ScGaSe/smartlogistics-sub001/message"
	"github.com/ScGaSe/smartlogistics-sub001/metric"
)

// Channel is the traffic broadcast channel
type Channel struct {
	sup     *channel.Supervisor
	logger  *slog.Logger
	current atomic.Pointer[message.TrafficSnapshot]
}

// Option configures a Channel
type Option func(*options)

type options struct {
	logger      *slog.Logger
	registry    *metric.MetricsRegistry
	channelOpts []channel.Option
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetricsRegistry records channel metrics
func WithMetricsRegistry(r *metric.MetricsRegistry) Option {
	return func(o *options) { o.registry = r }
}

// WithChannelOptions passes options to the underlying supervisor
func WithChannelOptions(opts ...channel.Option) Option {
	return func(o *options) { o.channelOpts = append(o.channelOpts, opts...) }
}

// New creates a disconnected traffic channel
func New(opts ...Option) *Channel {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	c := &Channel{logger: o.logger.With("component", "traffic")}

	supOpts := []channel.Option{
		channel.WithLogger(o.logger),
		channel.WithMetrics(o.registry.CoreMetrics()),
	}
	supOpts = append(supOpts, o.channelOpts...)
	supOpts = append(supOpts, channel.WithEventHandler(c.apply))
	c.sup = channel.NewSupervisor(channel.KindTraffic, Decode, supOpts...)
	return c
}

// Decode decodes a traffic frame. Any other discriminator is rejected.
func Decode(data []byte) (any, error) {
	snap, err := message.DecodeTraffic(data)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (c *Channel) apply(event any) {
	snap, ok := event.(message.TrafficSnapshot)
	if !ok {
		return
	}
	c.current.Store(&snap)
	c.logger.Debug("traffic snapshot replaced", "gates", len(snap.Gates), "roads", len(snap.Roads))
}

// Connect opens the broadcast
func (c *Channel) Connect() error {
	return c.sup.Connect(channel.Params{})
}

// Disconnect closes the broadcast. The last snapshot is kept.
func (c *Channel) Disconnect() {
	c.sup.Disconnect()
}

// Close disconnects and releases the channel
func (c *Channel) Close() error {
	return c.sup.Close()
}

// Snapshot returns a copy of the current snapshot
func (c *Channel) Snapshot() (message.TrafficSnapshot, bool) {
	snap := c.current.Load()
	if snap == nil {
		return message.TrafficSnapshot{}, false
	}
	return snap.Clone(), true
}

// Busiest returns the n longest gate queues of the current snapshot
func (c *Channel) Busiest(n int) []message.GateQueue {
	snap := c.current.Load()
	if snap == nil {
		return nil
	}
	return snap.Busiest(n)
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

// Subscribe returns a subscription receiving every snapshot
func (c *Channel) Subscribe() bus.Subscription { return c.sup.SubscribeEvents() }

// SubscribeState returns a subscription receiving every channel snapshot
func (c *Channel) SubscribeState() bus.Subscription { return c.sup.SubscribeState() }

// SubscribeSession returns a subscription receiving every snapshot stamped with its session
func (c *Channel) SubscribeSession() bus.Subscription { return c.sup.SubscribeSession() }

// Unsubscribe releases a subscription
func (c *Channel) Unsubscribe(ch bus.Subscription) { c.sup.Unsubscribe(ch) }
