package locationshare

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/ScGaSe/smartlogistics-sub001/bus"
	"github.com/ScGaSe/smartlogistics-sub001/channel"
	"github.com/ScGaSe/smartlogistics-sub001/message"
	"github.com/ScGaSe/smartlogistics-sub001/metric"
)

// Channel is the location share channel
type Channel struct {
	sup     *channel.Supervisor
	logger  *slog.Logger
	metrics *metric.Metrics
	latest  atomic.Pointer[message.Location]
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

// New creates a disconnected location share channel
func New(opts ...Option) *Channel {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	c := &Channel{
		logger:  o.logger.With("component", "locationshare"),
		metrics: o.registry.CoreMetrics(),
	}

	supOpts := []channel.Option{
		channel.WithLogger(o.logger),
		channel.WithMetrics(c.metrics),
	}
	supOpts = append(supOpts, o.channelOpts...)
	supOpts = append(supOpts, channel.WithEventHandler(c.apply))
	c.sup = channel.NewSupervisor(channel.KindLocationShare, Decode, supOpts...)
	return c
}

// Decode decodes a peer location frame
func Decode(data []byte) (any, error) {
	loc, err := message.DecodeLocation(data)
	if err != nil {
		return nil, err
	}
	return loc, nil
}

func (c *Channel) apply(event any) {
	loc, ok := event.(message.Location)
	if !ok {
		return
	}
	c.latest.Store(&loc)
}

// Connect opens the share session shareID
func (c *Channel) Connect(shareID string) error {
	return c.sup.Connect(channel.Params{ShareID: shareID})
}

// Disconnect closes the share session
func (c *Channel) Disconnect() {
	c.sup.Disconnect()
}

// Close disconnects and releases the channel
func (c *Channel) Close() error {
	return c.sup.Close()
}

// SendLocation sends the local position to the peer. It returns false without
// sending when the channel is not connected or loc is out of range.
func (c *Channel) SendLocation(ctx context.Context, loc message.Location) bool {
	data, err := loc.Encode()
	if err != nil {
		c.logger.Warn("location not sent", "error", err)
		c.metrics.RecordFrameSent(channel.KindLocationShare.String(), "invalid")
		return false
	}
	return c.sup.Send(ctx, data)
}

// Latest returns the last location received from the peer
func (c *Channel) Latest() (message.Location, bool) {
	loc := c.latest.Load()
	if loc == nil {
		return message.Location{}, false
	}
	return *loc, true
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

// Subscribe returns a subscription receiving every peer location
func (c *Channel) Subscribe() bus.Subscription { return c.sup.SubscribeEvents() }

// SubscribeState returns a subscription receiving every channel snapshot
func (c *Channel) SubscribeState() bus.Subscription { return c.sup.SubscribeState() }

// SubscribeSession returns a subscription receiving every peer location stamped with the share it was received for
func (c *Channel) SubscribeSession() bus.Subscription { return c.sup.SubscribeSession() }

// Unsubscribe releases a subscription
func (c *Channel) Unsubscribe(ch bus.Subscription) { c.sup.Unsubscribe(ch) }
