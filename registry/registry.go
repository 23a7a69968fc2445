package registry

import (
	stderrors "errors"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ScGaSe/smartlogistics-sub001/channel"
	"github.com/ScGaSe/smartlogistics-sub001/health"
	"github.com/ScGaSe/smartlogistics-sub001/locationshare"
	"github.com/ScGaSe/smartlogistics-sub001/metric"
	"github.com/ScGaSe/smartlogistics-sub001/notification"
	"github.com/ScGaSe/smartlogistics-sub001/pkg/buffer"
	"github.com/ScGaSe/smartlogistics-sub001/pkg/retry"
	"github.com/ScGaSe/smartlogistics-sub001/traffic"
)

// SystemName is the component name of the aggregated health status
const SystemName = "gatelink"

// Options configures the channels a Registry creates
type Options struct {
	// Endpoint resolves base URL and token on every dial
	Endpoint channel.EndpointProvider

	// Simulation replaces the live transport with the fallback generator
	Simulation           bool
	FallbackConnectDelay time.Duration
	FallbackInterval     time.Duration

	// Reconnection. Zero values use the channel defaults.
	MaxAttempts    int
	ReconnectDelay time.Duration
	LocationStep   time.Duration

	Transport []channel.WebSocketOption

	// Notification channel
	Sink          notification.Sink
	HistorySize   int
	HistoryPolicy buffer.OverflowPolicy

	Logger  *slog.Logger
	Metrics *metric.MetricsRegistry
}

// Registry lazily creates and owns the channels
type Registry struct {
	opts    Options
	logger  *slog.Logger
	monitor *health.Monitor

	mu            sync.Mutex
	closed        bool
	components    map[string]func() health.Status
	notifications atomic.Pointer[notification.Channel]
	traffic       atomic.Pointer[traffic.Channel]
	location      atomic.Pointer[locationshare.Channel]
}

// New creates an empty registry
func New(opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = channel.DefaultMaxAttempts
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = channel.DefaultReconnectDelay
	}
	if opts.LocationStep <= 0 {
		opts.LocationStep = channel.DefaultReconnectDelay
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = notification.DefaultHistorySize
	}

	return &Registry{
		opts:    opts,
		logger:  opts.Logger.With("component", "registry"),
		monitor: health.NewMonitor(),
	}
}

// Mode returns "fallback" in simulation and "live" otherwise
func (r *Registry) Mode() string {
	if r.opts.Simulation {
		return "fallback"
	}
	return "live"
}

func (r *Registry) policy(kind channel.Kind) retry.Policy {
	if kind == channel.KindLocationShare {
		return retry.LinearPolicy(r.opts.MaxAttempts, r.opts.LocationStep)
	}
	return retry.FixedPolicy(r.opts.MaxAttempts, r.opts.ReconnectDelay)
}

func (r *Registry) dialer(rotation channel.Rotation) channel.Dialer {
	if r.opts.Simulation {
		return channel.NewFallbackDialer(rotation, r.opts.FallbackConnectDelay, r.opts.FallbackInterval)
	}
	return channel.NewWebSocketDialer(r.opts.Transport...)
}

func (r *Registry) channelOptions(kind channel.Kind, rotation channel.Rotation) []channel.Option {
	opts := []channel.Option{
		channel.WithPolicy(r.policy(kind)),
		channel.WithDialer(r.dialer(rotation)),
	}
	if r.opts.Endpoint != nil {
		opts = append(opts, channel.WithEndpoint(r.opts.Endpoint))
	}
	return opts
}

// Notifications returns the notification channel, creating it on first use
func (r *Registry) Notifications() *notification.Channel {
	if c := r.notifications.Load(); c != nil {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c := r.notifications.Load(); c != nil {
		return c
	}

	opts := []notification.Option{
		notification.WithLogger(r.opts.Logger),
		notification.WithMetricsRegistry(r.opts.Metrics),
		notification.WithHistorySize(r.opts.HistorySize),
		notification.WithHistoryPolicy(r.opts.HistoryPolicy),
		notification.WithChannelOptions(r.channelOptions(channel.KindNotifications, notification.FallbackFrames)...),
	}
	if r.opts.Sink != nil {
		opts = append(opts, notification.WithSink(r.opts.Sink))
	}

	c, err := notification.New(opts...)
	if err != nil {
		// history metrics already registered on this metrics registry
		r.logger.Warn("notification channel created without history metrics", "error", err)
		c, err = notification.New(append(opts, notification.WithMetricsRegistry(nil))...)
		if err != nil {
			r.logger.Error("notification channel creation failed", "error", err)
			return nil
		}
	}

	r.notifications.Store(c)
	r.logger.Info("channel created", "kind", channel.KindNotifications.String(), "mode", r.Mode())
	return c
}

// Traffic returns the traffic channel, creating it on first use
func (r *Registry) Traffic() *traffic.Channel {
	if c := r.traffic.Load(); c != nil {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c := r.traffic.Load(); c != nil {
		return c
	}

	c := traffic.New(
		traffic.WithLogger(r.opts.Logger),
		traffic.WithMetricsRegistry(r.opts.Metrics),
		traffic.WithChannelOptions(r.channelOptions(channel.KindTraffic, traffic.FallbackFrames)...),
	)
	r.traffic.Store(c)
	r.logger.Info("channel created", "kind", channel.KindTraffic.String(), "mode", r.Mode())
	return c
}

// LocationShare returns the location share channel, creating it on first use
func (r *Registry) LocationShare() *locationshare.Channel {
	if c := r.location.Load(); c != nil {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c := r.location.Load(); c != nil {
		return c
	}

	c := locationshare.New(
		locationshare.WithLogger(r.opts.Logger),
		locationshare.WithMetricsRegistry(r.opts.Metrics),
		locationshare.WithChannelOptions(r.channelOptions(channel.KindLocationShare, locationshare.FallbackFrames)...),
	)
	r.location.Store(c)
	r.logger.Info("channel created", "kind", channel.KindLocationShare.String(), "mode", r.Mode())
	return c
}

// Snapshots returns the status of every created channel
func (r *Registry) Snapshots() []channel.Snapshot {
	var out []channel.Snapshot
	if c := r.notifications.Load(); c != nil {
		out = append(out, c.Status())
	}
	if c := r.traffic.Load(); c != nil {
		out = append(out, c.Status())
	}
	if c := r.location.Load(); c != nil {
		out = append(out, c.Status())
	}
	return out
}

// Track adds a component outside the registry, such as the relay's NATS
// connection, to the aggregated health. check runs on every Health call.
func (r *Registry) Track(name string, check func() health.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.components == nil {
		r.components = make(map[string]func() health.Status)
	}
	r.components[name] = check
}

// Health aggregates the health of every created channel and tracked
// component
func (r *Registry) Health() health.Status {
	for _, snap := range r.Snapshots() {
		r.monitor.Update(snap.Kind.String(), snap.Health())
	}

	r.mu.Lock()
	checks := maps.Clone(r.components)
	r.mu.Unlock()
	for name, check := range checks {
		r.monitor.Update(name, check())
	}
	return r.monitor.AggregateHealth(SystemName)
}

// Close releases every created channel. Channels stay usable objects but
// are disconnected.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	if c := r.notifications.Load(); c != nil {
		errs = append(errs, c.Close())
	}
	if c := r.traffic.Load(); c != nil {
		errs = append(errs, c.Close())
	}
	if c := r.location.Load(); c != nil {
		errs = append(errs, c.Close())
	}
	r.logger.Info("registry closed")
	return stderrors.Join(errs...)
}
