package natsclient

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/ScGaSe/smartlogistics-sub001/errors"
	"github.com/ScGaSe/smartlogistics-sub001/health"
	"github.com/ScGaSe/smartlogistics-sub001/metric"
)

// ConnectionStatus is the client's view of its NATS connection
type ConnectionStatus int32

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusCircuitOpen
)

var statusNames = map[ConnectionStatus]string{
	StatusDisconnected: "disconnected",
	StatusConnecting:   "connecting",
	StatusConnected:    "connected",
	StatusReconnecting: "reconnecting",
	StatusCircuitOpen:  "circuit_open",
}

func (s ConnectionStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// HealthComponent names the client in aggregated health
const HealthComponent = "nats"

var (
	ErrNotConnected = stderrors.New("not connected to NATS")
	ErrCircuitOpen  = stderrors.New("circuit breaker is open")
	ErrClosed       = stderrors.New("client is closed")
)

// Client owns one NATS connection. Consecutive connect or stream failures
// trip a circuit breaker that makes Connect fail fast for a growing period.
type Client struct {
	url     string
	cfg     settings
	logger  *slog.Logger
	metrics *metric.Metrics
	brk     *breaker

	status atomic.Int32
	closed atomic.Bool

	mu   sync.RWMutex
	conn *nats.Conn
	js   jetstream.JetStream
}

// NewClient validates url and options. It does not dial.
func NewClient(url string, opts ...ClientOption) (*Client, error) {
	if url == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Client", "NewClient", "check url")
	}

	cfg := defaultSettings()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, errors.WrapInvalid(err, "Client", "NewClient", "apply option")
		}
	}

	return &Client{
		url:     url,
		cfg:     cfg,
		logger:  cfg.logger.With("component", "natsclient"),
		metrics: cfg.metrics,
		brk:     newBreaker(cfg.breakerThreshold, cfg.breakerCeiling),
	}, nil
}

func (c *Client) URL() string { return c.url }

func (c *Client) Status() ConnectionStatus {
	return ConnectionStatus(c.status.Load())
}

func (c *Client) setStatus(s ConnectionStatus) {
	c.status.Store(int32(s))
	c.metrics.RecordNATSStatus(s == StatusConnected)
}

// IsHealthy reports whether the client is connected
func (c *Client) IsHealthy() bool { return c.Status() == StatusConnected }

// Failures is the number of failures since the last success
func (c *Client) Failures() int { return c.brk.failures() }

// Backoff is how long the breaker will stay open on its next trip
func (c *Client) Backoff() time.Duration { return c.brk.nextBackoff() }

func (c *Client) fail() {
	tripped, open := c.brk.fail()
	if !tripped {
		return
	}
	if c.Status() == StatusCircuitOpen {
		c.logger.Warn("circuit breaker still open", "backoff", c.brk.nextBackoff())
		return
	}
	c.setStatus(StatusCircuitOpen)
	c.logger.Warn("circuit breaker opened", "failures", c.brk.failures(), "open_for", open)
	time.AfterFunc(open, c.halfOpen)
}

// halfOpen lets the next Connect attempt through
func (c *Client) halfOpen() {
	c.status.CompareAndSwap(int32(StatusCircuitOpen), int32(StatusDisconnected))
}

func (c *Client) succeed() {
	c.brk.reset()
	c.halfOpen()
}

func (c *Client) natsOptions() []nats.Option {
	opts := []nats.Option{
		nats.MaxReconnects(c.cfg.maxReconnects),
		nats.ReconnectWait(c.cfg.reconnectWait),
		nats.Timeout(c.cfg.timeout),
		nats.DrainTimeout(c.cfg.drainTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if c.closed.Load() {
				return
			}
			c.setStatus(StatusReconnecting)
			c.logger.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(*nats.Conn) {
			c.succeed()
			c.setStatus(StatusConnected)
			c.logger.Info("NATS reconnected")
		}),
		nats.ClosedHandler(func(*nats.Conn) { c.setStatus(StatusDisconnected) }),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			c.logger.Error("NATS error", "error", err)
		}),
	}
	if c.cfg.name != "" {
		opts = append(opts, nats.Name(c.cfg.name))
	}
	if c.cfg.token != "" {
		opts = append(opts, nats.Token(c.cfg.token))
	}
	if c.cfg.tls != nil {
		opts = append(opts, nats.Secure(c.cfg.tls))
	}
	return opts
}

// dial runs nats.Connect in the background so ctx can abandon it. A
// connection that completes after ctx ends is closed.
func (c *Client) dial(ctx context.Context) (*nats.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type outcome struct {
		conn *nats.Conn
		err  error
	}
	ch := make(chan outcome, 1)
	go func() {
		conn, err := nats.Connect(c.url, c.natsOptions()...)
		ch <- outcome{conn, err}
	}()

	select {
	case o := <-ch:
		return o.conn, o.err
	case <-ctx.Done():
		go func() {
			if o := <-ch; o.conn != nil {
				o.conn.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

// Connect dials once. It returns ErrCircuitOpen while the breaker is open
// and nil when already connected.
func (c *Client) Connect(ctx context.Context) error {
	switch {
	case c.closed.Load():
		return ErrClosed
	case c.Status() == StatusCircuitOpen:
		return ErrCircuitOpen
	case c.Connection() != nil:
		return nil
	}

	c.setStatus(StatusConnecting)
	c.logger.Info("connecting to NATS", "url", c.url)

	conn, err := c.dial(ctx)
	if err != nil {
		c.setStatus(StatusDisconnected)
		c.fail()
		if c.Status() == StatusCircuitOpen {
			return ErrCircuitOpen
		}
		return errors.WrapTransient(err, "Client", "Connect", "establish connection")
	}

	js, err := jetstream.New(conn)
	if err != nil {
		c.logger.Debug("jetstream unavailable", "error", err)
	}

	c.mu.Lock()
	c.conn, c.js = conn, js
	c.mu.Unlock()

	c.succeed()
	c.setStatus(StatusConnected)
	c.logger.Info("connected to NATS", "url", c.url)
	return nil
}

// WaitForConnection polls until the client is connected or ctx is done
func (c *Client) WaitForConnection(ctx context.Context) error {
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()

	for !c.IsHealthy() {
		select {
		case <-ctx.Done():
			return fmt.Errorf("connection timeout: %w", ctx.Err())
		case <-tick.C:
		}
	}
	return nil
}

// Connection returns the live connection or nil
func (c *Client) Connection() *nats.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

func (c *Client) live() (*nats.Conn, error) {
	conn := c.Connection()
	if conn == nil || !conn.IsConnected() {
		return nil, ErrNotConnected
	}
	return conn, nil
}

// RTT measures a round trip to the server
func (c *Client) RTT() (time.Duration, error) {
	conn, err := c.live()
	if err != nil {
		return 0, err
	}
	return conn.RTT()
}

// Health reports the connection as a health component. A connected client
// that cannot complete a round trip is degraded.
func (c *Client) Health() health.Status {
	status := c.Status()
	details := &health.Details{State: status.String(), Attempts: c.Failures()}

	var st health.Status
	switch status {
	case StatusConnected:
		rtt, err := c.RTT()
		if err != nil {
			st = health.NewDegraded(HealthComponent, fmt.Sprintf("round trip failed: %v", err))
			break
		}
		st = health.NewHealthy(HealthComponent, fmt.Sprintf("connected, rtt %v", rtt.Round(time.Microsecond)))
	case StatusConnecting, StatusReconnecting:
		st = health.NewDegraded(HealthComponent, status.String())
	case StatusCircuitOpen:
		st = health.NewUnhealthy(HealthComponent, fmt.Sprintf("circuit open after %d failures", c.Failures()))
	default:
		st = health.NewUnhealthy(HealthComponent, status.String())
	}
	return st.WithDetails(details)
}

// Publish sends data on subject without waiting for an ack
func (c *Client) Publish(_ context.Context, subject string, data []byte) error {
	conn, err := c.live()
	if err != nil {
		return err
	}
	if err := conn.Publish(subject, data); err != nil {
		return errors.WrapTransient(err, "Client", "Publish", "publish "+subject)
	}
	return nil
}

// jetStream returns the JetStream context created on connect
func (c *Client) jetStream() (jetstream.JetStream, error) {
	c.mu.RLock()
	js := c.js
	c.mu.RUnlock()
	if js == nil {
		return nil, errors.WrapTransient(ErrNotConnected, "Client", "jetStream", "get JetStream context")
	}
	return js, nil
}

func (c *Client) connectedJetStream() (jetstream.JetStream, error) {
	if !c.IsHealthy() {
		return nil, ErrNotConnected
	}
	return c.jetStream()
}

// EnsureStream creates or updates a file-backed stream over subjects
func (c *Client) EnsureStream(ctx context.Context, name string, subjects ...string) (jetstream.Stream, error) {
	js, err := c.connectedJetStream()
	if err != nil {
		return nil, err
	}
	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     name,
		Subjects: subjects,
		Storage:  jetstream.FileStorage,
	})
	if err != nil {
		c.fail()
		return nil, errors.WrapTransient(err, "Client", "EnsureStream", "create stream "+name)
	}
	return stream, nil
}

// PublishToStream publishes and waits for the stream ack
func (c *Client) PublishToStream(ctx context.Context, subject string, data []byte) error {
	js, err := c.connectedJetStream()
	if err != nil {
		return err
	}
	if _, err := js.Publish(ctx, subject, data); err != nil {
		c.fail()
		return errors.WrapTransient(err, "Client", "PublishToStream", "publish "+subject)
	}
	return nil
}

// Close drains the connection, bounded by the drain timeout and ctx.
// Later calls are no-ops.
func (c *Client) Close(ctx context.Context) error {
	if c.closed.Swap(true) {
		return nil
	}
	defer c.setStatus(StatusDisconnected)

	c.mu.Lock()
	conn := c.conn
	c.conn, c.js = nil, nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	defer conn.Close()

	drained := make(chan error, 1)
	go func() { drained <- conn.Drain() }()

	select {
	case err := <-drained:
		return errors.Wrap(err, "Client", "Close", "drain connection")
	case <-time.After(c.cfg.drainTimeout):
		return errors.WrapTransient(fmt.Errorf("drain timeout after %v", c.cfg.drainTimeout),
			"Client", "Close", "drain connection")
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "Client", "Close", "drain connection")
	}
}
