package channel

import (
	"context"
	"sync"
	"time"

	"github.com/ScGaSe/smartlogistics-sub001/errors"
)

// Fallback generator defaults
const (
	DefaultFallbackConnectDelay = time.Second
	DefaultFallbackInterval     = 5 * time.Second
)

// Rotation returns the frames a fallback connection cycles through. It is
// called once per emitted frame so timestamps stay fresh.
type Rotation func(ep Endpoint) [][]byte

// FallbackDialer produces synthetic connections that emit a fixed rotation
// of frames without network I/O
type FallbackDialer struct {
	ConnectDelay time.Duration
	Interval     time.Duration
	Rotation     Rotation
}

// NewFallbackDialer creates a fallback dialer. Zero durations use the defaults.
func NewFallbackDialer(rotation Rotation, connectDelay, interval time.Duration) *FallbackDialer {
	if connectDelay <= 0 {
		connectDelay = DefaultFallbackConnectDelay
	}
	if interval <= 0 {
		interval = DefaultFallbackInterval
	}
	return &FallbackDialer{
		ConnectDelay: connectDelay,
		Interval:     interval,
		Rotation:     rotation,
	}
}

// Mode implements Dialer
func (f *FallbackDialer) Mode() string { return "fallback" }

// Dial waits ConnectDelay and returns a generator connection
func (f *FallbackDialer) Dial(ctx context.Context, ep Endpoint) (Conn, error) {
	if f.Rotation == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "FallbackDialer", "Dial", "check rotation")
	}

	timer := time.NewTimer(f.ConnectDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}

	interval := f.Interval
	if interval <= 0 {
		interval = DefaultFallbackInterval
	}
	return &fallbackConn{
		endpoint: ep,
		rotation: f.Rotation,
		ticker:   time.NewTicker(interval),
		done:     make(chan struct{}),
	}, nil
}

type fallbackConn struct {
	endpoint Endpoint
	rotation Rotation
	ticker   *time.Ticker

	mu    sync.Mutex
	index int

	closeOnce sync.Once
	done      chan struct{}
}

// Read returns the next frame of the rotation once per interval
func (c *fallbackConn) Read(ctx context.Context) ([]byte, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.done:
			return nil, errors.WrapTransient(errors.ErrClosed, "fallbackConn", "Read", "wait for frame")
		case <-c.ticker.C:
		}

		// Close may race with a tick that already fired
		select {
		case <-c.done:
			return nil, errors.WrapTransient(errors.ErrClosed, "fallbackConn", "Read", "wait for frame")
		default:
		}

		frames := c.rotation(c.endpoint)
		if len(frames) == 0 {
			continue
		}

		c.mu.Lock()
		frame := frames[c.index%len(frames)]
		c.index = (c.index + 1) % len(frames)
		c.mu.Unlock()
		return frame, nil
	}
}

// Write discards outbound frames
func (c *fallbackConn) Write(_ context.Context, _ []byte) error {
	select {
	case <-c.done:
		return errors.WrapTransient(errors.ErrClosed, "fallbackConn", "Write", "write frame")
	default:
		return nil
	}
}

// Close stops the generator; pending reads return immediately
func (c *fallbackConn) Close(_ int, _ string) error {
	c.closeOnce.Do(func() {
		c.ticker.Stop()
		close(c.done)
	})
	return nil
}
