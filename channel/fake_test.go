package channel

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ScGaSe/smartlogistics-sub001/bus"
	"github.com/ScGaSe/smartlogistics-sub001/errors"
	"github.com/ScGaSe/smartlogistics-sub001/message"
	"github.com/ScGaSe/smartlogistics-sub001/pkg/retry"
)

// fakeDialer counts dials and delegates to dial
type fakeDialer struct {
	mu        sync.Mutex
	dials     int
	endpoints []Endpoint
	dial      func(ctx context.Context, n int, ep Endpoint) (Conn, error)
}

func (f *fakeDialer) Mode() string { return "fake" }

func (f *fakeDialer) Dial(ctx context.Context, ep Endpoint) (Conn, error) {
	f.mu.Lock()
	f.dials++
	n := f.dials
	f.endpoints = append(f.endpoints, ep)
	fn := f.dial
	f.mu.Unlock()
	return fn(ctx, n, ep)
}

func (f *fakeDialer) Dials() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dials
}

func (f *fakeDialer) LastEndpoint() Endpoint {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.endpoints) == 0 {
		return Endpoint{}
	}
	return f.endpoints[len(f.endpoints)-1]
}

func failingDial(_ context.Context, _ int, _ Endpoint) (Conn, error) {
	return nil, errors.WrapTransient(errors.ErrConnectionLost, "fake", "Dial", "open connection")
}

// fakeConn is a scriptable Conn. With ignoreClose set, Read keeps
// returning frames after Close, like a transport with frames in flight.
type fakeConn struct {
	frames      chan []byte
	drops       chan error
	written     chan []byte
	writeErr    error
	ignoreClose bool

	closeOnce sync.Once
	closed    chan struct{}
	closeCode atomic.Int32
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames:  make(chan []byte, 16),
		drops:   make(chan error, 1),
		written: make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) Read(ctx context.Context) ([]byte, error) {
	done, closed := ctx.Done(), c.closed
	if c.ignoreClose {
		done, closed = nil, nil
	}
	select {
	case <-done:
		return nil, ctx.Err()
	case <-closed:
		return nil, errors.WrapTransient(errors.ErrClosed, "fakeConn", "Read", "read frame")
	case err := <-c.drops:
		return nil, err
	case frame, ok := <-c.frames:
		if !ok {
			return nil, io.EOF
		}
		return frame, nil
	}
}

func (c *fakeConn) Write(_ context.Context, data []byte) error {
	if c.writeErr != nil {
		return c.writeErr
	}
	c.written <- data
	return nil
}

func (c *fakeConn) Close(code int, _ string) error {
	c.closeOnce.Do(func() {
		c.closeCode.Store(int32(code))
		close(c.closed)
	})
	return nil
}

func (c *fakeConn) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// tickDecoder accepts {"type":"tick"} frames only
func tickDecoder(data []byte) (any, error) {
	env, err := message.ParseEnvelope(data)
	if err != nil {
		return nil, err
	}
	if env.Type != "tick" {
		return nil, errors.WrapInvalid(errors.ErrUnknownType, "test", "decode", "map discriminator")
	}
	return string(data), nil
}

// recorder drains a subscription and keeps what it received
type recorder struct {
	mu     sync.Mutex
	values []any
	done   chan struct{}
}

func record(ch bus.Subscription) *recorder {
	r := &recorder{done: make(chan struct{})}
	go func() {
		defer close(r.done)
		for v := range ch {
			r.mu.Lock()
			r.values = append(r.values, v)
			r.mu.Unlock()
		}
	}()
	return r
}

func (r *recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.values)
}

func (r *recorder) States() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []State
	for _, v := range r.values {
		if snap, ok := v.(Snapshot); ok {
			out = append(out, snap.State)
		}
	}
	return out
}

func (r *recorder) Events() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.values...)
}

func fastPolicy() retry.Policy {
	return retry.FixedPolicy(DefaultMaxAttempts, time.Millisecond)
}

func newTestSupervisor(t *testing.T, kind Kind, d Dialer, opts ...Option) *Supervisor {
	t.Helper()
	opts = append([]Option{WithDialer(d), WithPolicy(fastPolicy())}, opts...)
	s := NewSupervisor(kind, tickDecoder, opts...)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func assertValidPath(t *testing.T, states []State) {
	t.Helper()
	from := Disconnected
	for i, to := range states {
		if !ValidTransition(from, to) {
			t.Fatalf("illegal transition %s -> %s at index %d in %v", from, to, i, states)
		}
		from = to
	}
}
