package channel

import (
	"log/slog"
	"time"

	"github.com/ScGaSe/smartlogistics-sub001/bus"
	"github.com/ScGaSe/smartlogistics-sub001/metric"
	"github.com/ScGaSe/smartlogistics-sub001/pkg/retry"
)

// Reconnection defaults
const (
	DefaultMaxAttempts    = 10
	DefaultReconnectDelay = 5 * time.Second
)

// DefaultPolicy returns the reconnection policy for kind: a fixed delay for
// notifications and traffic, a delay growing linearly with the attempt
// number for location share.
func DefaultPolicy(kind Kind) retry.Policy {
	if kind == KindLocationShare {
		return retry.LinearPolicy(DefaultMaxAttempts, DefaultReconnectDelay)
	}
	return retry.FixedPolicy(DefaultMaxAttempts, DefaultReconnectDelay)
}

// Option configures a Supervisor
type Option func(*Supervisor)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records channel metrics
func WithMetrics(m *metric.Metrics) Option {
	return func(s *Supervisor) {
		s.metrics = m
	}
}

// WithPolicy overrides the reconnection policy
func WithPolicy(p retry.Policy) Option {
	return func(s *Supervisor) {
		s.policy = p
	}
}

// WithDialer selects the transport. The default is a WebSocketDialer.
func WithDialer(d Dialer) Option {
	return func(s *Supervisor) {
		if d != nil {
			s.dialer = d
		}
	}
}

// WithEndpoint sets the endpoint provider
func WithEndpoint(p EndpointProvider) Option {
	return func(s *Supervisor) {
		if p != nil {
			s.endpoint = p
		}
	}
}

// WithBus publishes on an existing bus. A bus passed in is not closed by
// Supervisor.Close.
func WithBus(b bus.MessageBus) Option {
	return func(s *Supervisor) {
		if b != nil {
			s.bus = b
			s.ownsBus = false
		}
	}
}

// WithEventHandler runs fn for every decoded event before it is published.
// fn runs on the session goroutine and must not call back into the Supervisor.
func WithEventHandler(fn func(event any)) Option {
	return func(s *Supervisor) {
		s.onEvent = fn
	}
}

// WithDeliveryHandler runs fn for every published event after the emission
// lock is released. It is skipped once the session has ended, so Connect and
// Disconnect never wait for it. fn runs on the session goroutine and may block
// further reads from the connection.
func WithDeliveryHandler(fn func(event any)) Option {
	return func(s *Supervisor) {
		s.onDeliver = fn
	}
}

// WithStopTimeout bounds how long Close waits for the session goroutine
func WithStopTimeout(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.stopTimeout = d
		}
	}
}
