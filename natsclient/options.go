package natsclient

import (
	"crypto/tls"
	"log/slog"
	"time"

	"github.com/ScGaSe/smartlogistics-sub001/metric"
)

type settings struct {
	logger  *slog.Logger
	metrics *metric.Metrics

	name          string
	token         string
	tls           *tls.Config
	maxReconnects int
	reconnectWait time.Duration
	timeout       time.Duration
	drainTimeout  time.Duration

	breakerThreshold int
	breakerCeiling   time.Duration
}

func defaultSettings() settings {
	return settings{
		logger:           slog.Default(),
		maxReconnects:    -1,
		reconnectWait:    2 * time.Second,
		timeout:          5 * time.Second,
		drainTimeout:     10 * time.Second,
		breakerThreshold: defaultBreakerThreshold,
		breakerCeiling:   defaultBreakerCeiling,
	}
}

// ClientOption configures a Client
type ClientOption func(*settings) error

func WithLogger(logger *slog.Logger) ClientOption {
	return func(s *settings) error {
		if logger != nil {
			s.logger = logger
		}
		return nil
	}
}

// WithMetrics drives the gatelink_nats_connected gauge
func WithMetrics(m *metric.Metrics) ClientOption {
	return func(s *settings) error {
		s.metrics = m
		return nil
	}
}

// WithName identifies the connection to the server
func WithName(name string) ClientOption {
	return func(s *settings) error {
		s.name = name
		return nil
	}
}

func WithToken(token string) ClientOption {
	return func(s *settings) error {
		s.token = token
		return nil
	}
}

// WithTLSConfig dials with cfg. Nil leaves TLS to the URL scheme.
func WithTLSConfig(cfg *tls.Config) ClientOption {
	return func(s *settings) error {
		s.tls = cfg
		return nil
	}
}

// WithMaxReconnects bounds automatic reconnects after a drop; -1 is unbounded
func WithMaxReconnects(n int) ClientOption {
	return func(s *settings) error {
		s.maxReconnects = n
		return nil
	}
}

func WithReconnectWait(d time.Duration) ClientOption {
	return func(s *settings) error {
		s.reconnectWait = d
		return nil
	}
}

// WithTimeout bounds a single dial
func WithTimeout(d time.Duration) ClientOption {
	return func(s *settings) error {
		s.timeout = d
		return nil
	}
}

// WithCircuitBreakerThreshold sets how many consecutive failures trip the
// breaker. Values below one keep the default of five.
func WithCircuitBreakerThreshold(n int) ClientOption {
	return func(s *settings) error {
		if n > 0 {
			s.breakerThreshold = n
		}
		return nil
	}
}

// WithMaxBackoff caps how long a tripped breaker stays open
func WithMaxBackoff(d time.Duration) ClientOption {
	return func(s *settings) error {
		if d >= initialBreakerBackoff {
			s.breakerCeiling = d
		}
		return nil
	}
}
