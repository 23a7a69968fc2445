package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gatelink"

// Metrics contains the channel-layer metrics. All Record methods are safe on
// a nil receiver so components can run without a registry.
type Metrics struct {
	// Channel metrics
	ChannelState      *prometheus.GaugeVec
	Connects          *prometheus.CounterVec
	ReconnectAttempts *prometheus.CounterVec
	Exhaustions       *prometheus.CounterVec
	FramesReceived    *prometheus.CounterVec
	DecodeFailures    *prometheus.CounterVec
	EventsPublished   *prometheus.CounterVec
	FramesSent        *prometheus.CounterVec
	SinkFailures      *prometheus.CounterVec
	DialDuration      *prometheus.HistogramVec

	// Relay metrics
	NATSConnected  prometheus.Gauge
	RelayPublished *prometheus.CounterVec
	RelayFailures  *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		ChannelState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "channel",
				Name:      "state",
				Help:      "Channel state (0=disconnected, 1=connecting, 2=connected, 3=reconnecting)",
			},
			[]string{"channel"},
		),

		Connects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "channel",
				Name:      "connects_total",
				Help:      "Total number of successful channel opens",
			},
			[]string{"channel", "mode"},
		),

		ReconnectAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "channel",
				Name:      "reconnect_attempts_total",
				Help:      "Total number of scheduled reconnect attempts",
			},
			[]string{"channel"},
		),

		Exhaustions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "channel",
				Name:      "exhausted_total",
				Help:      "Total number of sessions that reached the reconnect ceiling",
			},
			[]string{"channel"},
		),

		FramesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "frames",
				Name:      "received_total",
				Help:      "Total number of inbound frames",
			},
			[]string{"channel"},
		),

		DecodeFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "frames",
				Name:      "decode_failures_total",
				Help:      "Total number of dropped inbound frames",
			},
			[]string{"channel", "reason"},
		),

		EventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "events",
				Name:      "published_total",
				Help:      "Total number of typed events published to subscribers",
			},
			[]string{"channel"},
		),

		FramesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "frames",
				Name:      "sent_total",
				Help:      "Total number of outbound frames by result",
			},
			[]string{"channel", "status"},
		),

		SinkFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sink",
				Name:      "failures_total",
				Help:      "Total number of notification sink failures",
			},
			[]string{"sink"},
		),

		DialDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "channel",
				Name:      "dial_duration_seconds",
				Help:      "Time taken to open a channel transport",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"channel", "mode"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		RelayPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "relay",
				Name:      "published_total",
				Help:      "Total number of events relayed to NATS",
			},
			[]string{"channel"},
		),

		RelayFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "relay",
				Name:      "failures_total",
				Help:      "Total number of failed relay publishes",
			},
			[]string{"channel"},
		),
	}
}

func (c *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.ChannelState,
		c.Connects,
		c.ReconnectAttempts,
		c.Exhaustions,
		c.FramesReceived,
		c.DecodeFailures,
		c.EventsPublished,
		c.FramesSent,
		c.SinkFailures,
		c.DialDuration,
		c.NATSConnected,
		c.RelayPublished,
		c.RelayFailures,
	}
}

// RecordChannelState updates the state gauge
func (c *Metrics) RecordChannelState(channel string, state int) {
	if c == nil {
		return
	}
	c.ChannelState.WithLabelValues(channel).Set(float64(state))
}

// RecordConnect increments successful opens and observes dial time
func (c *Metrics) RecordConnect(channel, mode string, dial time.Duration) {
	if c == nil {
		return
	}
	c.Connects.WithLabelValues(channel, mode).Inc()
	c.DialDuration.WithLabelValues(channel, mode).Observe(dial.Seconds())
}

// RecordReconnectAttempt increments scheduled reconnects
func (c *Metrics) RecordReconnectAttempt(channel string) {
	if c == nil {
		return
	}
	c.ReconnectAttempts.WithLabelValues(channel).Inc()
}

// RecordExhausted increments the ceiling counter
func (c *Metrics) RecordExhausted(channel string) {
	if c == nil {
		return
	}
	c.Exhaustions.WithLabelValues(channel).Inc()
}

// RecordFrameReceived increments inbound frames
func (c *Metrics) RecordFrameReceived(channel string) {
	if c == nil {
		return
	}
	c.FramesReceived.WithLabelValues(channel).Inc()
}

// RecordDecodeFailure increments dropped frames
func (c *Metrics) RecordDecodeFailure(channel, reason string) {
	if c == nil {
		return
	}
	c.DecodeFailures.WithLabelValues(channel, reason).Inc()
}

// RecordEventPublished increments delivered events
func (c *Metrics) RecordEventPublished(channel string) {
	if c == nil {
		return
	}
	c.EventsPublished.WithLabelValues(channel).Inc()
}

// RecordFrameSent increments outbound frames by status ("ok", "dropped", "error")
func (c *Metrics) RecordFrameSent(channel, status string) {
	if c == nil {
		return
	}
	c.FramesSent.WithLabelValues(channel, status).Inc()
}

// RecordSinkFailure increments sink failures
func (c *Metrics) RecordSinkFailure(sink string) {
	if c == nil {
		return
	}
	c.SinkFailures.WithLabelValues(sink).Inc()
}

// RecordNATSStatus updates NATS connection status
func (c *Metrics) RecordNATSStatus(connected bool) {
	if c == nil {
		return
	}
	value := 0.0
	if connected {
		value = 1.0
	}
	c.NATSConnected.Set(value)
}

// RecordRelay increments relay outcomes
func (c *Metrics) RecordRelay(channel string, err error) {
	if c == nil {
		return
	}
	if err != nil {
		c.RelayFailures.WithLabelValues(channel).Inc()
		return
	}
	c.RelayPublished.WithLabelValues(channel).Inc()
}
