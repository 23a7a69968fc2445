package buffer

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ScGaSe/smartlogistics-sub001/metric"
)

// bufferMetrics holds Prometheus metrics for buffer operations.
type bufferMetrics struct {
	writes prometheus.Counter
	drops  prometheus.Counter
	size   prometheus.Gauge
}

// newBufferMetrics creates and registers buffer metrics with the provided registry.
func newBufferMetrics(registry *metric.MetricsRegistry, prefix string) (*bufferMetrics, error) {
	labels := prometheus.Labels{"component": prefix}
	m := &bufferMetrics{
		writes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "gatelink",
			Subsystem:   "history",
			Name:        "writes_total",
			ConstLabels: labels,
			Help:        "Total number of history writes",
		}),
		drops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "gatelink",
			Subsystem:   "history",
			Name:        "drops_total",
			ConstLabels: labels,
			Help:        "Total number of history entries dropped due to overflow",
		}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "gatelink",
			Subsystem:   "history",
			Name:        "size",
			ConstLabels: labels,
			Help:        "Current number of history entries",
		}),
	}

	if err := registry.Register(prefix, "history_writes", m.writes); err != nil {
		return nil, err
	}
	if err := registry.Register(prefix, "history_drops", m.drops); err != nil {
		return nil, err
	}
	if err := registry.Register(prefix, "history_size", m.size); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *bufferMetrics) recordWrite(size int) {
	m.writes.Inc()
	m.size.Set(float64(size))
}

func (m *bufferMetrics) recordDrop() {
	m.drops.Inc()
}

func (m *bufferMetrics) updateSize(size int) {
	m.size.Set(float64(size))
}
