package metric

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ScGaSe/smartlogistics-sub001/errors"
)

// Registrar accepts collectors owned by a component. Keys are owner/name
// pairs; the same key cannot be registered twice.
type Registrar interface {
	Register(owner, name string, c prometheus.Collector) error
	Unregister(owner, name string) bool
}

var _ Registrar = (*MetricsRegistry)(nil)

// MetricsRegistry wraps a private Prometheus registry holding the channel
// metrics, the Go runtime collectors and anything components add through
// Register.
type MetricsRegistry struct {
	prom    *prometheus.Registry
	Metrics *Metrics

	mu    sync.Mutex
	owned map[string]prometheus.Collector
}

func NewMetricsRegistry() *MetricsRegistry {
	r := &MetricsRegistry{
		prom:    prometheus.NewRegistry(),
		Metrics: NewMetrics(),
		owned:   map[string]prometheus.Collector{},
	}
	r.prom.MustRegister(r.Metrics.collectors()...)
	r.prom.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// PrometheusRegistry exposes the registry for gathering
func (r *MetricsRegistry) PrometheusRegistry() *prometheus.Registry { return r.prom }

// CoreMetrics returns the channel metrics. Safe on a nil registry.
func (r *MetricsRegistry) CoreMetrics() *Metrics {
	if r == nil {
		return nil
	}
	return r.Metrics
}

// Register adds c under owner/name. A repeated key or a Prometheus descriptor
// clash is an invalid error; anything else Prometheus rejects is fatal.
func (r *MetricsRegistry) Register(owner, name string, c prometheus.Collector) error {
	key := owner + "/" + name

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.owned[key]; dup {
		return errors.WrapInvalid(fmt.Errorf("metric %q already registered", key),
			"MetricsRegistry", "Register", "duplicate key")
	}

	if err := r.prom.Register(c); err != nil {
		var clash prometheus.AlreadyRegisteredError
		if stderrors.As(err, &clash) {
			return errors.WrapInvalid(err, "MetricsRegistry", "Register",
				"descriptor conflict for "+key)
		}
		return errors.WrapFatal(err, "MetricsRegistry", "Register", "prometheus rejected "+key)
	}

	r.owned[key] = c
	return nil
}

// Unregister drops the collector under owner/name. It reports whether
// anything was removed.
func (r *MetricsRegistry) Unregister(owner, name string) bool {
	key := owner + "/" + name

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.owned[key]
	if !ok || !r.prom.Unregister(c) {
		return false
	}
	delete(r.owned, key)
	return true
}
