// Package metric provides Prometheus-based metrics for gatelink channels and
// the HTTP server that exposes them.
//
// # Architecture
//
//  1. Core Metrics: channel-layer metrics registered automatically (Metrics type)
//  2. Registrar: owner/name keyed registration for component metrics (Registrar)
//  3. HTTP Server: /metrics in Prometheus format plus a pluggable /health (Server)
//
// # Basic Usage
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(9090, "/metrics", registry,
//	    metric.WithHealthHandler(healthHandler))
//
//	go func() {
//	    if err := server.Start(); err != nil {
//	        logger.Error("metrics server failed", "error", err)
//	    }
//	}()
//	defer server.Stop()
//
// All Metrics Record methods tolerate a nil receiver, so channels built
// without a registry skip recording.
package metric
