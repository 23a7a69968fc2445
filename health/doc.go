// Package health maps channel snapshots to health statuses and aggregates
// them for the whole process.
//
// A status is one of "healthy", "degraded" or "unhealthy". Aggregation is
// pessimistic: any unhealthy child makes the parent unhealthy, otherwise any
// degraded child makes it degraded.
//
//	monitor := health.NewMonitor()
//	monitor.Update("traffic", health.FromChannel("traffic", info))
//	monitor.Set("relay", health.LevelDegraded, err.Error())
//	overall := monitor.AggregateHealth("gatelink")
//
// Error text passed through FromChannel or Monitor.Set is sanitized: URLs, paths, addresses, ports and credentials are masked before
// they reach a health endpoint.
package health
