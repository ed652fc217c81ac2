// Package health tracks the health of the processors of a network.
//
// The evaluator records one Status per processor after every pass: healthy
// after a successful run, degraded when the processor was skipped because
// an input had no data, and unhealthy after a failed run. A Monitor keeps
// the latest status per processor and aggregates them:
//
//	monitor := health.NewMonitor()
//	monitor.UpdateHealthy("Source", "processed")
//	overall := monitor.AggregateHealth("network")
//
// Monitor.Handler serves the aggregate as JSON.
package health
