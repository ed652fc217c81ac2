// Package metric provides the Prometheus registry and HTTP endpoint of a
// vizflow process.
//
// NewMetricsRegistry registers the engine's core metrics (network size,
// structural edits, errors, event delivery, NATS status) plus the Go runtime
// collectors. Components such as the evaluator and the worker pool register
// their own collectors through MetricsRegistrar, keyed by component and
// metric name so duplicates are rejected.
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(9090, "/metrics", registry)
//	server.Handle("/events", hub)
//	go server.Start(ctx)
package metric
