package evaluator

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/vizflow/metric"
)

// evalMetrics holds Prometheus metrics for evaluation passes
type evalMetrics struct {
	passes          prometheus.Counter
	runs            *prometheus.CounterVec
	cycleErrors     prometheus.Counter
	passDuration    prometheus.Histogram
	processDuration *prometheus.HistogramVec
}

func newEvalMetrics(registry metric.MetricsRegistrar) (*evalMetrics, error) {
	m := &evalMetrics{
		passes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vizflow",
			Subsystem: "evaluator",
			Name:      "passes_total",
			Help:      "Evaluation passes started",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vizflow",
			Subsystem: "evaluator",
			Name:      "processor_runs_total",
			Help:      "Processor visits by outcome",
		}, []string{"status"}),
		cycleErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vizflow",
			Subsystem: "evaluator",
			Name:      "cycle_errors_total",
			Help:      "Passes refused because of a connection cycle",
		}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vizflow",
			Subsystem: "evaluator",
			Name:      "pass_duration_seconds",
			Help:      "Duration of evaluation passes",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		processDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "vizflow",
			Subsystem: "evaluator",
			Name:      "process_duration_seconds",
			Help:      "Duration of single processor runs by class",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16),
		}, []string{"class"}),
	}

	if err := registry.RegisterCounter("evaluator", "passes", m.passes); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("evaluator", "processor_runs", m.runs); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("evaluator", "cycle_errors", m.cycleErrors); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogram("evaluator", "pass_duration", m.passDuration); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogramVec("evaluator", "process_duration", m.processDuration); err != nil {
		return nil, err
	}
	return m, nil
}
