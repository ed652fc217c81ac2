package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the engine level metrics shared by all packages
type Metrics struct {
	// Network shape
	NetworkProcessors  prometheus.Gauge
	NetworkConnections prometheus.Gauge
	NetworkLinks       prometheus.Gauge

	// Structural edits by kind and outcome
	NetworkEdits *prometheus.CounterVec

	// Failures by component and error class
	ErrorsTotal *prometheus.CounterVec

	// Event delivery
	EventsPublished *prometheus.CounterVec

	// NATS
	NATSConnected prometheus.Gauge
}

// NewMetrics creates the engine metrics
func NewMetrics() *Metrics {
	return &Metrics{
		NetworkProcessors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vizflow",
			Subsystem: "network",
			Name:      "processors",
			Help:      "Number of processors in the network",
		}),
		NetworkConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vizflow",
			Subsystem: "network",
			Name:      "connections",
			Help:      "Number of port connections in the network",
		}),
		NetworkLinks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vizflow",
			Subsystem: "network",
			Name:      "links",
			Help:      "Number of property links in the network",
		}),
		NetworkEdits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vizflow",
				Subsystem: "network",
				Name:      "edits_total",
				Help:      "Structural network edits",
			},
			[]string{"operation", "status"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vizflow",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors",
			},
			[]string{"component", "class"},
		),
		EventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vizflow",
				Subsystem: "events",
				Name:      "published_total",
				Help:      "Network events delivered to external sinks",
			},
			[]string{"sink", "kind"},
		),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vizflow",
			Subsystem: "nats",
			Name:      "connected",
			Help:      "NATS connection status (0=disconnected, 1=connected)",
		}),
	}
}

func (c *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.NetworkProcessors,
		c.NetworkConnections,
		c.NetworkLinks,
		c.NetworkEdits,
		c.ErrorsTotal,
		c.EventsPublished,
		c.NATSConnected,
	}
}

// RecordNetworkSize updates the network shape gauges
func (c *Metrics) RecordNetworkSize(processors, connections, links int) {
	c.NetworkProcessors.Set(float64(processors))
	c.NetworkConnections.Set(float64(connections))
	c.NetworkLinks.Set(float64(links))
}

// RecordEdit counts a structural edit
func (c *Metrics) RecordEdit(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.NetworkEdits.WithLabelValues(operation, status).Inc()
}

// RecordError increments the error counter
func (c *Metrics) RecordError(component, class string) {
	c.ErrorsTotal.WithLabelValues(component, class).Inc()
}

// RecordEventPublished counts an event delivered to sink
func (c *Metrics) RecordEventPublished(sink, kind string) {
	c.EventsPublished.WithLabelValues(sink, kind).Inc()
}

// RecordNATSStatus updates NATS connection status
func (c *Metrics) RecordNATSStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	c.NATSConnected.Set(value)
}

// Since returns the seconds elapsed since start, for histogram observations
func Since(start time.Time) float64 {
	return time.Since(start).Seconds()
}
