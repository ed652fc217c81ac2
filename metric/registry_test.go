package metric

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/vizflow/errors"
)

func TestNewMetricsRegistry(t *testing.T) {
	registry := NewMetricsRegistry()

	require.NotNil(t, registry)
	assert.NotNil(t, registry.PrometheusRegistry())
	assert.Same(t, registry.Metrics, registry.CoreMetrics())
}

func TestMetricsRegistry_Register(t *testing.T) {
	registry := NewMetricsRegistry()

	tests := []struct {
		name     string
		register func() error
	}{
		{"counter", func() error {
			return registry.RegisterCounter("evaluator", "c", prometheus.NewCounter(prometheus.CounterOpts{Name: "t_counter", Help: "h"}))
		}},
		{"gauge", func() error {
			return registry.RegisterGauge("evaluator", "g", prometheus.NewGauge(prometheus.GaugeOpts{Name: "t_gauge", Help: "h"}))
		}},
		{"histogram", func() error {
			return registry.RegisterHistogram("evaluator", "h", prometheus.NewHistogram(prometheus.HistogramOpts{Name: "t_hist", Help: "h"}))
		}},
		{"counter vec", func() error {
			return registry.RegisterCounterVec("evaluator", "cv",
				prometheus.NewCounterVec(prometheus.CounterOpts{Name: "t_counter_vec", Help: "h"}, []string{"status"}))
		}},
		{"gauge vec", func() error {
			return registry.RegisterGaugeVec("evaluator", "gv",
				prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "t_gauge_vec", Help: "h"}, []string{"status"}))
		}},
		{"histogram vec", func() error {
			return registry.RegisterHistogramVec("evaluator", "hv",
				prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "t_hist_vec", Help: "h"}, []string{"status"}))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.register())
		})
	}
}

func TestMetricsRegistry_Duplicate(t *testing.T) {
	registry := NewMetricsRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "dup_counter", Help: "h"})

	require.NoError(t, registry.RegisterCounter("svc", "dup", counter))

	err := registry.RegisterCounter("svc", "dup", counter)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	// Same prometheus name under another key conflicts in prometheus itself.
	other := prometheus.NewCounter(prometheus.CounterOpts{Name: "dup_counter", Help: "h"})
	err = registry.RegisterCounter("svc", "other", other)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestMetricsRegistry_Unregister(t *testing.T) {
	registry := NewMetricsRegistry()
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "unreg_gauge", Help: "h"})
	require.NoError(t, registry.RegisterGauge("svc", "g", gauge))

	assert.True(t, registry.Unregister("svc", "g"))
	assert.False(t, registry.Unregister("svc", "g"))
	require.NoError(t, registry.RegisterGauge("svc", "g", gauge))
}

func TestCoreMetrics(t *testing.T) {
	m := NewMetricsRegistry().CoreMetrics()

	m.RecordNetworkSize(3, 2, 1)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.NetworkProcessors))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.NetworkConnections))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NetworkLinks))

	m.RecordEdit("add_processor", nil)
	m.RecordEdit("add_processor", errors.ErrDuplicateIdentifier)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NetworkEdits.WithLabelValues("add_processor", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NetworkEdits.WithLabelValues("add_processor", "error")))

	m.RecordNATSStatus(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NATSConnected))
}

func TestServer_Handler(t *testing.T) {
	registry := NewMetricsRegistry()
	registry.CoreMetrics().RecordNetworkSize(5, 0, 0)

	server := NewServer(0, "", registry)
	server.Handle("/extra", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("extra"))
	}))
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	body := get(t, ts.URL+"/metrics")
	assert.Contains(t, body, "vizflow_network_processors 5")
	assert.Equal(t, "OK", get(t, ts.URL+"/health"))
	assert.Equal(t, "extra", get(t, ts.URL+"/extra"))
	assert.Equal(t, "http://localhost:9090/metrics", server.Address())
}

func TestServer_StopWithoutStart(t *testing.T) {
	server := NewServer(0, "", NewMetricsRegistry())
	assert.NoError(t, server.Stop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	nilRegistry := NewServer(0, "", nil)
	assert.Error(t, nilRegistry.Start(ctx))
}

func get(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}
