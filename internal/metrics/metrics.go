// Package metrics exposes pipeline counters in the Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result label values.
const (
	ResultOK      = "ok"
	ResultFailed  = "failed"
	ResultSkipped = "skipped"
)

// Metrics groups the collectors of one pipeline instance. Each instance owns
// its registry so tests and multiple builders do not collide.
type Metrics struct {
	registry *prometheus.Registry

	files         *prometheus.CounterVec
	bytesIn       prometheus.Counter
	bytesOut      prometheus.Counter
	buildDuration prometheus.Histogram
	builds        *prometheus.CounterVec
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assetforge",
			Name:      "files_total",
			Help:      "Processed asset files by kind and result.",
		}, []string{"kind", "result"}),
		bytesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "assetforge",
			Name:      "bytes_in_total",
			Help:      "Bytes read from source assets.",
		}),
		bytesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "assetforge",
			Name:      "bytes_out_total",
			Help:      "Bytes written to the output tree.",
		}),
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "assetforge",
			Name:      "build_duration_seconds",
			Help:      "Wall time of complete builds.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assetforge",
			Name:      "builds_total",
			Help:      "Completed builds by result.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(m.files, m.bytesIn, m.bytesOut, m.buildDuration, m.builds)
	return m
}

// File records one asset outcome.
func (m *Metrics) File(kind, result string, in, out int64) {
	if m == nil {
		return
	}
	m.files.WithLabelValues(kind, result).Inc()
	m.bytesIn.Add(float64(in))
	m.bytesOut.Add(float64(out))
}

// Build records a finished build. failed is the number of failed files.
func (m *Metrics) Build(d time.Duration, failed int) {
	if m == nil {
		return
	}
	m.buildDuration.Observe(d.Seconds())
	result := ResultOK
	if failed > 0 {
		result = ResultFailed
	}
	m.builds.WithLabelValues(result).Inc()
}

// Registry returns the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
