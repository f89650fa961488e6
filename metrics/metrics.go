// Package metrics exposes harness and cache activity as Prometheus
// collectors on a private registry.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goforj/cacheprobe/cache"
	"github.com/goforj/cacheprobe/report"
)

const namespace = "cacheprobe"

// Metrics owns the collectors for one process.
type Metrics struct {
	registry *prometheus.Registry

	patterns        *prometheus.CounterVec
	patternDuration *prometheus.HistogramVec
	cacheOps        *prometheus.CounterVec
	cacheLatency    *prometheus.HistogramVec
	lastSucceeded   prometheus.Gauge
	lastTotal       prometheus.Gauge
	lastRun         prometheus.Gauge
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		patterns: factory.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "patterns_total", Help: "Patterns executed, partitioned by status and failure kind."},
			[]string{"pattern", "status", "kind"},
		),
		patternDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{Namespace: namespace, Name: "pattern_duration_seconds", Help: "Wall time of one pattern from build to close.", Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 10, 30, 60}},
			[]string{"pattern"},
		),
		cacheOps: factory.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: "cache", Name: "operations_total", Help: "Cache operations issued by probes."},
			[]string{"driver", "operation", "result"},
		),
		cacheLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{Namespace: namespace, Subsystem: "cache", Name: "operation_latency_seconds", Help: "Latency of cache operations in seconds.", Buckets: prometheus.DefBuckets},
			[]string{"driver", "operation"},
		),
		lastSucceeded: factory.NewGauge(
			prometheus.GaugeOpts{Namespace: namespace, Name: "last_run_succeeded_patterns", Help: "Patterns that passed in the last completed run."},
		),
		lastTotal: factory.NewGauge(
			prometheus.GaugeOpts{Namespace: namespace, Name: "last_run_patterns", Help: "Patterns executed in the last completed run."},
		),
		lastRun: factory.NewGauge(
			prometheus.GaugeOpts{Namespace: namespace, Name: "last_run_timestamp_seconds", Help: "Unix time the last run finished."},
		),
	}
}

// Registry returns the backing registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObservePattern counts one recorded pattern.
func (m *Metrics) ObservePattern(res report.Result, d time.Duration) {
	kind := ""
	if res.Failure != nil {
		kind = string(res.Failure.Kind)
	}
	m.patterns.WithLabelValues(res.Pattern, string(res.Status), kind).Inc()
	if d < 0 {
		d = 0
	}
	m.patternDuration.WithLabelValues(res.Pattern).Observe(d.Seconds())
}

// ObserveRun sets the last-run gauges.
func (m *Metrics) ObserveRun(t report.Tally, finished time.Time) {
	m.lastSucceeded.Set(float64(t.Succeeded))
	m.lastTotal.Set(float64(t.Total))
	m.lastRun.Set(float64(finished.Unix()))
}

// CacheObserver feeds cache operations into the cache collectors.
func (m *Metrics) CacheObserver() cache.Observer {
	return cache.ObserverFunc(func(_ context.Context, op, _ string, hit bool, err error, dur time.Duration, driver cache.Driver) {
		result := "ok"
		switch {
		case err != nil:
			result = "error"
		case isRead(op) && !hit:
			result = "miss"
		case isRead(op):
			result = "hit"
		}
		m.cacheOps.WithLabelValues(string(driver), op, result).Inc()
		m.cacheLatency.WithLabelValues(string(driver), op).Observe(dur.Seconds())
	})
}

func isRead(op string) bool { return op == "get" || op == "flexible" }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// WriteTextfile atomically writes the registry for the node_exporter
// textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
