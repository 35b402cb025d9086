// Package metrics instruments scans, batch processing, and update runs with
// Prometheus collectors. Every method is safe on a nil *Metrics, so callers
// never branch on whether instrumentation is configured.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the collectors on a private registry, keeping tests and
// embedding applications from colliding on the default one.
type Metrics struct {
	registry *prometheus.Registry

	scansTotal       *prometheus.CounterVec
	scanItemsTotal   *prometheus.CounterVec
	batchDuration    prometheus.Histogram
	activeWorkers    prometheus.Gauge
	cacheHitsTotal   prometheus.Counter
	cacheMissesTotal prometheus.Counter
	checkpointsTotal *prometheus.CounterVec
	updatesTotal     *prometheus.CounterVec
}

// New builds the collector set on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		scansTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "modelscout",
				Name:      "scans_total",
				Help:      "Completed provider scans by outcome",
			},
			[]string{"provider", "status"},
		),
		scanItemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "modelscout",
				Name:      "scan_items_total",
				Help:      "Model records collected per provider",
			},
			[]string{"provider"},
		),
		batchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "modelscout",
				Name:      "batch_duration_seconds",
				Help:      "Duration of one parallel work batch",
				Buckets:   prometheus.DefBuckets,
			},
		),
		activeWorkers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "modelscout",
				Name:      "active_workers",
				Help:      "Workers currently processing a batch",
			},
		),
		cacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "modelscout",
				Name:      "embedding_cache_hits_total",
				Help:      "Embedding requests served from cache",
			},
		),
		cacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "modelscout",
				Name:      "embedding_cache_misses_total",
				Help:      "Embedding requests that went to the backend",
			},
		),
		checkpointsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "modelscout",
				Name:      "checkpoints_total",
				Help:      "Checkpoint writes by outcome",
			},
			[]string{"status"},
		),
		updatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "modelscout",
				Name:      "updates_total",
				Help:      "Incremental update runs by outcome",
			},
			[]string{"provider", "status"},
		),
	}

	m.registry.MustRegister(
		m.scansTotal,
		m.scanItemsTotal,
		m.batchDuration,
		m.activeWorkers,
		m.cacheHitsTotal,
		m.cacheMissesTotal,
		m.checkpointsTotal,
		m.updatesTotal,
	)
	return m
}

// Registry exposes the underlying registry for embedding applications.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler serving the exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ScanCompleted records one finished provider scan.
func (m *Metrics) ScanCompleted(provider, status string) {
	if m == nil {
		return
	}
	m.scansTotal.WithLabelValues(provider, status).Inc()
}

// AddScanItems counts records collected from a provider.
func (m *Metrics) AddScanItems(provider string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.scanItemsTotal.WithLabelValues(provider).Add(float64(n))
}

// ObserveBatch records the duration of one work batch.
func (m *Metrics) ObserveBatch(d time.Duration) {
	if m == nil {
		return
	}
	m.batchDuration.Observe(d.Seconds())
}

// SetActiveWorkers tracks the live worker count of the batch pool.
func (m *Metrics) SetActiveWorkers(n int) {
	if m == nil {
		return
	}
	m.activeWorkers.Set(float64(n))
}

// CacheLookup records whether an embedding lookup hit the cache.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHitsTotal.Inc()
		return
	}
	m.cacheMissesTotal.Inc()
}

// CheckpointWritten records one checkpoint write.
func (m *Metrics) CheckpointWritten(status string) {
	if m == nil {
		return
	}
	m.checkpointsTotal.WithLabelValues(status).Inc()
}

// UpdateCompleted records one incremental update run.
func (m *Metrics) UpdateCompleted(provider, status string) {
	if m == nil {
		return
	}
	m.updatesTotal.WithLabelValues(provider, status).Inc()
}
