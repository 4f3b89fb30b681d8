// Package metrics instruments query resolution with Prometheus collectors.
package metrics

import (
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "repeat"

// Metrics holds all application metrics. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Query metrics
	Queries       *prometheus.CounterVec   // labels: op
	QueryErrors   *prometheus.CounterVec   // labels: op, code
	QueryDuration *prometheus.HistogramVec // labels: op

	// Fragment metrics
	FragmentsLoaded *prometheus.CounterVec // labels: measure
	FragmentRows    *prometheus.CounterVec // labels: measure
	MissingFiles    *prometheus.CounterVec // labels: measure
	LoadDuration    prometheus.Histogram

	// Cache metrics
	CacheHits     *prometheus.CounterVec // labels: backend
	CacheMisses   *prometheus.CounterVec // labels: backend
	Invalidations prometheus.Counter
}

// New creates metrics registered on a private registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Queries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Total query operations by operation",
		}, []string{"op"}),
		QueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_errors_total",
			Help:      "Total failed query operations by operation and error code",
		}, []string{"op", "code"}),
		QueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Duration of query operations",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"op"}),

		FragmentsLoaded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fragments_loaded_total",
			Help:      "Total measurement files read from the store",
		}, []string{"measure"}),
		FragmentRows: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fragment_rows_total",
			Help:      "Total rows read from measurement files",
		}, []string{"measure"}),
		MissingFiles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "missing_files_total",
			Help:      "Total expected measurement files that were absent",
		}, []string{"measure"}),
		LoadDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fragment_load_duration_seconds",
			Help:      "Duration of reading one measurement file",
			Buckets:   []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),

		CacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total fragment cache hits by backend",
		}, []string{"backend"}),
		CacheMisses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total fragment cache misses by backend",
		}, []string{"backend"}),
		Invalidations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_invalidations_total",
			Help:      "Total cache purges caused by store changes",
		}),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordQuery records one finished query operation. code is empty on success.
func (m *Metrics) RecordQuery(op string, d time.Duration, code string) {
	if m == nil {
		return
	}
	m.Queries.WithLabelValues(op).Inc()
	m.QueryDuration.WithLabelValues(op).Observe(d.Seconds())
	if code != "" {
		m.QueryErrors.WithLabelValues(op, code).Inc()
	}
}

// RecordFragment records a measurement file read.
func (m *Metrics) RecordFragment(measure string, rows int, d time.Duration) {
	if m == nil {
		return
	}
	m.FragmentsLoaded.WithLabelValues(measure).Inc()
	m.FragmentRows.WithLabelValues(measure).Add(float64(rows))
	m.LoadDuration.Observe(d.Seconds())
}

// RecordMissingFile records an absent measurement file.
func (m *Metrics) RecordMissingFile(measure string) {
	if m == nil {
		return
	}
	m.MissingFiles.WithLabelValues(measure).Inc()
}

// RecordCacheHit records a fragment cache hit.
func (m *Metrics) RecordCacheHit(backend string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(backend).Inc()
}

// RecordCacheMiss records a fragment cache miss.
func (m *Metrics) RecordCacheMiss(backend string) {
	if m == nil {
		return
	}
	m.CacheMisses.WithLabelValues(backend).Inc()
}

// RecordInvalidation records a cache purge after a store change.
func (m *Metrics) RecordInvalidation() {
	if m == nil {
		return
	}
	m.Invalidations.Inc()
}

// WriteText writes all metrics in Prometheus text exposition format.
// See: https://prometheus.io/docs/instrumenting/exposition_formats/
func (m *Metrics) WriteText(w io.Writer) error {
	if m == nil {
		return nil
	}
	families, err := m.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
