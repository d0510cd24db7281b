// Package metrics holds the Prometheus collectors for the cache and the
// remote store clients.
//
// Each Metrics value owns its own registry so an embedding application can
// expose it (or merge it) however it likes. A nil *Metrics is valid and
// records nothing.
package metrics

import (
	"time"

	"github.com/agita-app/agita/internal/common"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "agita"

// Metrics groups the collectors recorded by the client layers.
type Metrics struct {
	Registry *prometheus.Registry

	cacheLookups   *prometheus.CounterVec
	cacheLoads     *prometheus.CounterVec
	cacheEntries   prometheus.Gauge
	storeRequests  *prometheus.CounterVec
	storeDuration  *prometheus.HistogramVec
	objectRequests *prometheus.CounterVec
}

// New creates a Metrics value with a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "lookups_total",
				Help:      "Cache lookups by collection and result (hit, miss, stale).",
			},
			[]string{"collection", "result"},
		),
		cacheLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "loads_total",
				Help:      "Loader invocations by collection and outcome.",
			},
			[]string{"collection", "outcome"},
		),
		cacheEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "entries",
				Help:      "Current number of cache entries.",
			},
		),
		storeRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "requests_total",
				Help:      "Table store requests by operation, collection and outcome.",
			},
			[]string{"operation", "collection", "outcome"},
		),
		storeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "request_duration_seconds",
				Help:      "Duration of table store requests.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
			},
			[]string{"operation", "collection"},
		),
		objectRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "objects",
				Name:      "requests_total",
				Help:      "Object storage requests by operation, bucket and outcome.",
			},
			[]string{"operation", "bucket", "outcome"},
		),
	}

	m.Registry.MustRegister(
		m.cacheLookups,
		m.cacheLoads,
		m.cacheEntries,
		m.storeRequests,
		m.storeDuration,
		m.objectRequests,
	)
	return m
}

// CacheLookup records a cache read; result is "hit", "miss" or "stale".
func (m *Metrics) CacheLookup(collection, result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(collection, result).Inc()
}

// CacheLoad records one loader run.
func (m *Metrics) CacheLoad(collection string, err error) {
	if m == nil {
		return
	}
	m.cacheLoads.WithLabelValues(collection, common.Kind(err)).Inc()
}

// CacheEntries sets the current entry count.
func (m *Metrics) CacheEntries(n int) {
	if m == nil {
		return
	}
	m.cacheEntries.Set(float64(n))
}

// StoreRequest records a finished table store call.
func (m *Metrics) StoreRequest(operation, collection string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.storeRequests.WithLabelValues(operation, collection, common.Kind(err)).Inc()
	m.storeDuration.WithLabelValues(operation, collection).Observe(d.Seconds())
}

// ObjectRequest records a finished object storage call.
func (m *Metrics) ObjectRequest(operation, bucket string, err error) {
	if m == nil {
		return
	}
	m.objectRequests.WithLabelValues(operation, bucket, common.Kind(err)).Inc()
}
