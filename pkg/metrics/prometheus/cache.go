package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/dittowopi/pkg/cache"
	"github.com/marmos91/dittowopi/pkg/metrics"
)

// cacheMetrics is the Prometheus implementation of cache.Metrics.
//
// Cached values are few and named (discovery, proof-keys), so the name is a
// safe label.
type cacheMetrics struct {
	lookups         *prometheus.CounterVec
	refreshes       *prometheus.CounterVec
	refreshDuration *prometheus.HistogramVec
}

// NewCacheMetrics creates a cache.Metrics on the global registry.
//
// Returns nil if metrics are not enabled, which makes caches use their
// built-in no-op implementation.
func NewCacheMetrics() cache.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}
	return NewCacheMetricsWith(metrics.GetRegistry())
}

// NewCacheMetricsWith creates a cache.Metrics registered on reg.
func NewCacheMetricsWith(reg prometheus.Registerer) cache.Metrics {
	factory := promauto.With(reg)

	return &cacheMetrics{
		lookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittowopi_cache_lookups_total",
				Help: "Total number of cache lookups by cache name and result (hit, stale, miss)",
			},
			[]string{"cache", "result"},
		),
		refreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittowopi_cache_refreshes_total",
				Help: "Total number of cache refreshes by cache name and status",
			},
			[]string{"cache", "status"},
		),
		refreshDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dittowopi_cache_refresh_duration_seconds",
				Help: "Duration of cache refreshes in seconds",
				Buckets: []float64{
					0.01, // 10ms
					0.05, // 50ms
					0.1,  // 100ms
					0.5,  // 500ms
					1,    // 1s
					5,    // 5s
					10,   // 10s
					30,   // 30s
				},
			},
			[]string{"cache"},
		),
	}
}

// RecordLookup implements cache.Metrics.
func (m *cacheMetrics) RecordLookup(name, result string) {
	m.lookups.WithLabelValues(name, result).Inc()
}

// RecordRefresh implements cache.Metrics.
func (m *cacheMetrics) RecordRefresh(name string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.refreshes.WithLabelValues(name, status).Inc()
	m.refreshDuration.WithLabelValues(name).Observe(duration.Seconds())
}
