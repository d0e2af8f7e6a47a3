// Package prometheus holds the Prometheus-backed implementations of the
// metrics interfaces declared next to each component.
//
// Every constructor has two forms: NewX() registers on the global registry
// (returning a no-op when metrics are disabled) and NewXWith(reg) registers
// on an explicit Registerer.
package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/dittowopi/pkg/metrics"
)

// wopiMetrics is the Prometheus implementation of metrics.WOPIMetrics.
type wopiMetrics struct {
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	requestsInFlight  *prometheus.GaugeVec
	bytesTransferred  *prometheus.CounterVec
	proofFailures     prometheus.Counter
	tokenFailures     prometheus.Counter
	lockConflicts     *prometheus.CounterVec
	revisionConflicts *prometheus.CounterVec
}

// NewWOPIMetrics creates a WOPIMetrics on the global registry.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry not called).
func NewWOPIMetrics() metrics.WOPIMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopWOPIMetrics()
	}
	return NewWOPIMetricsWith(metrics.GetRegistry())
}

// NewWOPIMetricsWith creates a WOPIMetrics registered on reg.
func NewWOPIMetricsWith(reg prometheus.Registerer) metrics.WOPIMetrics {
	factory := promauto.With(reg)

	return &wopiMetrics{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittowopi_requests_total",
				Help: "Total number of WOPI requests by operation and HTTP status",
			},
			[]string{"operation", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dittowopi_request_duration_seconds",
				Help: "Duration of WOPI requests in seconds",
				Buckets: []float64{
					0.001, // 1ms
					0.01,  // 10ms
					0.05,  // 50ms
					0.1,   // 100ms
					0.5,   // 500ms
					1,     // 1s
					5,     // 5s
					30,    // 30s
				},
			},
			[]string{"operation"},
		),
		requestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dittowopi_requests_in_flight",
				Help: "Current number of WOPI requests being processed",
			},
			[]string{"operation"},
		),
		bytesTransferred: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittowopi_bytes_transferred_total",
				Help: "Total document bytes read or written via WOPI",
			},
			[]string{"direction"},
		),
		proofFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "dittowopi_proof_failures_total",
				Help: "Total number of requests rejected by proof validation",
			},
		),
		tokenFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "dittowopi_token_failures_total",
				Help: "Total number of requests rejected for their access token",
			},
		),
		lockConflicts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittowopi_lock_conflicts_total",
				Help: "Total number of 409 lock conflicts by operation",
			},
			[]string{"operation"},
		),
		revisionConflicts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittowopi_revision_conflicts_total",
				Help: "Total number of lost conditional metadata updates",
			},
			[]string{"operation", "exhausted"},
		),
	}
}

func (m *wopiMetrics) RecordRequest(operation string, status int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(operation, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *wopiMetrics) RecordRequestStart(operation string) {
	m.requestsInFlight.WithLabelValues(operation).Inc()
}

func (m *wopiMetrics) RecordRequestEnd(operation string) {
	m.requestsInFlight.WithLabelValues(operation).Dec()
}

func (m *wopiMetrics) RecordBytesTransferred(direction string, bytes int64) {
	m.bytesTransferred.WithLabelValues(direction).Add(float64(bytes))
}

func (m *wopiMetrics) RecordProofFailure() {
	m.proofFailures.Inc()
}

func (m *wopiMetrics) RecordTokenFailure() {
	m.tokenFailures.Inc()
}

func (m *wopiMetrics) RecordLockConflict(operation string) {
	m.lockConflicts.WithLabelValues(operation).Inc()
}

func (m *wopiMetrics) RecordRevisionConflict(operation string, exhausted bool) {
	m.revisionConflicts.WithLabelValues(operation, strconv.FormatBool(exhausted)).Inc()
}
