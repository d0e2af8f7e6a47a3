package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/dittowopi/pkg/metrics"
	"github.com/marmos91/dittowopi/pkg/store/metadata"
)

// metadataMetrics is the Prometheus implementation of metadata.Metrics.
type metadataMetrics struct {
	storeType         string
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
}

// NewMetadataMetrics creates a metadata.Metrics on the global registry.
//
// Parameters:
//   - storeType: Type of metadata store (e.g., "memory", "badger", "postgres")
//     Used as a label to distinguish metrics from different store implementations.
//
// Returns nil if metrics are not enabled, which leaves stores uninstrumented.
func NewMetadataMetrics(storeType string) metadata.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}
	return NewMetadataMetricsWith(metrics.GetRegistry(), storeType)
}

// NewMetadataMetricsWith creates a metadata.Metrics registered on reg.
func NewMetadataMetricsWith(reg prometheus.Registerer, storeType string) metadata.Metrics {
	factory := promauto.With(reg)

	return &metadataMetrics{
		storeType: storeType,
		operationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittowopi_metadata_operations_total",
				Help: "Total number of metadata operations by store type, operation, and outcome",
			},
			[]string{"store_type", "operation", "outcome"},
		),
		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dittowopi_metadata_operation_duration_seconds",
				Help: "Duration of metadata operations in seconds",
				Buckets: []float64{
					0.0001, // 100µs
					0.0005, // 500µs
					0.001,  // 1ms
					0.005,  // 5ms
					0.01,   // 10ms
					0.025,  // 25ms
					0.05,   // 50ms
					0.1,    // 100ms
					0.25,   // 250ms
					0.5,    // 500ms
					1.0,    // 1s
				},
			},
			[]string{"store_type", "operation"},
		),
	}
}

// ObserveOperation implements metadata.Metrics.
func (m *metadataMetrics) ObserveOperation(operation string, duration time.Duration, outcome string) {
	m.operationsTotal.WithLabelValues(m.storeType, operation, outcome).Inc()
	m.operationDuration.WithLabelValues(m.storeType, operation).Observe(duration.Seconds())
}
