// Package metrics provides Prometheus metrics collection for DittoWOPI
// components.
//
// All metrics are optional - if not initialized, components use no-op
// implementations that have zero overhead. This allows DittoWOPI to run with
// or without metrics collection enabled.
//
// Usage:
//
//	// Initialize global registry (typically in the serve command)
//	metrics.InitRegistry()
//
//	// Create metrics instances for components
//	wopiMetrics := prometheus.NewWOPIMetrics()
//	s3Metrics := prometheus.NewS3Metrics()
//
//	// Or use nil for no-op behavior
//	handler, _ := wopi.NewHandler(wopi.HandlerConfig{Engine: e})
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// registry is the global Prometheus registry for all DittoWOPI metrics
	// Protected by registryOnce for write-once, read-many pattern
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry with the Go
// runtime and process collectors.
//
// This must be called before creating any metrics instances. It's safe to call
// multiple times - subsequent calls are ignored.
//
// If not called, GetRegistry() will return nil and all metrics constructors
// will return no-op implementations.
func InitRegistry() {
	registryOnce.Do(func() {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		registry = reg
	})
}

// GetRegistry returns the global Prometheus registry.
//
// Returns nil if InitRegistry() has not been called, indicating metrics
// are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled returns true if metrics collection is enabled.
func IsEnabled() bool {
	return GetRegistry() != nil
}
