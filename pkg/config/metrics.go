package config

import (
	"github.com/marmos91/dittowopi/pkg/cache"
	"github.com/marmos91/dittowopi/pkg/metrics"
	promMetrics "github.com/marmos91/dittowopi/pkg/metrics/prometheus"
	"github.com/marmos91/dittowopi/pkg/store/content/s3"
	"github.com/marmos91/dittowopi/pkg/store/metadata"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// WOPI is the request collector for the WOPI handler and engine
	// (never nil, uses noop if disabled)
	WOPI metrics.WOPIMetrics

	// Cache, S3 and Metadata are nil when metrics are disabled; their
	// consumers fall back to no-ops.
	Cache    cache.Metrics
	S3       s3.S3Metrics
	Metadata metadata.Metrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled in the configuration:
//   - Initializes the global Prometheus registry
//   - Creates the metrics HTTP server
//   - Creates Prometheus-backed metrics instances for all components
//
// If metrics are disabled:
//   - Returns nil server
//   - Returns no-op or nil metrics implementations (zero overhead)
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{
			WOPI: metrics.NewNoopWOPIMetrics(),
		}
	}

	// Initialize global Prometheus registry
	metrics.InitRegistry()

	server := metrics.NewServer(metrics.ServerConfig{
		Port: cfg.Metrics.Port,
	})

	return &MetricsResult{
		Server:   server,
		WOPI:     promMetrics.NewWOPIMetrics(),
		Cache:    promMetrics.NewCacheMetrics(),
		S3:       promMetrics.NewS3Metrics(),
		Metadata: promMetrics.NewMetadataMetrics(cfg.Metadata.Type),
	}
}
