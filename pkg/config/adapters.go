package config

import (
	"fmt"
	"net/http"

	"github.com/marmos91/dittowopi/pkg/adapter"
	"github.com/marmos91/dittowopi/pkg/adapter/wopi"
	"github.com/marmos91/dittowopi/pkg/metrics"
)

// CreateAdapters creates all enabled adapters from the configuration.
//
// Parameters:
//   - cfg: The complete DittoWOPI configuration
//   - handler: The WOPI protocol handler mounted by the WOPI adapter
//   - health: Optional backend health check for /healthz
//   - metricsServer: Optional metrics endpoint, run as its own adapter
//
// Returns:
//   - []adapter.Adapter: List of enabled adapters ready to be added to the server
//   - error: Any error during adapter creation
func CreateAdapters(
	cfg *Config,
	handler http.Handler,
	health wopi.HealthChecker,
	metricsServer *metrics.Server,
) ([]adapter.Adapter, error) {
	var adapters []adapter.Adapter

	if cfg.Adapters.WOPI.Enabled {
		wopiAdapter, err := wopi.New(cfg.Adapters.WOPI, wopi.Options{
			Handler:               handler,
			Health:                health,
			TrustForwardedHeaders: cfg.Host.TrustForwardedHeaders,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create WOPI adapter: %w", err)
		}
		adapters = append(adapters, wopiAdapter)
	}

	if len(adapters) == 0 {
		return nil, fmt.Errorf("no adapters enabled in configuration")
	}

	// The metrics endpoint is started last so it stops first.
	if metricsServer != nil {
		adapters = append(adapters, metricsServer)
	}

	return adapters, nil
}
