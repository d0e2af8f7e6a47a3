package config

import (
	"fmt"

	"github.com/marmos91/dittowopi/pkg/auth"
	"github.com/marmos91/dittowopi/pkg/cache"
	"github.com/marmos91/dittowopi/pkg/discovery"
	"github.com/marmos91/dittowopi/pkg/gc"
	"github.com/marmos91/dittowopi/pkg/proof"
	"github.com/marmos91/dittowopi/pkg/store/content"
	"github.com/marmos91/dittowopi/pkg/store/metadata"
)

// CreateIssuer creates the access token issuer.
func CreateIssuer(cfg AuthConfig) (*auth.Issuer, error) {
	issuer, err := auth.NewIssuer(auth.IssuerConfig{
		Secret: []byte(cfg.Secret),
		Issuer: cfg.Issuer,
		TTL:    cfg.TokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create token issuer: %w", err)
	}
	return issuer, nil
}

// CreateDiscovery creates the discovery service.
//
// Returns nil without error when no discovery URL is configured.
func CreateDiscovery(cfg DiscoveryConfig, m cache.Metrics) (*discovery.Service, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	svc, err := discovery.NewService(discovery.Config{
		URL:          cfg.URL,
		NetZone:      cfg.NetZone,
		Locale:       cfg.Locale,
		ManifestTTL:  cfg.ManifestTTL,
		ProofKeyTTL:  cfg.ProofKeyTTL,
		FetchTimeout: cfg.FetchTimeout,
		MaxRetries:   cfg.MaxRetries,
		Metrics:      m,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery service: %w", err)
	}
	return svc, nil
}

// CreateProofValidator returns a validator backed by the discovery proof
// keys, or nil when proof validation is disabled.
func CreateProofValidator(cfg ProofConfig, keys *discovery.Service) (*proof.Validator, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if keys == nil {
		return nil, fmt.Errorf("proof validation requires a discovery service")
	}
	return proof.NewValidator(keys), nil
}

// CreateCollector creates the orphaned content collector. dryRun forces a
// dry run on top of the configured setting.
func CreateCollector(cfg GCConfig, files metadata.MetadataStore, blobs content.ContentStore, dryRun bool) (*gc.Collector, error) {
	c, err := gc.NewCollector(files, blobs, gc.Config{
		Interval:  cfg.Interval,
		BatchSize: cfg.BatchSize,
		DryRun:    cfg.DryRun || dryRun,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create garbage collector: %w", err)
	}
	return c, nil
}
