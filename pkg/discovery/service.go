package discovery

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/marmos91/dittowopi/internal/clock"
	"github.com/marmos91/dittowopi/pkg/cache"
	"github.com/marmos91/dittowopi/pkg/proof"
)

const (
	// DefaultManifestTTL is how long actions are served before a refresh.
	DefaultManifestTTL = time.Hour

	// DefaultProofKeyTTL is how long proof keys are served before a refresh.
	DefaultProofKeyTTL = 20 * time.Minute
)

// Config configures a Service.
type Config struct {
	URL     string
	NetZone string
	Locale  string

	ManifestTTL  time.Duration
	ProofKeyTTL  time.Duration
	FetchTimeout time.Duration
	MaxRetries   int

	// HTTPClient is optional.
	HTTPClient *http.Client

	// Clock is optional.
	Clock clock.Clock

	// Metrics is optional.
	Metrics cache.Metrics
}

// Service resolves actions and proof keys from a cached discovery document.
//
// Actions and proof keys are cached independently with their own TTLs;
// both are served stale while a refresh runs.
type Service struct {
	fetcher  *Fetcher
	netZone  string
	locale   string
	manifest *cache.Value[*Manifest]
	keys     *cache.Value[proof.KeyPair]
}

// NewService creates a Service. Nothing is fetched until first use.
func NewService(cfg Config) (*Service, error) {
	fetcher, err := NewFetcher(FetcherConfig{
		URL:        cfg.URL,
		Client:     cfg.HTTPClient,
		Timeout:    cfg.FetchTimeout,
		MaxRetries: cfg.MaxRetries,
	})
	if err != nil {
		return nil, err
	}

	manifestTTL := cfg.ManifestTTL
	if manifestTTL <= 0 {
		manifestTTL = DefaultManifestTTL
	}
	keyTTL := cfg.ProofKeyTTL
	if keyTTL <= 0 {
		keyTTL = DefaultProofKeyTTL
	}

	// The cache fetch timeout covers all retries of one refresh.
	fetchBudget := cfg.FetchTimeout
	if fetchBudget <= 0 {
		fetchBudget = 10 * time.Second
	}
	fetchBudget *= time.Duration(max(cfg.MaxRetries, 2) + 1)

	s := &Service{
		fetcher: fetcher,
		netZone: cfg.NetZone,
		locale:  cfg.Locale,
	}

	s.manifest, err = cache.New(cache.Config{
		Name:         "discovery",
		TTL:          manifestTTL,
		FetchTimeout: fetchBudget,
		Clock:        cfg.Clock,
		Metrics:      cfg.Metrics,
	}, s.loadManifest)
	if err != nil {
		return nil, err
	}

	s.keys, err = cache.New(cache.Config{
		Name:         "proof_keys",
		TTL:          keyTTL,
		FetchTimeout: fetchBudget,
		Clock:        cfg.Clock,
		Metrics:      cfg.Metrics,
	}, s.loadProofKeys)
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Service) loadManifest(ctx context.Context) (*Manifest, error) {
	data, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return Parse(data, s.netZone)
}

func (s *Service) loadProofKeys(ctx context.Context) (proof.KeyPair, error) {
	m, err := s.loadManifest(ctx)
	if err != nil {
		return proof.KeyPair{}, err
	}
	return m.ProofKey.KeyPair()
}

// Manifest returns the cached manifest.
func (s *Service) Manifest(ctx context.Context) (*Manifest, error) {
	return s.manifest.Get(ctx)
}

// Actions returns the actions applicable to fileName.
func (s *Service) Actions(ctx context.Context, fileName string) ([]Action, error) {
	m, err := s.manifest.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load discovery: %w", err)
	}
	return m.ActionsFor(fileName), nil
}

// ActionURL builds the URL of action for fileID, using the configured locale.
func (s *Service) ActionURL(action Action, fileID, authority string) string {
	return ActionURL(action, URLParams{
		FileID:    fileID,
		Authority: authority,
		Locale:    s.locale,
	})
}

// ProofKeys implements proof.KeySource.
func (s *Service) ProofKeys(ctx context.Context) (proof.KeyPair, error) {
	return s.keys.Get(ctx)
}

// Warm loads both caches. It is used at startup so the first WOPI request
// does not pay for the fetch; failures are returned but not fatal.
func (s *Service) Warm(ctx context.Context) error {
	if _, err := s.manifest.Refresh(ctx); err != nil {
		return err
	}
	_, err := s.keys.Refresh(ctx)
	return err
}
