package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/marmos91/dittowopi/internal/logger"
)

const maxDocumentSize = 8 << 20

// FetcherConfig configures a Fetcher.
type FetcherConfig struct {
	// URL of the discovery document, e.g. https://onenote.officeapps.live.com/hosting/discovery.
	URL string

	// Client is optional; defaults to an http.Client with Timeout.
	Client *http.Client

	// Timeout bounds each HTTP attempt. Defaults to 10s.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt. Zero means
	// the default of 2; negative disables retries.
	MaxRetries int

	// InitialInterval is the first retry delay. Defaults to 200ms.
	InitialInterval time.Duration
}

// Fetcher downloads the discovery document, retrying transient failures
// with exponential backoff.
type Fetcher struct {
	url             string
	client          *http.Client
	maxRetries      uint64
	initialInterval time.Duration
}

// NewFetcher creates a Fetcher.
func NewFetcher(cfg FetcherConfig) (*Fetcher, error) {
	if cfg.URL == "" {
		return nil, errors.New("discovery: URL is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	} else if retries == 0 {
		retries = 2
	}
	interval := cfg.InitialInterval
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}

	return &Fetcher{
		url:             cfg.URL,
		client:          client,
		maxRetries:      uint64(retries),
		initialInterval: interval,
	}, nil
}

// Fetch returns the raw document. 4xx responses are not retried.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	var body []byte

	operation := func() error {
		data, err := f.fetchOnce(ctx)
		if err != nil {
			return err
		}
		body = data
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = f.initialInterval
	policy.MaxElapsedTime = 0

	notify := func(err error, wait time.Duration) {
		logger.Warn("discovery: fetch %s failed, retrying in %v: %v", f.url, wait, err)
	}

	err := backoff.RetryNotify(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, f.maxRetries), ctx),
		notify)
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build discovery request: %w", err))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch discovery: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("fetch discovery: unexpected status %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("read discovery body: %w", err)
	}
	return data, nil
}
