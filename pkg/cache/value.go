// Package cache provides process-wide, TTL-bounded values that are rebuilt
// from a loader function.
//
// A Value serves its cached copy while it is fresh. Once the TTL elapses the
// stale copy keeps being served while exactly one background refresh runs;
// only a cold Value (never loaded) makes callers wait, and concurrent cold
// callers share a single load. A failed refresh keeps the previous copy.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/marmos91/dittowopi/internal/clock"
	"github.com/marmos91/dittowopi/internal/logger"
	"golang.org/x/sync/singleflight"
)

// ErrNoLoader is returned by New when no loader is supplied.
var ErrNoLoader = errors.New("cache: loader is required")

const (
	defaultFetchTimeout  = 10 * time.Second
	defaultRetryInterval = 30 * time.Second
)

// Loader fetches a fresh copy of the cached value. The context carries the
// fetch timeout and is independent of any caller's request context.
type Loader[T any] func(ctx context.Context) (T, error)

// Config configures a Value.
type Config struct {
	// Name identifies the value in logs and metrics (e.g. "discovery").
	Name string

	// TTL is how long a loaded copy is considered fresh.
	TTL time.Duration

	// FetchTimeout bounds a single load. Defaults to 10s.
	FetchTimeout time.Duration

	// RetryInterval is the minimum delay between background refresh
	// attempts after a failed one. Defaults to 30s, capped at TTL.
	RetryInterval time.Duration

	// Clock drives freshness checks. Defaults to the wall clock.
	Clock clock.Clock

	// Metrics is optional.
	Metrics Metrics
}

// Value is a lazily loaded, TTL-bounded cached value. Safe for concurrent use.
type Value[T any] struct {
	name          string
	ttl           time.Duration
	fetchTimeout  time.Duration
	retryInterval time.Duration
	clock         clock.Clock
	metrics       Metrics
	load          Loader[T]

	group singleflight.Group

	mu         sync.RWMutex
	value      T
	loaded     bool
	fetchedAt  time.Time
	failedAt   time.Time
	generation uint64
}

// New creates a Value. Nothing is fetched until the first Get.
func New[T any](cfg Config, load Loader[T]) (*Value[T], error) {
	if load == nil {
		return nil, ErrNoLoader
	}

	v := &Value[T]{
		name:          cfg.Name,
		ttl:           cfg.TTL,
		fetchTimeout:  cfg.FetchTimeout,
		retryInterval: cfg.RetryInterval,
		clock:         cfg.Clock,
		metrics:       cfg.Metrics,
		load:          load,
	}

	if v.fetchTimeout <= 0 {
		v.fetchTimeout = defaultFetchTimeout
	}
	if v.retryInterval <= 0 {
		v.retryInterval = defaultRetryInterval
	}
	if v.ttl > 0 && v.retryInterval > v.ttl {
		v.retryInterval = v.ttl
	}
	if v.clock == nil {
		v.clock = clock.Real()
	}
	if v.metrics == nil {
		v.metrics = noopMetrics{}
	}

	return v, nil
}

// Get returns the cached value, loading it if the cache is cold.
//
// The returned error is non-nil only when no copy has ever been loaded and
// the load failed, or when ctx ends while waiting for the first load.
func (v *Value[T]) Get(ctx context.Context) (T, error) {
	v.mu.RLock()
	val, loaded, fetchedAt, failedAt := v.value, v.loaded, v.fetchedAt, v.failedAt
	v.mu.RUnlock()

	if loaded {
		now := v.clock.Now()
		if v.ttl <= 0 || now.Sub(fetchedAt) < v.ttl {
			v.metrics.RecordLookup(v.name, ResultHit)
			return val, nil
		}

		v.metrics.RecordLookup(v.name, ResultStale)
		if failedAt.IsZero() || now.Sub(failedAt) >= v.retryInterval {
			v.group.DoChan(v.name, v.refresh)
		}
		return val, nil
	}

	v.metrics.RecordLookup(v.name, ResultMiss)
	return v.wait(ctx)
}

// Refresh forces a synchronous reload and returns the new value. On failure
// the previous copy (if any) is retained and the error is returned.
func (v *Value[T]) Refresh(ctx context.Context) (T, error) {
	return v.wait(ctx)
}

func (v *Value[T]) wait(ctx context.Context) (T, error) {
	var zero T

	ch := v.group.DoChan(v.name, v.refresh)
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// refresh runs under singleflight, so at most one load is in flight.
func (v *Value[T]) refresh() (any, error) {
	ctx, cancel := context.WithTimeout(context.Background(), v.fetchTimeout)
	defer cancel()

	start := time.Now()
	val, err := v.load(ctx)
	v.metrics.RecordRefresh(v.name, time.Since(start), err)

	if err != nil {
		v.mu.Lock()
		v.failedAt = v.clock.Now()
		stale := v.loaded
		v.mu.Unlock()

		if stale {
			logger.Warn("cache %s: refresh failed, serving previous value: %v", v.name, err)
		} else {
			logger.Error("cache %s: load failed: %v", v.name, err)
		}
		return nil, err
	}

	v.mu.Lock()
	v.value = val
	v.loaded = true
	v.fetchedAt = v.clock.Now()
	v.failedAt = time.Time{}
	v.generation++
	v.mu.Unlock()

	logger.Debug("cache %s: refreshed in %v", v.name, time.Since(start))
	return val, nil
}

// Invalidate marks the cached copy as expired. The next Get serves it stale
// and triggers a refresh.
func (v *Value[T]) Invalidate() {
	v.mu.Lock()
	v.fetchedAt = time.Time{}
	v.failedAt = time.Time{}
	v.mu.Unlock()
}

// Generation increments every time a new copy is stored. Callers that derive
// data from the value use it to detect refreshes.
func (v *Value[T]) Generation() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.generation
}

// Peek returns the cached copy without triggering a load.
func (v *Value[T]) Peek() (T, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value, v.loaded
}
