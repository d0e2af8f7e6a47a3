// Package ratelimiter throttles WOPI callers with token buckets.
//
// A Limiter keeps one bucket per key (typically the client address) in a
// bounded LRU, so a flood of distinct callers cannot grow memory without
// bound: the least recently seen caller's bucket is dropped and starts full
// again if it returns.
package ratelimiter

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// DefaultMaxKeys bounds the number of tracked callers.
const DefaultMaxKeys = 10_000

// Config configures a Limiter.
type Config struct {
	// RequestsPerSecond is the sustained rate per key. Zero disables
	// limiting.
	RequestsPerSecond float64

	// Burst is the bucket capacity per key. Defaults to twice the rate,
	// rounded up, with a minimum of 1.
	Burst int

	// MaxKeys defaults to DefaultMaxKeys.
	MaxKeys int
}

// Limiter hands out per-key token buckets.
//
// Thread safety:
// All methods are safe for concurrent use.
type Limiter struct {
	limit rate.Limit
	burst int

	// mu serialises get-or-create so two first requests from one caller
	// share a bucket.
	mu      sync.Mutex
	buckets *lru.Cache[string, *rate.Limiter]
}

// New creates a Limiter.
func New(cfg Config) (*Limiter, error) {
	maxKeys := cfg.MaxKeys
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}

	buckets, err := lru.New[string, *rate.Limiter](maxKeys)
	if err != nil {
		return nil, err
	}

	l := &Limiter{buckets: buckets}
	if cfg.RequestsPerSecond <= 0 {
		l.limit = rate.Inf
		return l, nil
	}

	l.limit = rate.Limit(cfg.RequestsPerSecond)
	l.burst = cfg.Burst
	if l.burst <= 0 {
		l.burst = max(1, int(cfg.RequestsPerSecond*2+0.5))
	}
	return l, nil
}

// Enabled reports whether the limiter restricts anything.
func (l *Limiter) Enabled() bool {
	return l.limit != rate.Inf
}

// Allow consumes a token for key and reports whether one was available.
func (l *Limiter) Allow(key string) bool {
	if !l.Enabled() {
		return true
	}
	return l.bucket(key).Allow()
}

// Wait blocks until key has a token or ctx is done.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	if !l.Enabled() {
		return ctx.Err()
	}
	return l.bucket(key).Wait(ctx)
}

// Tokens returns the tokens currently available to key. Unknown keys
// report a full bucket.
func (l *Limiter) Tokens(key string) float64 {
	if !l.Enabled() {
		return float64(rate.Inf)
	}
	if b, ok := l.buckets.Peek(key); ok {
		return b.Tokens()
	}
	return float64(l.burst)
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	return l.buckets.Len()
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets.Get(key); ok {
		return b
	}
	b := rate.NewLimiter(l.limit, l.burst)
	l.buckets.Add(key, b)
	return b
}
