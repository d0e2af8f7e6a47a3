package cache

import "time"

// Lookup results reported to Metrics.
const (
	ResultHit   = "hit"
	ResultStale = "stale"
	ResultMiss  = "miss"
)

// Metrics provides observability for cached values.
//
// Implementations can use this interface to collect hit ratios and refresh
// latency. If not provided, collection is skipped.
type Metrics interface {
	// RecordLookup records a Get with its result (hit, stale or miss).
	RecordLookup(name, result string)

	// RecordRefresh records a completed load with its duration and outcome.
	RecordRefresh(name string, duration time.Duration, err error)
}

type noopMetrics struct{}

func (noopMetrics) RecordLookup(name, result string)                             {}
func (noopMetrics) RecordRefresh(name string, duration time.Duration, err error) {}
