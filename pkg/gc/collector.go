// Package gc removes stored content that no file record references.
//
// Orphans appear when a content write succeeds but the record that should
// point at it is never created, or when a record is removed out of band.
//
// A content write always precedes its record, so an object may look
// orphaned for a moment while a document is being registered. The
// background worker therefore only deletes objects that were orphaned in
// two consecutive collections.
package gc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/dittowopi/internal/logger"
	"github.com/marmos91/dittowopi/pkg/store/content"
	"github.com/marmos91/dittowopi/pkg/store/metadata"
)

// Config contains configuration for the collector.
type Config struct {
	// Interval between background collections (default: 24h)
	Interval time.Duration

	// BatchSize is how many ids are deleted per batch (default: 1000)
	BatchSize int

	// DryRun logs what would be deleted without deleting
	DryRun bool
}

// Collector finds and removes orphaned content.
//
// Thread Safety: Safe for concurrent use. Collections are serialized.
type Collector struct {
	files  metadata.MetadataStore
	blobs  content.ListableStore
	config Config

	// mu serializes collections and guards suspects
	mu       sync.Mutex
	suspects map[content.ContentID]struct{}

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewCollector returns a collector that is not yet started. The content
// store must implement content.ListableStore.
func NewCollector(files metadata.MetadataStore, blobs content.ContentStore, config Config) (*Collector, error) {
	lister, ok := blobs.(content.ListableStore)
	if !ok {
		return nil, fmt.Errorf("content store %T cannot list its content", blobs)
	}

	if config.Interval <= 0 {
		config.Interval = 24 * time.Hour
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 1000
	}

	return &Collector{
		files:    files,
		blobs:    lister,
		config:   config,
		suspects: make(map[content.ContentID]struct{}),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start runs collections every Interval until Stop is called.
func (c *Collector) Start() {
	logger.Info("Starting garbage collector: interval=%s batch_size=%d dry_run=%v",
		c.config.Interval, c.config.BatchSize, c.config.DryRun)

	go c.worker()
}

// Stop signals the worker and waits for it to finish, or for ctx to
// expire. It must only be called after Start.
func (c *Collector) Stop(ctx context.Context) error {
	c.stopOnce.Do(func() { close(c.stopCh) })

	select {
	case <-c.doneCh:
		logger.Info("Garbage collector stopped")
		return nil
	case <-ctx.Done():
		logger.Warn("Garbage collector shutdown timeout")
		return ctx.Err()
	}
}

// RunNow performs a single collection and deletes every orphan it finds,
// without waiting for a second sighting. Use it when no document is
// being registered concurrently.
func (c *Collector) RunNow(ctx context.Context) (*Stats, error) {
	return c.collect(ctx, false)
}

func (c *Collector) worker() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-c.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		select {
		case <-ticker.C:
			stats, err := c.collect(ctx, true)
			if err != nil {
				logger.Error("Garbage collection failed: %v", err)
				continue
			}
			logger.Info("Garbage collection completed: %s", stats.Summary())

		case <-c.stopCh:
			return
		}
	}
}

// collect lists content before records, so an object whose record is
// created between the two listings counts as referenced. When confirm is
// set, orphans seen for the first time are deferred to the next run.
func (c *Collector) collect(ctx context.Context, confirm bool) (*Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := &Stats{StartTime: time.Now()}
	defer func() { stats.EndTime = time.Now() }()

	existing, err := c.blobs.ListContent(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list content: %w", err)
	}
	stats.ExistingCount = uint64(len(existing))

	records, err := c.files.ListFiles(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list files: %w", err)
	}
	stats.ReferencedCount = uint64(len(records))

	referenced := make(map[content.ContentID]struct{}, len(records))
	for _, r := range records {
		referenced[content.NewContentID(r.Container, r.ID)] = struct{}{}
	}

	var orphaned []content.ContentID
	nextSuspects := make(map[content.ContentID]struct{})
	for _, id := range existing {
		if _, ok := referenced[id]; ok {
			continue
		}
		if _, seen := c.suspects[id]; confirm && !seen {
			nextSuspects[id] = struct{}{}
			stats.DeferredCount++
			continue
		}
		orphaned = append(orphaned, id)
	}
	stats.OrphanedCount = uint64(len(orphaned))

	if c.config.DryRun {
		// Keep suspects so repeated dry runs report what a real run would delete
		for _, id := range orphaned {
			nextSuspects[id] = struct{}{}
		}
		c.suspects = nextSuspects
		for i, id := range orphaned {
			if i == 10 {
				logger.Info("GC: dry run, ... and %d more", len(orphaned)-10)
				break
			}
			logger.Info("GC: dry run, would delete %s", id)
		}
		return stats, nil
	}
	c.suspects = nextSuspects

	for i := 0; i < len(orphaned); i += c.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		batch := orphaned[i:min(i+c.config.BatchSize, len(orphaned))]
		failures := c.deleteBatch(ctx, batch)

		stats.DeletedCount += uint64(len(batch) - len(failures))
		stats.FailedCount += uint64(len(failures))
		for id, ferr := range failures {
			logger.Debug("GC: failed to delete %s: %v", id, ferr)
		}
	}

	return stats, nil
}

// deleteBatch uses the store's batch delete when it has one.
func (c *Collector) deleteBatch(ctx context.Context, batch []content.ContentID) map[content.ContentID]error {
	if bd, ok := c.blobs.(content.BatchDeleter); ok {
		failures, err := bd.DeleteBatch(ctx, batch)
		if err != nil {
			logger.Warn("GC: batch delete failed: %v", err)
		}
		return failures
	}

	failures := make(map[content.ContentID]error)
	for _, id := range batch {
		if err := c.blobs.Delete(ctx, id); err != nil {
			failures[id] = err
		}
	}
	return failures
}

// Stats contains statistics from one collection.
type Stats struct {
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	ReferencedCount uint64    `json:"referenced"` // file records
	ExistingCount   uint64    `json:"existing"`   // stored objects
	OrphanedCount   uint64    `json:"orphaned"`   // orphans eligible for deletion
	DeferredCount   uint64    `json:"deferred"`   // orphans awaiting a second sighting
	DeletedCount    uint64    `json:"deleted"`
	FailedCount     uint64    `json:"failed"`
}

// Duration returns the total collection duration.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Summary returns a human-readable summary of the collection.
func (s *Stats) Summary() string {
	return fmt.Sprintf("referenced=%d existing=%d orphaned=%d deferred=%d deleted=%d failed=%d duration=%s",
		s.ReferencedCount, s.ExistingCount, s.OrphanedCount, s.DeferredCount,
		s.DeletedCount, s.FailedCount, s.Duration())
}
