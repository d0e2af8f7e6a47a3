package metadata

import (
	"context"
	"errors"
	"time"
)

// Metrics provides observability for metadata store operations.
//
// This is optional - wrap a store with Instrument to collect it.
type Metrics interface {
	// ObserveOperation records an operation with its duration and outcome.
	// Outcome is "success" or an ErrorCode name such as "conflict".
	ObserveOperation(operation string, duration time.Duration, outcome string)
}

// Instrument wraps store so every call is reported to m. A nil m returns
// store unchanged.
func Instrument(store MetadataStore, m Metrics) MetadataStore {
	if m == nil {
		return store
	}
	return &instrumentedStore{next: store, metrics: m}
}

type instrumentedStore struct {
	next    MetadataStore
	metrics Metrics
}

func (s *instrumentedStore) observe(op string, start time.Time, err error) {
	s.metrics.ObserveOperation(op, time.Since(start), Outcome(err))
}

// Outcome classifies err for metrics labels.
func Outcome(err error) string {
	if err == nil {
		return "success"
	}
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Code.String()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "error"
}

func (s *instrumentedStore) GetFile(ctx context.Context, id string) (*FileRecord, error) {
	start := time.Now()
	f, err := s.next.GetFile(ctx, id)
	s.observe("GetFile", start, err)
	return f, err
}

func (s *instrumentedStore) CreateFile(ctx context.Context, file *FileRecord) error {
	start := time.Now()
	err := s.next.CreateFile(ctx, file)
	s.observe("CreateFile", start, err)
	return err
}

func (s *instrumentedStore) UpdateFile(ctx context.Context, file *FileRecord) error {
	start := time.Now()
	err := s.next.UpdateFile(ctx, file)
	s.observe("UpdateFile", start, err)
	return err
}

func (s *instrumentedStore) ListFiles(ctx context.Context) ([]*FileRecord, error) {
	start := time.Now()
	files, err := s.next.ListFiles(ctx)
	s.observe("ListFiles", start, err)
	return files, err
}

func (s *instrumentedStore) Healthcheck(ctx context.Context) error {
	start := time.Now()
	err := s.next.Healthcheck(ctx)
	s.observe("Healthcheck", start, err)
	return err
}

func (s *instrumentedStore) Close() error {
	return s.next.Close()
}
