package s3

import (
	"io"
	"time"
)

// S3Metrics observes the store's whole-object calls. Operation names are
// the store methods (ReadContent, GetContentSize, WriteContent, Delete,
// ListContent, DeleteBatch); byte counts use the directions "read" and
// "write".
type S3Metrics interface {
	ObserveOperation(operation string, duration time.Duration, err error)

	// RecordBytes counts document bytes. A read is counted when its body
	// is closed, so an abandoned download reports what was streamed.
	RecordBytes(direction string, bytes int64)
}

type noopMetrics struct{}

func (noopMetrics) ObserveOperation(operation string, duration time.Duration, err error) {}
func (noopMetrics) RecordBytes(direction string, bytes int64)                            {}

// objectBody is a GetObject body that reports how much of the document
// was read once the caller closes it.
type objectBody struct {
	io.ReadCloser
	metrics S3Metrics
	read    int64
	closed  bool
}

func (b *objectBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	b.read += int64(n)
	return n, err
}

func (b *objectBody) Close() error {
	err := b.ReadCloser.Close()
	if !b.closed && b.read > 0 {
		b.metrics.RecordBytes("read", b.read)
	}
	b.closed = true
	return err
}
