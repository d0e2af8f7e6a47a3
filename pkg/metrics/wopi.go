package metrics

import "time"

// WOPIMetrics provides observability for the WOPI adapter and engine.
//
// This interface is optional - if not provided to the WOPI handler, a no-op
// implementation is used with zero overhead. It also satisfies the engine's
// metrics hook, so one instance covers both layers.
//
// Example usage:
//
//	metrics.InitRegistry()
//	m := prometheus.NewWOPIMetrics()
//	handler, _ := wopi.NewHandler(wopi.HandlerConfig{Engine: e, Metrics: m})
type WOPIMetrics interface {
	// RecordRequest records a completed request.
	//
	// Parameters:
	//   - operation: classified operation (e.g., "Lock", "GetFile", "None")
	//   - status: HTTP status written
	//   - duration: time taken to serve the request
	RecordRequest(operation string, status int, duration time.Duration)

	// RecordRequestStart increments the in-flight gauge for operation.
	RecordRequestStart(operation string)

	// RecordRequestEnd decrements the in-flight gauge for operation.
	RecordRequestEnd(operation string)

	// RecordBytesTransferred records document bytes.
	//
	// Parameters:
	//   - direction: "read" or "write"
	//   - bytes: number of bytes
	RecordBytesTransferred(direction string, bytes int64)

	// RecordProofFailure counts a request rejected by proof validation.
	RecordProofFailure()

	// RecordTokenFailure counts a request rejected for its access token.
	RecordTokenFailure()

	// RecordLockConflict counts a 409 answered for operation.
	RecordLockConflict(operation string)

	// RecordRevisionConflict counts a lost conditional metadata update.
	// exhausted is true when the request gave up.
	RecordRevisionConflict(operation string, exhausted bool)
}

// NewNoopWOPIMetrics returns a WOPIMetrics that records nothing.
func NewNoopWOPIMetrics() WOPIMetrics {
	return noopWOPIMetrics{}
}

type noopWOPIMetrics struct{}

func (noopWOPIMetrics) RecordRequest(operation string, status int, duration time.Duration) {}
func (noopWOPIMetrics) RecordRequestStart(operation string)                                {}
func (noopWOPIMetrics) RecordRequestEnd(operation string)                                  {}
func (noopWOPIMetrics) RecordBytesTransferred(direction string, bytes int64)               {}
func (noopWOPIMetrics) RecordProofFailure()                                                {}
func (noopWOPIMetrics) RecordTokenFailure()                                                {}
func (noopWOPIMetrics) RecordLockConflict(operation string)                                {}
func (noopWOPIMetrics) RecordRevisionConflict(operation string, exhausted bool)            {}
