package engine

// Metrics records engine-level events. Implementations live in pkg/metrics.
type Metrics interface {
	// RecordLockConflict counts a 409 answered for op.
	RecordLockConflict(op string)

	// RecordRevisionConflict counts a lost conditional update for op;
	// exhausted is true when no retry is left.
	RecordRevisionConflict(op string, exhausted bool)
}

type noopMetrics struct{}

func (noopMetrics) RecordLockConflict(op string)                     {}
func (noopMetrics) RecordRevisionConflict(op string, exhausted bool) {}
