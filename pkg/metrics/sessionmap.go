package metrics

import "time"

// SessionMapMetrics is the observability surface a SessionMap reports
// through. Pass nil to a constructor that accepts one to disable metrics
// collection with zero overhead; callers always check for nil before
// calling through the interface, following dittofs's NFSMetrics/S3Metrics
// convention.
type SessionMapMetrics interface {
	// SetSessionCount reports the current number of sessions in state for
	// rank.
	SetSessionCount(rank int, state string, n int)

	// SetDirtyCount reports the current size of the dirty-session set.
	SetDirtyCount(rank int, n int)

	// SetNullCount reports the current size of the null-session set.
	SetNullCount(rank int, n int)

	// SetVersionLineage reports the four version counters: version,
	// projected, committing, and committed.
	SetVersionLineage(rank int, version, projected, committing, committed uint64)

	// ObserveSaveLatency records how long a save's compound operation took
	// from submission to completion.
	ObserveSaveLatency(rank int, d time.Duration)

	// RecordPreemptiveFlush counts a save triggered by the dirty set
	// reaching KeysPerOp rather than by an explicit caller request.
	RecordPreemptiveFlush(rank int)

	// RecordSaveError counts a save whose compound operation failed.
	RecordSaveError(rank int)

	// RecordLoad counts a completed load, tagged legacy true/false.
	RecordLoad(rank int, legacy bool)
}
