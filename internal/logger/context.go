package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds request-scoped logging context for a Session Map
// operation: which rank, which persisted object, which entity and
// version lineage are in play.
type LogContext struct {
	TraceID   string // OpenTelemetry trace ID
	SpanID    string // OpenTelemetry span ID
	Rank      int    // MDS rank owning this Session Map
	Object    string // persisted object name, e.g. "mds3_sessionmap"
	Entity    string // EntityName.String() involved in the current op, if any
	Version   uint64 // version lineage value relevant to the current op
	OpID      string // correlation id for the in-flight compound object-store operation
	StartTime time.Time
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for the given rank.
func NewLogContext(rank int) *LogContext {
	return &LogContext{
		Rank:      rank,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	clone := *lc
	return &clone
}

// WithEntity returns a copy with the entity name set.
func (lc *LogContext) WithEntity(entity string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Entity = entity
	}
	return clone
}

// WithObject returns a copy with the object name set.
func (lc *LogContext) WithObject(object string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Object = object
	}
	return clone
}

// WithVersion returns a copy with the version set.
func (lc *LogContext) WithVersion(version uint64) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Version = version
	}
	return clone
}

// WithOpID returns a copy with the compound-operation correlation id set.
func (lc *LogContext) WithOpID(opID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.OpID = opID
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
