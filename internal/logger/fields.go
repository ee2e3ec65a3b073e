package logger

import (
	"log/slog"
)

// Standard structured logging field keys used across the Session Map core.
// Keeping these as constants avoids key-name drift between call sites.
const (
	// Correlation

	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID

	// Rank / object identity

	KeyRank   = "rank"   // MDS rank owning the Session Map
	KeyObject = "object" // persisted object name, e.g. "mds3_sessionmap"
	KeyEntity = "entity" // EntityName string, e.g. "client.4567"

	// Version lineage

	KeyVersion     = "version"
	KeyProjected   = "projected"
	KeyCommitting  = "committing"
	KeyCommitted   = "committed"
	KeyNeedVersion = "need_version"

	// Session state

	KeyState    = "state"
	KeyOldState = "old_state"
	KeyNewState = "new_state"
	KeyStateSeq = "state_seq"

	// Persistence protocol

	KeyBatchSize   = "batch_size"
	KeyDirtyCount  = "dirty_count"
	KeyNullCount   = "null_count"
	KeyKeysPerOp   = "keys_per_op"
	KeyStartKey    = "start_key"
	KeyLegacy      = "legacy"
	KeyOpID        = "op_id"
	KeyDurationMs  = "duration_ms"
	KeyBackend     = "backend"
	KeyWaiterCount = "waiter_count"

	// Errors

	KeyError     = "error"
	KeyErrorCode = "error_code"
)

// ============================================================================
// Field Helpers — typed slog.Attr constructors for the common keys above.
// ============================================================================

// TraceID returns an attribute for the OpenTelemetry trace ID.
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns an attribute for the OpenTelemetry span ID.
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// Rank returns an attribute for the owning MDS rank.
func Rank(rank int) slog.Attr {
	return slog.Int(KeyRank, rank)
}

// Object returns an attribute for the persisted object name.
func Object(oid string) slog.Attr {
	return slog.String(KeyObject, oid)
}

// Entity returns an attribute for an EntityName string.
func Entity(name string) slog.Attr {
	return slog.String(KeyEntity, name)
}

// Version returns an attribute for a version counter.
func Version(v uint64) slog.Attr {
	return slog.Uint64(KeyVersion, v)
}

// Projected returns an attribute for the projected version counter.
func Projected(v uint64) slog.Attr {
	return slog.Uint64(KeyProjected, v)
}

// Committing returns an attribute for the committing version counter.
func Committing(v uint64) slog.Attr {
	return slog.Uint64(KeyCommitting, v)
}

// Committed returns an attribute for the committed version counter.
func Committed(v uint64) slog.Attr {
	return slog.Uint64(KeyCommitted, v)
}

// NeedVersion returns an attribute for a caller-required version.
func NeedVersion(v uint64) slog.Attr {
	return slog.Uint64(KeyNeedVersion, v)
}

// State returns an attribute for a session state name.
func State(s string) slog.Attr {
	return slog.String(KeyState, s)
}

// StateTransition returns attributes describing an old->new state move.
func StateTransition(old, new string) []slog.Attr {
	return []slog.Attr{slog.String(KeyOldState, old), slog.String(KeyNewState, new)}
}

// StateSeq returns an attribute for a session's state sequence counter.
func StateSeq(seq uint64) slog.Attr {
	return slog.Uint64(KeyStateSeq, seq)
}

// BatchSize returns an attribute for an omap read batch size.
func BatchSize(n int) slog.Attr {
	return slog.Int(KeyBatchSize, n)
}

// DirtyCount returns an attribute for the size of the dirty session set.
func DirtyCount(n int) slog.Attr {
	return slog.Int(KeyDirtyCount, n)
}

// NullCount returns an attribute for the size of the null (tombstone) session set.
func NullCount(n int) slog.Attr {
	return slog.Int(KeyNullCount, n)
}

// KeysPerOp returns an attribute for the configured keys-per-op batch cap.
func KeysPerOp(n int) slog.Attr {
	return slog.Int(KeyKeysPerOp, n)
}

// StartKey returns an attribute for the exclusive-start key of a ranged read.
func StartKey(key string) slog.Attr {
	return slog.String(KeyStartKey, key)
}

// Legacy returns an attribute indicating whether the legacy on-disk format was used.
func Legacy(legacy bool) slog.Attr {
	return slog.Bool(KeyLegacy, legacy)
}

// OpID returns an attribute for a compound object-operation correlation ID.
func OpID(id string) slog.Attr {
	return slog.String(KeyOpID, id)
}

// DurationMs returns an attribute for an operation duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Backend returns an attribute for the object-store backend name.
func Backend(name string) slog.Attr {
	return slog.String(KeyBackend, name)
}

// WaiterCount returns an attribute for a number of queued completion waiters.
func WaiterCount(n int) slog.Attr {
	return slog.Int(KeyWaiterCount, n)
}

// Err returns an attribute for an error value. Returns an empty (zero) attr
// for a nil error so callers can pass it unconditionally.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns an attribute for a domain error code string.
func ErrorCode(code string) slog.Attr {
	return slog.String(KeyErrorCode, code)
}
