// Package objectstore defines the persistence protocol the Session Map
// drives its load and save state machines against: an ordered key/value map
// stored inside one named object, plus a small header and a legacy body
// region in the same object. Objecter is deliberately narrow — just the
// handful of operations the Session Map actually issues — rather than a
// general object-store client; Finisher is a serial completion executor,
// not a worker pool, since completions must run in submission order.
package objectstore

import (
	"context"
	"time"
)

// KeyValue is one entry of an ordered OMAP read, in ascending key order.
type KeyValue struct {
	Key   string
	Value []byte
}

// Completion is a zero-argument callback run by a Finisher once a
// submitted operation has completed (successfully or not; failure is
// reported out of band by the caller that submitted the op, not by the
// completion signature itself).
type Completion func()

// CompoundOp is the single atomic mutation the Session Map ever issues:
// a header write, an optional truncate of the legacy body, a batch of OMAP
// upserts, and a batch of OMAP key removals, composed into one atomic
// operation. A zero-value field means "omit this part of the operation"
// except Header, which is always written.
type CompoundOp struct {
	// OID is the object name (e.g. "mds3_sessionmap").
	OID string

	// Header replaces the object's header with these bytes.
	Header []byte

	// TruncateBody, when true, truncates the object's legacy body region
	// to zero length. Set once, the first time a legacy object is
	// rewritten in the modern format.
	TruncateBody bool

	// SetValues are OMAP upserts: key -> new value.
	SetValues map[string][]byte

	// RemoveKeys are OMAP keys to delete.
	RemoveKeys []string
}

// Objecter is the persistence backend the Session Map reads from and
// writes to. All methods are synchronous from the backend's point of view;
// SessionMap's own asynchrony comes from routing completions through a
// Finisher, not from Objecter itself being non-blocking.
type Objecter interface {
	// OmapGetHeader reads the object's header bytes. Returns an empty,
	// nil-error result for an object that does not exist yet.
	OmapGetHeader(ctx context.Context, oid string) ([]byte, error)

	// OmapGetVals reads up to maxReturn OMAP entries whose keys sort
	// strictly after startAfter ("" means from the beginning), in
	// ascending key order.
	OmapGetVals(ctx context.Context, oid string, startAfter string, maxReturn int) ([]KeyValue, error)

	// ReadFull reads the object's entire legacy body region, for the
	// pre-OMAP on-disk formats.
	ReadFull(ctx context.Context, oid string) ([]byte, error)

	// Mutate applies op atomically.
	Mutate(ctx context.Context, op CompoundOp) error
}

// Finisher runs queued completions one at a time, in the order they were
// queued, decoupling the caller that finished an I/O operation from the
// code that reacts to it.
type Finisher interface {
	// Queue schedules fn to run once prior queued completions have run.
	Queue(fn Completion)

	// Close stops accepting new completions and waits (up to timeout) for
	// the queue to drain.
	Close(timeout time.Duration)
}
