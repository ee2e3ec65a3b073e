package sessionmap

import (
	"context"

	"github.com/google/uuid"

	"github.com/marmos91/mdsessiond/internal/logger"
	"github.com/marmos91/mdsessiond/internal/telemetry"
	"github.com/marmos91/mdsessiond/pkg/objectstore"
	"github.com/marmos91/mdsessiond/pkg/sessionmap/smerrors"
)

// loadResult is the outcome of the off-context I/O phase of a load, handed
// back to onLoadComplete for application to the live map.
type loadResult struct {
	legacy     bool
	legacyBody []byte

	values  []objectstore.KeyValue
	version uint64
}

// Load starts loading this rank's session map from its backing object, if
// it has not already loaded successfully. onComplete, if non-nil, is
// queued on the Finisher once the attempt finishes (check LoadErr to learn
// whether it succeeded). Calling Load again while already loaded just
// queues onComplete immediately; calling it again while a load is already
// in flight registers onComplete as an additional waiter on that same
// attempt, rather than starting a second one.
func (m *SessionMap) Load(onComplete Completion) {
	if m.loaded {
		if onComplete != nil {
			m.finisher.Queue(onComplete)
		}
		return
	}

	if onComplete != nil {
		m.waitingForLoad = append(m.waitingForLoad, onComplete)
	}

	if m.loadInFlight {
		return
	}
	m.loadInFlight = true

	opID := uuid.NewString()
	ctx, span := telemetry.StartSessionMapSpan(context.Background(), telemetry.SpanSessionMapLoad, m.Rank, m.objectName, telemetry.OpID(opID))
	ctx = logger.WithContext(ctx, logger.NewLogContext(m.Rank).WithObject(m.objectName).WithOpID(opID))

	go func() {
		defer span.End()
		result, err := m.runLoadPhases(ctx)
		m.finisher.Queue(func() {
			m.onLoadComplete(opID, result, err)
		})
	}()
}

// runLoadPhases implements the two-phase read: phase one reads the header
// and, if present, pages through the OMAP keyspace with the exclusive-start
// convention until a short page signals exhaustion; phase two is the
// legacy fallback taken when no header exists yet, reading the object's
// whole legacy body. It performs no mutation of the live map — only the
// off-context I/O.
func (m *SessionMap) runLoadPhases(ctx context.Context) (loadResult, error) {
	header, err := m.objecter.OmapGetHeader(ctx, m.objectName)
	if err != nil {
		return loadResult{}, err
	}

	if len(header) == 0 {
		body, err := m.objecter.ReadFull(ctx, m.objectName)
		if err != nil {
			return loadResult{}, err
		}
		if len(body) == 0 {
			return loadResult{version: 0}, nil
		}
		return loadResult{legacy: true, legacyBody: body}, nil
	}

	version, err := DecodeHeader(header)
	if err != nil {
		return loadResult{}, err
	}

	var all []objectstore.KeyValue
	startAfter := ""
	for {
		batch, err := m.objecter.OmapGetVals(ctx, m.objectName, startAfter, m.KeysPerOp)
		if err != nil {
			return loadResult{}, err
		}
		if len(batch) == 0 {
			break
		}
		all = append(all, batch...)
		startAfter = batch[len(batch)-1].Key
		if len(batch) < m.KeysPerOp {
			break
		}
	}

	return loadResult{values: all, version: version}, nil
}

// onLoadComplete runs on the Finisher once runLoadPhases has returned. On
// success it applies the decoded sessions to the store, links them into
// by_state, sets the version lineage, and releases every waiter registered
// since Load was first called. On failure — whether the underlying I/O
// failed or the on-disk payload is malformed — there is no retry and no
// waiter release: load waiters are released only on success, and a map
// that never finished loading is escalated as fatal instead.
func (m *SessionMap) onLoadComplete(opID string, result loadResult, err error) {
	m.loadInFlight = false
	m.loadErr = err

	if err != nil {
		fatalErr := smerrors.NewIOFatal("sessionmap: load failed", err)
		m.loadErr = fatalErr
		logger.Error("sessionmap: load failed, aborting", logger.KeyRank, m.Rank, logger.KeyOpID, opID, logger.Err(fatalErr))
		m.onFatal(fatalErr)
		return
	}

	switch {
	case result.legacy:
		version, derr := m.store.DecodeLegacy(result.legacyBody, m.clock())
		if derr != nil {
			m.loadErr = derr
			logger.Error("sessionmap: load failed, aborting", logger.KeyRank, m.Rank, logger.KeyOpID, opID, logger.Err(derr))
			m.onFatal(derr)
			return
		}
		m.loadedLegacy = true
		m.version = version
		m.projected = version
		m.committing = version
		m.committed = version
		for _, s := range m.store.sessions {
			if s.State == StateOpening {
				s.State = StateOpen
			}
		}

	default:
		batch := make([]KeyValue, len(result.values))
		for i, kv := range result.values {
			batch[i] = KeyValue{Key: kv.Key, Value: kv.Value}
		}
		if derr := m.store.DecodeValues(batch); derr != nil {
			m.loadErr = derr
			logger.Error("sessionmap: load failed, aborting", logger.KeyRank, m.Rank, logger.KeyOpID, opID, logger.Err(derr))
			m.onFatal(derr)
			return
		}
		m.version = result.version
		m.projected = result.version
		m.committing = result.version
		m.committed = result.version
	}

	for _, s := range m.store.sessions {
		m.linkByState(s)
	}

	if result.legacy {
		for name := range m.store.sessions {
			m.dirtySessions[name] = struct{}{}
		}
		m.maybeStartSave()
	}

	m.loaded = true

	if m.metrics != nil {
		m.metrics.RecordLoad(m.Rank, result.legacy)
		m.metrics.SetVersionLineage(m.Rank, m.version, m.projected, m.committing, m.committed)
	}

	m.releaseLoadWaiters()
}

// releaseLoadWaiters queues every registered load completion and clears
// the waiter list.
func (m *SessionMap) releaseLoadWaiters() {
	waiters := m.waitingForLoad
	m.waitingForLoad = nil
	for _, w := range waiters {
		m.finisher.Queue(w)
	}
}
