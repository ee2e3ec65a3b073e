package sessionmap

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/mdsessiond/internal/logger"
	"github.com/marmos91/mdsessiond/internal/telemetry"
	"github.com/marmos91/mdsessiond/pkg/objectstore"
	"github.com/marmos91/mdsessiond/pkg/sessionmap/smerrors"
)

// ObjectName is the OMAP-bearing object this map persists to and loads
// from (e.g. "mds3_sessionmap").
func (m *SessionMap) ObjectName() string { return m.objectName }

// Save durably persists at least the state at needv. A zero needv means
// "whatever is dirty right now" with no collapsing check. If onCommit is
// non-nil, it is queued on the Finisher once its required version has
// actually committed; a version already committed queues onCommit
// immediately rather than running it inline, so callers always observe
// completions delivered the same way.
//
// If a commit already in flight will cover needv (committing >= needv),
// onCommit piggybacks on that in-flight commit and no new object-store
// operation is issued. Otherwise onCommit is registered against the
// current version and a save of the current dirty/null overlay is
// (re)started.
//
// Save only submits the compound operation; the caller's Finisher
// implementation is responsible for eventually running queued completions
// back on whatever serialized context drives SessionMap's other methods.
// SessionMap itself does not lock, so a Finisher that invokes completions
// concurrently with other SessionMap calls would race.
func (m *SessionMap) Save(onCommit Completion, needv uint64) {
	if needv > 0 && needv <= m.committed {
		if onCommit != nil {
			m.finisher.Queue(onCommit)
		}
		return
	}

	if needv > 0 && m.committing >= needv {
		if m.committing <= m.committed {
			panic("sessionmap: Save: committing <= committed with a commit supposedly in flight")
		}
		if onCommit != nil {
			m.commitWaiters[m.committing] = append(m.commitWaiters[m.committing], onCommit)
		}
		return
	}

	target := m.version
	if onCommit != nil {
		if target <= m.committed {
			m.finisher.Queue(onCommit)
		} else {
			m.commitWaiters[target] = append(m.commitWaiters[target], onCommit)
		}
	}

	m.maybeStartSave()
}

// maybeStartSave kicks off a new compound operation if one is not already
// in flight and there is something to commit.
func (m *SessionMap) maybeStartSave() {
	if m.saveInFlight {
		return
	}
	if len(m.dirtySessions) == 0 && len(m.nullSessions) == 0 && m.committing >= m.version {
		return
	}
	m.startSave()
}

// startSave snapshots the dirty/null sets, collapses committing onto
// version, composes the compound operation, and submits it. The snapshot
// is cleared from the live sets immediately, so further mutation during
// the in-flight save accumulates into a fresh dirty/null generation rather
// than racing the in-flight one.
func (m *SessionMap) startSave() {
	m.saveInFlight = true
	m.committing = m.version
	target := m.committing

	setValues := make(map[string][]byte, len(m.dirtySessions))
	for name := range m.dirtySessions {
		s, ok := m.store.Get(name)
		if !ok {
			continue
		}
		if !s.State.persistable() {
			continue
		}
		setValues[name.String()] = s.Info.Encode()
	}

	removeKeys := make([]string, 0, len(m.nullSessions))
	for name := range m.nullSessions {
		removeKeys = append(removeKeys, name.String())
	}

	truncate := m.loadedLegacy
	m.loadedLegacy = false

	m.dirtySessions = make(map[EntityName]struct{})
	m.nullSessions = make(map[EntityName]struct{})

	op := objectstore.CompoundOp{
		OID:          m.objectName,
		Header:       EncodeHeader(target),
		TruncateBody: truncate,
		SetValues:    setValues,
		RemoveKeys:   removeKeys,
	}

	if m.metrics != nil {
		m.metrics.SetDirtyCount(m.Rank, 0)
		m.metrics.SetNullCount(m.Rank, 0)
	}

	opID := uuid.NewString()
	start := m.clock()
	ctx, span := telemetry.StartSessionMapSpan(context.Background(), telemetry.SpanSessionMapSave, m.Rank, m.objectName,
		telemetry.Version(target), telemetry.BatchSize(len(setValues)+len(removeKeys)), telemetry.OpID(opID))
	ctx = logger.WithContext(ctx, logger.NewLogContext(m.Rank).WithObject(m.objectName).WithVersion(target).WithOpID(opID))

	go func() {
		defer span.End()
		err := m.objecter.Mutate(ctx, op)
		m.finisher.Queue(func() {
			m.onSaveComplete(opID, target, start, err)
		})
	}()
}

// onSaveComplete runs on the Finisher once startSave's goroutine has
// returned. On success it advances committed and releases any commit
// waiters now satisfied. On failure there is no retry and no waiter
// release: a Session Map that cannot confirm its overlay is durable can no
// longer be trusted, so the failure is escalated as fatal instead.
func (m *SessionMap) onSaveComplete(opID string, target uint64, start time.Time, err error) {
	m.saveInFlight = false

	if err != nil {
		if m.metrics != nil {
			m.metrics.RecordSaveError(m.Rank)
		}
		fatalErr := smerrors.NewIOFatal("sessionmap: save failed", err)
		logger.Error("sessionmap: save failed, aborting", logger.KeyRank, m.Rank, logger.KeyOpID, opID, logger.Err(fatalErr))
		m.onFatal(fatalErr)
		return
	}

	if target > m.committed {
		m.committed = target
	}

	if m.metrics != nil {
		m.metrics.ObserveSaveLatency(m.Rank, m.clock().Sub(start))
		m.metrics.SetVersionLineage(m.Rank, m.version, m.projected, m.committing, m.committed)
	}

	m.releaseCommitWaiters()
	m.maybeStartSave()
}

// releaseCommitWaiters queues every completion registered for a version
// now satisfied by m.committed.
func (m *SessionMap) releaseCommitWaiters() {
	for version, waiters := range m.commitWaiters {
		if version > m.committed {
			continue
		}
		for _, w := range waiters {
			m.finisher.Queue(w)
		}
		delete(m.commitWaiters, version)
	}
}
