package sessionmap

import (
	"os"
	"time"

	"github.com/marmos91/mdsessiond/internal/logger"
	"github.com/marmos91/mdsessiond/pkg/metrics"
	"github.com/marmos91/mdsessiond/pkg/objectstore"
	"github.com/marmos91/mdsessiond/pkg/sessionmap/smerrors"
)

// Completion is delivered on the Finisher when a save commits, or when a
// load finishes. It carries no value: callers already know what they were
// waiting for (a version, or "the load").
type Completion = objectstore.Completion

// SessionMap is the live, rank-owned Session Map: the in-memory index, its
// by_state secondary view, the dirty/null overlay sets, the version
// lineage, and the load/save state machines. All mutating methods assume
// the caller is on the MDS's single serialized event context; SessionMap
// does not lock internally.
type SessionMap struct {
	Rank int

	objectName   string
	saveInFlight bool

	store *SessionMapStore

	byState map[SessionState][]*Session

	dirtySessions map[EntityName]struct{}
	nullSessions  map[EntityName]struct{}

	// Version lineage: committed <= committing <= version <= projected.
	version    uint64
	projected  uint64
	committing uint64
	committed  uint64

	commitWaiters  map[uint64][]Completion
	waitingForLoad []Completion

	loaded       bool
	loadInFlight bool
	loadErr      error

	loadedLegacy bool

	// KeysPerOp is K: the OMAP read batch size and the dirty-set
	// preemptive-flush threshold.
	KeysPerOp int

	objecter objectstore.Objecter
	finisher objectstore.Finisher

	clock func() time.Time

	metrics metrics.SessionMapMetrics

	// onFatal is invoked (on the Finisher goroutine) when a load or save
	// I/O operation fails. An I/O failure is unrecoverable at this layer:
	// no retry, no waiter release, just escalation. Defaults to logging
	// and aborting the process; overridable via SetFatalHandler so a
	// caller (or a test) can intercept instead of exiting.
	onFatal func(err error)
}

// NewSessionMap constructs an empty SessionMap for the given rank, backed
// by objecter for persistence and finisher for completion delivery. Pass a
// nil sm to disable metrics collection.
func NewSessionMap(rank int, objectName string, objecter objectstore.Objecter, finisher objectstore.Finisher, keysPerOp int, sm metrics.SessionMapMetrics) *SessionMap {
	if keysPerOp <= 0 {
		keysPerOp = 1024
	}
	return &SessionMap{
		Rank:          rank,
		objectName:    objectName,
		store:         NewSessionMapStore(),
		byState:       make(map[SessionState][]*Session),
		dirtySessions: make(map[EntityName]struct{}),
		nullSessions:  make(map[EntityName]struct{}),
		commitWaiters: make(map[uint64][]Completion),
		KeysPerOp:     keysPerOp,
		objecter:      objecter,
		finisher:      finisher,
		clock:         time.Now,
		metrics:       sm,
		onFatal:       defaultFatalHandler,
	}
}

// SetFatalHandler overrides how the map escalates a fatal load/save I/O
// error. The default logs the error and exits the process, mirroring an
// MDS rank aborting when its Session Map might no longer match what's
// durable. Tests and CLI callers that need to observe the error instead of
// exiting should install their own handler.
func (m *SessionMap) SetFatalHandler(h func(err error)) {
	if h == nil {
		h = defaultFatalHandler
	}
	m.onFatal = h
}

// defaultFatalHandler logs the fatal error and aborts the process; no
// waiter can be released and no retry can be attempted once the map no
// longer trusts its own durable state.
func defaultFatalHandler(err error) {
	logger.Error("sessionmap: fatal I/O error, aborting", logger.Err(err))
	os.Exit(1)
}

// Store exposes the underlying codec/index for callers that need direct
// access (the CLI dump path, tests).
func (m *SessionMap) Store() *SessionMapStore { return m.store }

// Version, Projected, Committing, Committed report the four lineage
// counters: committed <= committing <= version <= projected.
func (m *SessionMap) Version() uint64    { return m.version }
func (m *SessionMap) Projected() uint64  { return m.projected }
func (m *SessionMap) Committing() uint64 { return m.committing }
func (m *SessionMap) Committed() uint64  { return m.committed }

// LoadedLegacy reports whether the in-memory map was populated from a
// legacy object and still owes the migration save.
func (m *SessionMap) LoadedLegacy() bool { return m.loadedLegacy }

// Loaded reports whether a load has completed successfully.
func (m *SessionMap) Loaded() bool { return m.loaded }

// LoadErr returns the error from the most recently completed load attempt,
// or nil if the last attempt succeeded (or none has run yet).
func (m *SessionMap) LoadErr() error { return m.loadErr }

// AddSession inserts a new session, linking it into by_state. Precondition:
// name ∉ sessions; violating it is a programmer error. A name left over in
// null_sessions from a prior remove of the same name is cleared here, so a
// remove-then-recreate starts clean in neither dirty_sessions nor
// null_sessions until something actually marks the new session dirty.
func (m *SessionMap) AddSession(s *Session) {
	name := s.Info.Inst.Name
	if _, exists := m.store.Get(name); exists {
		panic(smerrors.NewPrecondition("AddSession: " + name.String() + " already present").Error())
	}
	m.store.sessions[name] = s
	m.linkByState(s)
	delete(m.nullSessions, name)
}

// RemoveSession unlinks s from by_state and the index, trims its
// completed-request tracking, and moves its name from dirty_sessions (if
// present) into null_sessions, maintaining I3/I5.
func (m *SessionMap) RemoveSession(s *Session) {
	name := s.Info.Inst.Name

	m.unlinkByState(s)
	m.store.Remove(name)
	s.Info.CompletedRequests = make(map[uint64]struct{})

	if _, wasDirty := m.dirtySessions[name]; wasDirty {
		delete(m.dirtySessions, name)
	}
	m.nullSessions[name] = struct{}{}
}

// SetState transitions s to new, bumping state_seq and moving it to the
// tail of new's by_state list. Returns the new state_seq. No-op (other
// than returning the current state_seq) if new == s.State.
func (m *SessionMap) SetState(s *Session, newState SessionState) uint64 {
	if newState == s.State {
		return s.StateSeq
	}
	m.unlinkByState(s)
	s.State = newState
	s.StateSeq++
	m.linkByState(s)
	return s.StateSeq
}

// TouchSession re-appends s at the tail of its current state list (an LRU
// refresh) and updates last_cap_renew. Precondition: s is currently linked.
func (m *SessionMap) TouchSession(s *Session) {
	m.unlinkByState(s)
	m.linkByState(s)
	s.LastCapRenew = m.clock()
}

// MarkDirty schedules s for upsert on the next save, then bumps version and
// pops the oldest entry from s.ProjectedPVQueue.
func (m *SessionMap) MarkDirty(s *Session) {
	m.markDirtyInternal(s)
	m.version++
	if len(s.ProjectedPVQueue) > 0 {
		s.ProjectedPVQueue = s.ProjectedPVQueue[1:]
	}
}

// markDirtyInternal is _mark_dirty: if the dirty set is already at the
// KeysPerOp cap, a preemptive no-op save is scheduled first so the overlay
// a subsequent save composes never exceeds K entries. The over-threshold
// session being inserted here is deliberately not part of that preempted
// save's batch.
func (m *SessionMap) markDirtyInternal(s *Session) {
	if len(m.dirtySessions) >= m.KeysPerOp {
		logger.Debug("sessionmap: preemptive flush", logger.KeyRank, m.Rank, logger.KeyDirtyCount, len(m.dirtySessions))
		if m.metrics != nil {
			m.metrics.RecordPreemptiveFlush(m.Rank)
		}
		m.Save(nil, 0)
	}
	name := s.Info.Inst.Name
	delete(m.nullSessions, name)
	m.dirtySessions[name] = struct{}{}
}

// MarkProjected bumps projected, pushes it onto s.ProjectedPVQueue, and
// returns the new projected value.
func (m *SessionMap) MarkProjected(s *Session) uint64 {
	m.projected++
	s.ProjectedPVQueue = append(s.ProjectedPVQueue, m.projected)
	return m.projected
}

// ReplayDirtySession is a journal-replay entry point: it marks s dirty
// without going through the preemptive-flush / version-bump path used by
// live mutation, since replay is reconstructing state that was already
// durable at the time it was journaled.
func (m *SessionMap) ReplayDirtySession(s *Session) {
	name := s.Info.Inst.Name
	delete(m.nullSessions, name)
	m.dirtySessions[name] = struct{}{}
}

// ReplayAdvanceVersion advances version during journal replay without
// triggering a save.
func (m *SessionMap) ReplayAdvanceVersion() {
	m.version++
}

// Wipe removes every session, then sets version = ++projected.
func (m *SessionMap) Wipe() {
	for _, s := range m.store.sessions {
		m.unlinkByState(s)
	}
	m.store.sessions = make(map[EntityName]*Session)
	m.projected++
	m.version = m.projected
}

// WipeInoPrealloc clears per-session inode pre-allocation fields, then sets
// projected = ++version.
func (m *SessionMap) WipeInoPrealloc() {
	for _, s := range m.store.sessions {
		s.Info.PreallocInos = make(map[uint64]struct{})
		s.PendingPreallocInos = make(map[uint64]struct{})
	}
	m.version++
	m.projected = m.version
}

// linkByState appends s to the tail of m.byState[s.State].
func (m *SessionMap) linkByState(s *Session) {
	list := m.byState[s.State]
	s.byStateIndex = len(list)
	m.byState[s.State] = append(list, s)
}

// unlinkByState removes s from its current by_state list using a swap-
// with-last removal, updating the displaced session's recorded index.
func (m *SessionMap) unlinkByState(s *Session) {
	list := m.byState[s.State]
	idx := s.byStateIndex
	if idx < 0 || idx >= len(list) || list[idx] != s {
		// Defensive: fall back to a linear scan if the cached index is
		// stale (should not happen in correct usage).
		idx = -1
		for i, cand := range list {
			if cand == s {
				idx = i
				break
			}
		}
		if idx == -1 {
			return
		}
	}

	last := len(list) - 1
	list[idx] = list[last]
	list[idx].byStateIndex = idx
	list = list[:last]
	m.byState[s.State] = list
	s.byStateIndex = -1
}

// ByState returns the current by_state list for state. Callers must not
// retain the slice across further mutation of the map.
func (m *SessionMap) ByState(state SessionState) []*Session {
	return m.byState[state]
}

// Stats is a read-only snapshot of map-level counters, used by the CLI
// "stat" command and exported as Prometheus gauges. This is a supplement
// beyond the distilled spec, a direct consequence of the by_state index
// and version lineage already maintained.
type Stats struct {
	Rank           int
	CountsByState  map[SessionState]int
	DirtyCount     int
	NullCount      int
	Version        uint64
	Projected      uint64
	Committing     uint64
	Committed      uint64
	LoadedLegacy   bool
}

// ReportMetrics pushes the current Stats snapshot into the configured
// metrics sink, if any. Intended to be called periodically (e.g. by the
// daemon's stat-reporting loop), since SessionMap does not report on every
// mutation.
func (m *SessionMap) ReportMetrics() {
	if m.metrics == nil {
		return
	}
	stats := m.ComputeStats()
	for state, n := range stats.CountsByState {
		m.metrics.SetSessionCount(m.Rank, state.String(), n)
	}
	m.metrics.SetDirtyCount(m.Rank, stats.DirtyCount)
	m.metrics.SetNullCount(m.Rank, stats.NullCount)
	m.metrics.SetVersionLineage(m.Rank, stats.Version, stats.Projected, stats.Committing, stats.Committed)
}

// ComputeStats returns a point-in-time snapshot of the map's counters.
func (m *SessionMap) ComputeStats() Stats {
	counts := make(map[SessionState]int, len(m.byState))
	for state, list := range m.byState {
		counts[state] = len(list)
	}
	return Stats{
		Rank:          m.Rank,
		CountsByState: counts,
		DirtyCount:    len(m.dirtySessions),
		NullCount:     len(m.nullSessions),
		Version:       m.version,
		Projected:     m.projected,
		Committing:    m.committing,
		Committed:     m.committed,
		LoadedLegacy:  m.loadedLegacy,
	}
}
