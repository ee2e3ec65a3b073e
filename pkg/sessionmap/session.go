package sessionmap

import (
	"fmt"
	"strconv"
	"time"
)

// SessionState is the lifecycle state of a client session.
type SessionState int

const (
	StateClosed SessionState = iota
	StateOpening
	StateOpen
	StateClosing
	StateStale
	StateKilling
)

// String renders a SessionState for logging and dumps.
func (s SessionState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateStale:
		return "stale"
	case StateKilling:
		return "killing"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// persistableStates are the states whose dirty sessions are actually
// written on save; Opening and Closed sessions are skipped even if marked
// dirty, since neither represents state worth persisting.
func (s SessionState) persistable() bool {
	switch s {
	case StateOpen, StateClosing, StateStale, StateKilling:
		return true
	default:
		return false
	}
}

// Session is one row of a SessionMap: a client's negotiated state plus
// back-references into the request and capability tracking owned by other
// subsystems. The map never mutates the payload of those back-references,
// only their list linkage.
type Session struct {
	Info  SessionInfo
	State SessionState

	// StateSeq is bumped on every state transition, so callers can detect
	// whether a session moved between two observations.
	StateSeq uint64

	LastCapRenew time.Time

	// Requests and Caps are intrusive back-references owned elsewhere;
	// the map only indexes them, it never allocates or frees their payload.
	Requests []uint64 // in-flight request ids
	Caps     []uint64 // capability ids currently held

	// Recall bookkeeping, tracking an outstanding request to shed caps.
	RecalledAt          time.Time
	RecallCount         int
	RecallReleaseCount  int

	// PendingPreallocInos mirrors the inode pre-allocation bookkeeping
	// tracked persistently in Info.PreallocInos, for in-flight allocations
	// not yet committed to Info.
	PendingPreallocInos map[uint64]struct{}

	// ProjectedPVQueue is a FIFO of projected versions this session's
	// mutations are waiting to see committed.
	ProjectedPVQueue []uint64

	// HumanName is a presentation-only string derived from
	// Info.ClientMetadata; not required to be unique.
	HumanName string

	// byStateIndex is this session's position in its current by_state
	// list, maintained by SessionMap to support O(1) unlink/move-to-tail.
	// It is not part of the persisted or logically observable state.
	byStateIndex int
}

// NewSession constructs a Session for a freshly connecting client, in the
// Opening state.
func NewSession(inst EntityInst) *Session {
	s := &Session{
		Info:                newEmptySessionInfo(inst),
		State:               StateOpening,
		PendingPreallocInos: make(map[uint64]struct{}),
	}
	s.updateHumanName()
	return s
}

// NotifyRecallSent records that a capability recall was sent to the client,
// asking it to drop down to newLimit held capabilities. Precondition:
// newLimit < len(s.Caps); violating it is a precondition error.
func (s *Session) NotifyRecallSent(newLimit int) {
	if newLimit >= len(s.Caps) {
		panic(fmt.Sprintf("sessionmap: NotifyRecallSent: new_limit %d >= cap count %d", newLimit, len(s.Caps)))
	}
	if s.RecalledAt.IsZero() {
		s.RecalledAt = time.Now()
		s.RecallCount = len(s.Caps) - newLimit
		s.RecallReleaseCount = 0
	}
}

// NotifyCapRelease records that the client released n capabilities. Once
// enough have been released to satisfy the outstanding recall, the recall
// bookkeeping is cleared.
func (s *Session) NotifyCapRelease(n int) {
	if s.RecalledAt.IsZero() {
		return
	}
	s.RecallReleaseCount += n
	if s.RecallReleaseCount >= s.RecallCount {
		s.RecalledAt = time.Time{}
		s.RecallCount = 0
		s.RecallReleaseCount = 0
	}
}

// SetClientMetadata replaces the client metadata bag and recomputes
// HumanName.
func (s *Session) SetClientMetadata(m map[string]string) {
	s.Info.ClientMetadata = m
	s.updateHumanName()
}

// Decode replaces Info with a freshly decoded SessionInfo and recomputes
// HumanName, preserving the Session's identity (state, back-references).
func (s *Session) Decode(buf []byte) ([]byte, error) {
	info, rest, err := DecodeSessionInfo(buf)
	if err != nil {
		return nil, err
	}
	s.Info = info
	s.updateHumanName()
	return rest, nil
}

// updateHumanName derives the presentation-only HumanName from client
// metadata: prefer hostname, optionally qualified by a non-default
// entity_id, falling back to the numeric id of the entity name.
func (s *Session) updateHumanName() {
	hostname, hasHostname := s.Info.ClientMetadata["hostname"]
	if !hasHostname {
		s.HumanName = strconv.FormatUint(s.Info.Inst.Name.ID, 10)
		return
	}

	name := hostname
	if entityID, ok := s.Info.ClientMetadata["entity_id"]; ok && entityID != "" {
		name = hostname + ":" + entityID
	}
	s.HumanName = name
}
