package sessionmap

import (
	"testing"

	"github.com/marmos91/mdsessiond/pkg/objectstore/finisher"
	"github.com/marmos91/mdsessiond/pkg/objectstore/memory"
)

func newTestMap(t *testing.T, keysPerOp int) *SessionMap {
	t.Helper()
	f := finisher.New(0)
	t.Cleanup(func() { f.Close(0) })
	return NewSessionMap(3, "mds3_sessionmap", memory.New(), f, keysPerOp, nil)
}

func addOpenSession(m *SessionMap, kind string, id uint64) *Session {
	s := NewSession(EntityInst{Name: EntityName{Kind: kind, ID: id}, Addr: "10.0.0.1:0"})
	m.AddSession(s)
	m.SetState(s, StateOpen)
	return s
}

func TestAddSessionPanicsOnDuplicate(t *testing.T) {
	m := newTestMap(t, 1024)
	s := addOpenSession(m, "client", 1)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic adding a duplicate name")
		}
	}()
	m.AddSession(s)
}

func TestSetStateMovesByStateAndBumpsSeq(t *testing.T) {
	m := newTestMap(t, 1024)
	s := addOpenSession(m, "client", 1)

	if got := len(m.ByState(StateOpen)); got != 1 {
		t.Fatalf("ByState(Open) len = %d, want 1", got)
	}

	seq := m.SetState(s, StateClosing)
	if seq != 1 {
		t.Fatalf("StateSeq after transition = %d, want 1", seq)
	}
	if len(m.ByState(StateOpen)) != 0 || len(m.ByState(StateClosing)) != 1 {
		t.Fatalf("by_state not moved: open=%d closing=%d", len(m.ByState(StateOpen)), len(m.ByState(StateClosing)))
	}

	// No-op transition leaves state_seq untouched.
	seq2 := m.SetState(s, StateClosing)
	if seq2 != seq {
		t.Fatalf("no-op SetState bumped seq: %d -> %d", seq, seq2)
	}
}

func TestUnlinkByStateSwapWithLast(t *testing.T) {
	m := newTestMap(t, 1024)
	s1 := addOpenSession(m, "client", 1)
	s2 := addOpenSession(m, "client", 2)
	s3 := addOpenSession(m, "client", 3)

	m.SetState(s1, StateClosing) // unlinks the first of three, swap-with-last

	list := m.ByState(StateOpen)
	if len(list) != 2 {
		t.Fatalf("ByState(Open) len = %d, want 2", len(list))
	}
	for _, s := range list {
		if s == s1 {
			t.Fatal("removed session still linked")
		}
	}
	// s3 (formerly last) should have taken s1's old slot with a correct index.
	found := false
	for i, s := range list {
		if s == s3 {
			found = true
			if s.byStateIndex != i {
				t.Fatalf("byStateIndex stale: %d != %d", s.byStateIndex, i)
			}
		}
	}
	if !found {
		t.Fatal("s3 missing from by_state after swap-removal")
	}
	_ = s2
}

func TestRemoveSessionMaintainsDirtyNullDisjointness(t *testing.T) {
	m := newTestMap(t, 1024)
	s := addOpenSession(m, "client", 1)
	m.MarkDirty(s)

	if _, dirty := m.dirtySessions[s.Info.Inst.Name]; !dirty {
		t.Fatal("expected session to be dirty before removal")
	}

	m.RemoveSession(s)

	name := s.Info.Inst.Name
	_, dirty := m.dirtySessions[name]
	_, null := m.nullSessions[name]
	if dirty {
		t.Fatal("I5 violated: name still in dirty_sessions after removal")
	}
	if !null {
		t.Fatal("expected name moved into null_sessions")
	}
	if _, exists := m.store.Get(name); exists {
		t.Fatal("session still present in index after RemoveSession")
	}
}

func TestAddSessionClearsNullWithoutMarkingDirty(t *testing.T) {
	// Remove then recreate the same name before anything marks the new
	// session dirty: AddSession alone must clear the leftover null entry,
	// and the recreated name must sit in neither set until something
	// actually calls MarkDirty on it.
	m := newTestMap(t, 1024)
	s := addOpenSession(m, "client", 1)
	name := s.Info.Inst.Name

	m.RemoveSession(s)
	if _, null := m.nullSessions[name]; !null {
		t.Fatal("expected name in null_sessions after removal")
	}

	s2 := NewSession(EntityInst{Name: name, Addr: "10.0.0.2:0"})
	m.AddSession(s2)

	if _, null := m.nullSessions[name]; null {
		t.Fatal("I5 violated: name still in null_sessions immediately after add")
	}
	if _, dirty := m.dirtySessions[name]; dirty {
		t.Fatal("recreated name must not be dirty before anything marks it so")
	}
}

func TestRemoveThenRecreateLeavesNameDirtyNotNull(t *testing.T) {
	// Remove then recreate the same name, then mark the recreated session
	// dirty before the next save: the name must end up dirty, not null.
	m := newTestMap(t, 1024)
	s := addOpenSession(m, "client", 1)
	name := s.Info.Inst.Name

	m.RemoveSession(s)

	s2 := NewSession(EntityInst{Name: name, Addr: "10.0.0.2:0"})
	m.AddSession(s2)
	m.SetState(s2, StateOpen)
	m.MarkDirty(s2)

	if _, null := m.nullSessions[name]; null {
		t.Fatal("I3/I5 violated: name still in null_sessions after being recreated and marked dirty")
	}
	if _, dirty := m.dirtySessions[name]; !dirty {
		t.Fatal("expected recreated name to be dirty")
	}
}

func TestMarkDirtyBumpsVersionAndPopsProjectedQueue(t *testing.T) {
	m := newTestMap(t, 1024)
	s := addOpenSession(m, "client", 1)

	v1 := m.MarkProjected(s)
	v2 := m.MarkProjected(s)
	if len(s.ProjectedPVQueue) != 2 {
		t.Fatalf("ProjectedPVQueue = %v, want 2 entries", s.ProjectedPVQueue)
	}

	before := m.Version()
	m.MarkDirty(s)
	if m.Version() != before+1 {
		t.Fatalf("Version after MarkDirty = %d, want %d", m.Version(), before+1)
	}
	if len(s.ProjectedPVQueue) != 1 || s.ProjectedPVQueue[0] != v2 {
		t.Fatalf("ProjectedPVQueue after pop = %v, want [%d]", s.ProjectedPVQueue, v2)
	}
	_ = v1
}

func TestMarkDirtyPreemptiveFlushAtThreshold(t *testing.T) {
	m := newTestMap(t, 2) // KeysPerOp = 2
	s1 := addOpenSession(m, "client", 1)
	s2 := addOpenSession(m, "client", 2)
	s3 := addOpenSession(m, "client", 3)

	m.MarkDirty(s1)
	m.MarkDirty(s2)
	if len(m.dirtySessions) != 2 {
		t.Fatalf("dirtySessions = %d, want 2", len(m.dirtySessions))
	}

	// Third insert crosses the K=2 threshold: markDirtyInternal should
	// trigger a preemptive save of the current two-entry batch *before*
	// inserting s3, so s3 is not part of the preempted save's snapshot.
	m.MarkDirty(s3)
	if !m.saveInFlight {
		t.Fatal("expected preemptive save to be in flight")
	}
	if _, ok := m.dirtySessions[s3.Info.Inst.Name]; !ok {
		t.Fatal("expected s3 to remain dirty after the preemptive flush snapshot")
	}
}

func TestWipeAdvancesVersionFromProjected(t *testing.T) {
	m := newTestMap(t, 1024)
	s := addOpenSession(m, "client", 1)
	_ = s
	m.MarkProjected(s)
	projectedBefore := m.Projected()

	m.Wipe()

	if m.Projected() != projectedBefore+1 {
		t.Fatalf("Projected after Wipe = %d, want %d", m.Projected(), projectedBefore+1)
	}
	if m.Version() != m.Projected() {
		t.Fatalf("Version after Wipe = %d, want == Projected %d", m.Version(), m.Projected())
	}
	if len(m.store.Sessions()) != 0 {
		t.Fatal("expected Wipe to remove all sessions")
	}
	if len(m.ByState(StateOpen)) != 0 {
		t.Fatal("expected by_state to be cleared by Wipe")
	}
}

func TestWipeInoPreallocAdvancesVersionFirst(t *testing.T) {
	m := newTestMap(t, 1024)
	s := addOpenSession(m, "client", 1)
	s.Info.PreallocInos[10] = struct{}{}
	s.PendingPreallocInos[11] = struct{}{}
	versionBefore := m.Version()

	m.WipeInoPrealloc()

	if m.Version() != versionBefore+1 {
		t.Fatalf("Version after WipeInoPrealloc = %d, want %d", m.Version(), versionBefore+1)
	}
	if m.Projected() != m.Version() {
		t.Fatalf("Projected after WipeInoPrealloc = %d, want == Version %d", m.Projected(), m.Version())
	}
	if len(s.Info.PreallocInos) != 0 || len(s.PendingPreallocInos) != 0 {
		t.Fatal("expected inode prealloc fields cleared")
	}
}

func TestComputeStatsReflectsCounters(t *testing.T) {
	m := newTestMap(t, 1024)
	addOpenSession(m, "client", 1)
	addOpenSession(m, "client", 2)

	stats := m.ComputeStats()
	if stats.CountsByState[StateOpen] != 2 {
		t.Fatalf("CountsByState[Open] = %d, want 2", stats.CountsByState[StateOpen])
	}
	if stats.Rank != 3 {
		t.Fatalf("Rank = %d, want 3", stats.Rank)
	}
}

func TestVersionLineageOrdering(t *testing.T) {
	// I4: committed <= committing <= version <= projected must hold after
	// any sequence of MarkProjected/MarkDirty calls, prior to any save.
	m := newTestMap(t, 1024)
	s := addOpenSession(m, "client", 1)

	m.MarkProjected(s)
	m.MarkDirty(s)
	m.MarkProjected(s)
	m.MarkProjected(s)

	if !(m.Committed() <= m.Committing() && m.Committing() <= m.Version() && m.Version() <= m.Projected()) {
		t.Fatalf("version lineage ordering violated: committed=%d committing=%d version=%d projected=%d",
			m.Committed(), m.Committing(), m.Version(), m.Projected())
	}
}
