package sessionmap

import (
	"errors"
	"testing"
	"time"

	"github.com/marmos91/mdsessiond/pkg/objectstore/finisher"
	"github.com/marmos91/mdsessiond/pkg/objectstore/memory"
	"github.com/marmos91/mdsessiond/pkg/sessionmap/smerrors"
)

func loadEmpty(t *testing.T, m *SessionMap) {
	t.Helper()
	done := make(chan struct{})
	m.Load(func() { close(done) })
	waitOnChan(t, done)
	if m.LoadErr() != nil {
		t.Fatalf("Load: %v", m.LoadErr())
	}
}

func TestSaveCommitsDirtySessionAndAdvancesCommitted(t *testing.T) {
	store := memory.New()
	f := finisher.New(0)
	t.Cleanup(func() { f.Close(0) })
	m := NewSessionMap(4, "mds4_sessionmap", store, f, 1024, nil)
	loadEmpty(t, m)

	s := addOpenSession(m, "client", 1)
	m.MarkDirty(s)

	done := make(chan struct{})
	m.Save(func() { close(done) }, m.Version())
	waitOnChan(t, done)

	if m.Committed() != m.Version() {
		t.Fatalf("Committed() = %d, want == Version() %d", m.Committed(), m.Version())
	}

	_, omap, ok := store.Snapshot("mds4_sessionmap")
	if !ok {
		t.Fatal("expected object to exist after save")
	}
	if _, ok := omap[s.Info.Inst.Name.String()]; !ok {
		t.Fatal("expected session key present in persisted omap")
	}
}

func TestSaveSkipsNonPersistableStates(t *testing.T) {
	store := memory.New()
	f := finisher.New(0)
	t.Cleanup(func() { f.Close(0) })
	m := NewSessionMap(4, "mds4_sessionmap", store, f, 1024, nil)
	loadEmpty(t, m)

	s := NewSession(EntityInst{Name: EntityName{Kind: "client", ID: 1}, Addr: "10.0.0.1:0"})
	m.AddSession(s) // left in StateOpening, never transitioned to Open
	m.MarkDirty(s)

	done := make(chan struct{})
	m.Save(func() { close(done) }, m.Version())
	waitOnChan(t, done)

	_, omap, _ := store.Snapshot("mds4_sessionmap")
	if _, ok := omap[s.Info.Inst.Name.String()]; ok {
		t.Fatal("Opening-state session must not be written to the omap")
	}
}

func TestSaveCollapsesOntoInFlightCommit(t *testing.T) {
	store := memory.New()
	f := finisher.New(0)
	t.Cleanup(func() { f.Close(0) })
	m := NewSessionMap(4, "mds4_sessionmap", store, f, 1024, nil)
	loadEmpty(t, m)

	s := addOpenSession(m, "client", 1)
	m.MarkDirty(s)

	first := make(chan struct{})
	// Kick off the in-flight save synchronously (startSave runs inline up to
	// the goroutine dispatch), so committing is bumped before the second
	// Save call below observes it.
	m.Save(func() { close(first) }, m.Version())
	if !m.saveInFlight {
		t.Fatal("expected a save to be in flight")
	}
	committingDuringFlight := m.Committing()

	second := make(chan struct{})
	// needv <= committing: must collapse onto the in-flight commit rather
	// than starting a second compound operation.
	m.Save(func() { close(second) }, committingDuringFlight)

	waitOnChan(t, first)
	waitOnChan(t, second)

	if m.Committed() != committingDuringFlight {
		t.Fatalf("Committed() = %d, want %d", m.Committed(), committingDuringFlight)
	}
}

func TestSaveZeroNeedvCommitsWhateverIsDirty(t *testing.T) {
	store := memory.New()
	f := finisher.New(0)
	t.Cleanup(func() { f.Close(0) })
	m := NewSessionMap(4, "mds4_sessionmap", store, f, 1024, nil)
	loadEmpty(t, m)

	s := addOpenSession(m, "client", 1)
	m.MarkDirty(s)

	done := make(chan struct{})
	m.Save(func() { close(done) }, 0)
	waitOnChan(t, done)

	if m.Committed() == 0 {
		t.Fatal("expected a commit to have happened")
	}
}

func TestSaveAlreadyCommittedNeedvQueuesImmediately(t *testing.T) {
	store := memory.New()
	f := finisher.New(0)
	t.Cleanup(func() { f.Close(0) })
	m := NewSessionMap(4, "mds4_sessionmap", store, f, 1024, nil)
	loadEmpty(t, m)

	s := addOpenSession(m, "client", 1)
	m.MarkDirty(s)
	firstDone := make(chan struct{})
	m.Save(func() { close(firstDone) }, m.Version())
	waitOnChan(t, firstDone)

	alreadyCommitted := m.Committed()

	secondDone := make(chan struct{})
	m.Save(func() { close(secondDone) }, alreadyCommitted)
	waitOnChan(t, secondDone)
}

func TestSaveLegacyUpgradeTruncatesBodyAndWritesOmap(t *testing.T) {
	store := memory.New()
	f := finisher.New(0)
	t.Cleanup(func() { f.Close(0) })

	legacySeed := NewSessionMapStore()
	legacySeed.GenerateTestInstances(2)
	frameBody := putUint64(nil, 9)
	for _, s := range legacySeed.Sessions() {
		frameBody = append(frameBody, encodeLegacySessionInfoBody(s.Info)...)
	}
	sentinelBody := putUint64(nil, legacySentinel)
	sentinelBody = append(sentinelBody, encodeFrameHeader(2, 2, len(frameBody))...)
	sentinelBody = append(sentinelBody, frameBody...)
	store.SeedLegacy("mds5_sessionmap", sentinelBody)

	m := NewSessionMap(5, "mds5_sessionmap", store, f, 1024, nil)

	// onLoadComplete starts the migration save itself; rather
	// than poll for it from the test goroutine (which would touch m
	// concurrently with the finisher goroutine that runs completions), ask
	// for our own completion to be queued once the needed version has
	// committed. Since SessionMap has no internal locking, this explicit
	// Save call is itself issued from inside a finisher-queued closure so it
	// only ever runs serialized with onLoadComplete/onSaveComplete.
	migrated := make(chan struct{})
	loadDone := make(chan struct{})
	m.Load(func() {
		close(loadDone)
		f.Queue(func() {
			m.Save(func() { close(migrated) }, m.Version())
		})
	})
	waitOnChan(t, loadDone)
	waitOnChan(t, migrated)

	if store.BodyLen("mds5_sessionmap") != 0 {
		t.Fatal("expected legacy body to be truncated after the migration save")
	}
	_, omap, ok := store.Snapshot("mds5_sessionmap")
	if !ok || len(omap) != 2 {
		t.Fatalf("expected 2 omap entries after migration save, got %d (ok=%v)", len(omap), ok)
	}
}

func TestSaveIOFailureEscalatesFatalAndDoesNotReleaseCommitWaiter(t *testing.T) {
	f := finisher.New(0)
	t.Cleanup(func() { f.Close(0) })
	store := &errObjecter{mutateErr: errors.New("write failed")}
	m := NewSessionMap(4, "mds4_sessionmap", store, f, 1024, nil)
	loadEmpty(t, m)

	s := addOpenSession(m, "client", 1)
	m.MarkDirty(s)

	var fatalErr error
	fatalCalled := make(chan struct{})
	m.SetFatalHandler(func(err error) {
		fatalErr = err
		close(fatalCalled)
	})

	commitCalled := make(chan struct{})
	m.Save(func() { close(commitCalled) }, m.Version())
	waitOnChan(t, fatalCalled)

	if !smerrors.IsIOFatal(fatalErr) {
		t.Fatalf("fatal handler err = %v, want IOFatal", fatalErr)
	}

	select {
	case <-commitCalled:
		t.Fatal("commit waiter must not run after a fatal save failure")
	case <-time.After(100 * time.Millisecond):
	}
}
