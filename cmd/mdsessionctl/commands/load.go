package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/mdsessiond/internal/config"
	"github.com/marmos91/mdsessiond/pkg/objectstore/finisher"
	"github.com/marmos91/mdsessiond/pkg/sessionmap"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load a rank's Session Map and force its dirty set to commit",
	Long: `Load the configured rank's Session Map from its object store. A legacy
on-disk object is upgraded automatically on load: every session is marked
dirty and a migration save is scheduled. This command waits for that save
(or, for an already-modern object with nothing dirty, a no-op save) to
commit, then reports the resulting committed version.`,
	RunE: runLoadForce,
}

func runLoadForce(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	store, err := config.BuildObjectStore(ctx, cfg.ObjectStore)
	if err != nil {
		return fmt.Errorf("opening object store: %w", err)
	}

	f := finisher.New(0)
	defer f.Close(0)

	m := sessionmap.NewSessionMap(cfg.Rank, cfg.SessionMap.Object, store, f, cfg.SessionMap.KeysPerOp, nil)

	type outcome struct {
		wasLegacy bool
		committed uint64
		err       error
	}
	results := make(chan outcome, 1)

	m.Load(func() {
		if loadErr := m.LoadErr(); loadErr != nil {
			results <- outcome{err: loadErr}
			return
		}
		wasLegacy := m.LoadedLegacy()
		needv := m.Version()
		// Queue the forced commit rather than calling m.Save directly:
		// onLoadComplete may already have an internal migration save in
		// flight for a legacy object, and SessionMap has no internal
		// locking, so every call must stay serialized on the finisher
		// goroutine rather than run from this callback's caller.
		f.Queue(func() {
			m.Save(func() {
				results <- outcome{wasLegacy: wasLegacy, committed: m.Committed()}
			}, needv)
		})
	})

	select {
	case r := <-results:
		if r.err != nil {
			return r.err
		}
		if r.wasLegacy {
			cmd.Printf("legacy object upgraded; committed version %d\n", r.committed)
		} else {
			cmd.Printf("already current; committed version %d\n", r.committed)
		}
		return nil
	case <-time.After(loadTimeout):
		return fmt.Errorf("timed out loading object %q", cfg.SessionMap.Object)
	}
}
