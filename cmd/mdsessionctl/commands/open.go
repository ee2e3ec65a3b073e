package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/mdsessiond/internal/config"
	"github.com/marmos91/mdsessiond/pkg/objectstore/finisher"
	"github.com/marmos91/mdsessiond/pkg/sessionmap"
)

// loadTimeout bounds how long a CLI invocation waits for Load to complete
// against the configured backend before giving up.
const loadTimeout = 30 * time.Second

// openAndLoad loads cfg, builds the object-store backend it selects, and
// synchronously loads a SessionMap for cfg.Rank from it. The returned
// finisher must be closed by the caller once done with the map.
func openAndLoad(ctx context.Context) (*sessionmap.SessionMap, *finisher.SerialFinisher, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	store, err := config.BuildObjectStore(ctx, cfg.ObjectStore)
	if err != nil {
		return nil, nil, fmt.Errorf("opening object store: %w", err)
	}

	f := finisher.New(0)

	m := sessionmap.NewSessionMap(cfg.Rank, cfg.SessionMap.Object, store, f, cfg.SessionMap.KeysPerOp, nil)

	done := make(chan struct{})
	m.Load(func() { close(done) })

	select {
	case <-done:
	case <-time.After(loadTimeout):
		f.Close(0)
		return nil, nil, fmt.Errorf("timed out loading object %q", cfg.SessionMap.Object)
	}

	if m.LoadErr() != nil {
		f.Close(0)
		return nil, nil, fmt.Errorf("loading %q: %w", cfg.SessionMap.Object, m.LoadErr())
	}

	return m, f, nil
}
