package memory_test

import (
	"testing"

	"github.com/marmos91/mdsessiond/pkg/objectstore"
	"github.com/marmos91/mdsessiond/pkg/objectstore/memory"
	"github.com/marmos91/mdsessiond/pkg/objectstore/storetest"
)

func TestConformance(t *testing.T) {
	storetest.RunConformanceSuite(t, func(t *testing.T) objectstore.Objecter {
		return memory.New()
	})
}

func TestSeedLegacyAndBodyLen(t *testing.T) {
	store := memory.New()
	ctx := t.Context()

	store.SeedLegacy("mds0_sessionmap", []byte("legacy-bytes"))
	if n := store.BodyLen("mds0_sessionmap"); n != len("legacy-bytes") {
		t.Fatalf("BodyLen = %d, want %d", n, len("legacy-bytes"))
	}

	body, err := store.ReadFull(ctx, "mds0_sessionmap")
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "legacy-bytes" {
		t.Fatalf("ReadFull = %q", body)
	}

	if err := store.Mutate(ctx, objectstore.CompoundOp{OID: "mds0_sessionmap", Header: []byte("h"), TruncateBody: true}); err != nil {
		t.Fatal(err)
	}
	if n := store.BodyLen("mds0_sessionmap"); n != 0 {
		t.Fatalf("BodyLen after truncate = %d, want 0", n)
	}
}
