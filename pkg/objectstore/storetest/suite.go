package storetest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/mdsessiond/pkg/objectstore"
)

// Factory creates a fresh Objecter instance for each test. Implementations
// needing a filesystem path should use t.TempDir(); implementations needing
// teardown should register it with t.Cleanup().
type Factory func(t *testing.T) objectstore.Objecter

// RunConformanceSuite runs the full Objecter conformance suite against the
// given factory.
func RunConformanceSuite(t *testing.T, factory Factory) {
	t.Helper()

	t.Run("EmptyObjectReadsAsAbsent", func(t *testing.T) {
		testEmptyObjectReadsAsAbsent(t, factory)
	})
	t.Run("HeaderRoundTrip", func(t *testing.T) {
		testHeaderRoundTrip(t, factory)
	})
	t.Run("OmapSetGetRoundTrip", func(t *testing.T) {
		testOmapSetGetRoundTrip(t, factory)
	})
	t.Run("OmapPagingExclusiveStart", func(t *testing.T) {
		testOmapPagingExclusiveStart(t, factory)
	})
	t.Run("OmapRemoveKeys", func(t *testing.T) {
		testOmapRemoveKeys(t, factory)
	})
	t.Run("TruncateClearsLegacyBody", func(t *testing.T) {
		testTruncateClearsLegacyBody(t, factory)
	})
	t.Run("MutateComposesAllParts", func(t *testing.T) {
		testMutateComposesAllParts(t, factory)
	})
}

func testEmptyObjectReadsAsAbsent(t *testing.T, factory Factory) {
	t.Helper()
	store := factory(t)
	ctx := t.Context()

	header, err := store.OmapGetHeader(ctx, "mds0_sessionmap")
	require.NoError(t, err)
	require.Empty(t, header)

	vals, err := store.OmapGetVals(ctx, "mds0_sessionmap", "", 16)
	require.NoError(t, err)
	require.Empty(t, vals)

	body, err := store.ReadFull(ctx, "mds0_sessionmap")
	require.NoError(t, err)
	require.Empty(t, body)
}

func testHeaderRoundTrip(t *testing.T, factory Factory) {
	t.Helper()
	store := factory(t)
	ctx := t.Context()
	const oid = "mds1_sessionmap"

	require.NoError(t, store.Mutate(ctx, objectstore.CompoundOp{OID: oid, Header: []byte("header-v1")}))

	got, err := store.OmapGetHeader(ctx, oid)
	require.NoError(t, err)
	require.Equal(t, []byte("header-v1"), got)

	require.NoError(t, store.Mutate(ctx, objectstore.CompoundOp{OID: oid, Header: []byte("header-v2")}))
	got, err = store.OmapGetHeader(ctx, oid)
	require.NoError(t, err)
	require.Equal(t, []byte("header-v2"), got)
}

func testOmapSetGetRoundTrip(t *testing.T, factory Factory) {
	t.Helper()
	store := factory(t)
	ctx := t.Context()
	const oid = "mds2_sessionmap"

	require.NoError(t, store.Mutate(ctx, objectstore.CompoundOp{
		OID:    oid,
		Header: []byte("h"),
		SetValues: map[string][]byte{
			"client.1": []byte("info-1"),
			"client.2": []byte("info-2"),
		},
	}))

	vals, err := store.OmapGetVals(ctx, oid, "", 16)
	require.NoError(t, err)
	require.Len(t, vals, 2)
	require.Equal(t, "client.1", vals[0].Key)
	require.Equal(t, []byte("info-1"), vals[0].Value)
	require.Equal(t, "client.2", vals[1].Key)
	require.Equal(t, []byte("info-2"), vals[1].Value)
}

func testOmapPagingExclusiveStart(t *testing.T, factory Factory) {
	t.Helper()
	store := factory(t)
	ctx := t.Context()
	const oid = "mds3_sessionmap"

	setValues := map[string][]byte{}
	for i := 1; i <= 4; i++ {
		setValues["client."+string(rune('0'+i))] = []byte{byte(i)}
	}
	require.NoError(t, store.Mutate(ctx, objectstore.CompoundOp{OID: oid, Header: []byte("h"), SetValues: setValues}))

	first, err := store.OmapGetVals(ctx, oid, "", 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.Equal(t, "client.1", first[0].Key)
	require.Equal(t, "client.2", first[1].Key)

	second, err := store.OmapGetVals(ctx, oid, first[len(first)-1].Key, 2)
	require.NoError(t, err)
	require.Len(t, second, 2)
	require.Equal(t, "client.3", second[0].Key)
	require.Equal(t, "client.4", second[1].Key)

	third, err := store.OmapGetVals(ctx, oid, second[len(second)-1].Key, 2)
	require.NoError(t, err)
	require.Empty(t, third)
}

func testOmapRemoveKeys(t *testing.T, factory Factory) {
	t.Helper()
	store := factory(t)
	ctx := t.Context()
	const oid = "mds4_sessionmap"

	require.NoError(t, store.Mutate(ctx, objectstore.CompoundOp{
		OID:       oid,
		Header:    []byte("h"),
		SetValues: map[string][]byte{"client.1": []byte("a"), "client.2": []byte("b")},
	}))
	require.NoError(t, store.Mutate(ctx, objectstore.CompoundOp{
		OID:        oid,
		Header:     []byte("h"),
		RemoveKeys: []string{"client.1"},
	}))

	vals, err := store.OmapGetVals(ctx, oid, "", 16)
	require.NoError(t, err)
	require.Len(t, vals, 1)
	require.Equal(t, "client.2", vals[0].Key)
}

func testTruncateClearsLegacyBody(t *testing.T, factory Factory) {
	t.Helper()
	store := factory(t)
	ctx := t.Context()
	const oid = "mds5_sessionmap"

	require.NoError(t, store.Mutate(ctx, objectstore.CompoundOp{OID: oid, Header: []byte("legacy-bytes")}))
	// Simulate a legacy body by writing through a backend-specific seed
	// helper is out of scope for the generic suite; backends that support
	// legacy bodies are exercised directly by pkg/sessionmap's own tests.
	// Here we only assert that TruncateBody leaves ReadFull empty even when
	// no legacy body was ever written.
	require.NoError(t, store.Mutate(ctx, objectstore.CompoundOp{OID: oid, Header: []byte("h"), TruncateBody: true}))

	body, err := store.ReadFull(ctx, oid)
	require.NoError(t, err)
	require.Empty(t, body)
}

func testMutateComposesAllParts(t *testing.T, factory Factory) {
	t.Helper()
	store := factory(t)
	ctx := t.Context()
	const oid = "mds6_sessionmap"

	require.NoError(t, store.Mutate(ctx, objectstore.CompoundOp{
		OID:       oid,
		Header:    []byte("v1"),
		SetValues: map[string][]byte{"client.1": []byte("a")},
	}))

	require.NoError(t, store.Mutate(ctx, objectstore.CompoundOp{
		OID:        oid,
		Header:     []byte("v2"),
		SetValues:  map[string][]byte{"client.2": []byte("b")},
		RemoveKeys: []string{"client.1"},
	}))

	header, err := store.OmapGetHeader(ctx, oid)
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), header)

	vals, err := store.OmapGetVals(ctx, oid, "", 16)
	require.NoError(t, err)
	require.Len(t, vals, 1)
	require.Equal(t, "client.2", vals[0].Key)
}
