package badger_test

import (
	"testing"

	"github.com/marmos91/mdsessiond/pkg/objectstore"
	badgerstore "github.com/marmos91/mdsessiond/pkg/objectstore/badger"
	"github.com/marmos91/mdsessiond/pkg/objectstore/storetest"
)

func TestConformance(t *testing.T) {
	storetest.RunConformanceSuite(t, func(t *testing.T) objectstore.Objecter {
		store, err := badgerstore.Open(t.TempDir())
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}
