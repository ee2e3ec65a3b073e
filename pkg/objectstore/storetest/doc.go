// Package storetest provides a conformance test suite for objectstore.Objecter
// implementations, mirroring dittofs/pkg/metadata/storetest: every backend
// (memory, badger, s3) should pass the same behavioral contract so
// pkg/sessionmap's load/save state machines see identical semantics
// regardless of which backend is wired in.
//
// Usage:
//
//	func TestConformance(t *testing.T) {
//	    storetest.RunConformanceSuite(t, func(t *testing.T) objectstore.Objecter {
//	        return memory.New()
//	    })
//	}
package storetest
