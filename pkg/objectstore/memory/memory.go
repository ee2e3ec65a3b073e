// Package memory implements objectstore.Objecter entirely in process
// memory, grounded on dittofs's pkg/metadata/store/memory (a mutex-guarded
// map standing in for a real backend, used so conformance tests don't need
// a live object store). It is the backend pkg/sessionmap's own tests run
// against, and pkg/objectstore/storetest runs against it alongside badger.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/marmos91/mdsessiond/pkg/objectstore"
)

// object is the per-oid state an Objecter backend tracks: a header, a
// legacy body, and an OMAP keyspace.
type object struct {
	header []byte
	body   []byte
	omap   map[string][]byte
}

// Store is an in-memory objectstore.Objecter. The zero value is not usable;
// construct with New.
type Store struct {
	mu      sync.Mutex
	objects map[string]*object
}

// New returns an empty in-memory object store.
func New() *Store {
	return &Store{objects: make(map[string]*object)}
}

func (s *Store) getOrCreate(oid string) *object {
	o, ok := s.objects[oid]
	if !ok {
		o = &object{omap: make(map[string][]byte)}
		s.objects[oid] = o
	}
	return o
}

// OmapGetHeader implements objectstore.Objecter.
func (s *Store) OmapGetHeader(ctx context.Context, oid string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.objects[oid]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(o.header))
	copy(out, o.header)
	return out, nil
}

// OmapGetVals implements objectstore.Objecter: an ordered, paged read of
// the keyspace strictly after startAfter.
func (s *Store) OmapGetVals(ctx context.Context, oid string, startAfter string, maxReturn int) ([]objectstore.KeyValue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.objects[oid]
	if !ok {
		return nil, nil
	}

	keys := make([]string, 0, len(o.omap))
	for k := range o.omap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []objectstore.KeyValue
	for _, k := range keys {
		if k <= startAfter {
			continue
		}
		v := make([]byte, len(o.omap[k]))
		copy(v, o.omap[k])
		out = append(out, objectstore.KeyValue{Key: k, Value: v})
		if len(out) == maxReturn {
			break
		}
	}
	return out, nil
}

// ReadFull implements objectstore.Objecter: the legacy whole-object byte
// payload.
func (s *Store) ReadFull(ctx context.Context, oid string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.objects[oid]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(o.body))
	copy(out, o.body)
	return out, nil
}

// Mutate implements objectstore.Objecter: applies op atomically under the
// store mutex.
func (s *Store) Mutate(ctx context.Context, op objectstore.CompoundOp) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	o := s.getOrCreate(op.OID)

	o.header = append([]byte(nil), op.Header...)

	if op.TruncateBody {
		o.body = nil
	}

	for k, v := range op.SetValues {
		o.omap[k] = append([]byte(nil), v...)
	}
	for _, k := range op.RemoveKeys {
		delete(o.omap, k)
	}

	return nil
}

// Snapshot returns a deep copy of oid's current OMAP keys/values (as an
// unordered map) and header, for assertions in tests. Returns ok=false if
// oid has never been created by Mutate or SeedLegacy.
func (s *Store) Snapshot(oid string) (header []byte, omap map[string][]byte, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, exists := s.objects[oid]
	if !exists {
		return nil, nil, false
	}
	h := append([]byte(nil), o.header...)
	m := make(map[string][]byte, len(o.omap))
	for k, v := range o.omap {
		m[k] = append([]byte(nil), v...)
	}
	return h, m, true
}

// SeedLegacy installs a raw legacy byte payload for oid, for tests
// exercising the legacy load path. Any existing header/omap for oid is
// left untouched; a legacy object has an empty header by construction.
func (s *Store) SeedLegacy(oid string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.getOrCreate(oid)
	o.body = append([]byte(nil), body...)
}

// BodyLen reports the length of oid's legacy body region, for asserting
// that a migration save leaves it empty.
func (s *Store) BodyLen(oid string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[oid]
	if !ok {
		return 0
	}
	return len(o.body)
}
