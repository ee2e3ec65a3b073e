// Package badger implements objectstore.Objecter on top of an embedded
// dgraph-io/badger/v4 database: the default object-store backend for
// mdsessiond. It maps each object's (header, legacy body, OMAP) layout onto
// a namespaced keyspace inside one database, grounded on
// dittofs/pkg/metadata/store/badger's prefixed-key design (encoding.go) and
// its transaction/iterator idioms (transaction.go, clients.go).
package badger

import (
	"context"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/mdsessiond/internal/logger"
	"github.com/marmos91/mdsessiond/pkg/objectstore"
)

// Key namespace, following dittofs/pkg/metadata/store/badger's
// prefix-per-data-type convention:
//
//	Data type     Prefix   Key format              Value
//	Header        "h:"     h:<oid>                 header bytes
//	Legacy body   "b:"     b:<oid>                 legacy payload bytes
//	OMAP entry    "o:"     o:<oid>:<key>            SessionInfo.Encode()
const (
	prefixHeader = "h:"
	prefixBody   = "b:"
	prefixOmap   = "o:"
)

func keyHeader(oid string) []byte { return []byte(prefixHeader + oid) }
func keyBody(oid string) []byte   { return []byte(prefixBody + oid) }

func keyOmapPrefix(oid string) []byte { return []byte(prefixOmap + oid + ":") }
func keyOmap(oid, k string) []byte    { return []byte(prefixOmap + oid + ":" + k) }

// omapKeyToUserKey strips the "o:<oid>:" prefix off a raw badger key,
// recovering the OMAP key the caller passed to omap_set/omap_get_vals.
func omapKeyToUserKey(raw []byte, prefix []byte) string {
	return string(raw[len(prefix):])
}

// Store is a badger-backed objectstore.Objecter. Construct with Open.
type Store struct {
	db *badgerdb.DB
}

// Open opens (creating if absent) a badger database at path and returns a
// Store backed by it. Badger's own internal logging is silenced in favor of
// the package logger, following dittofs's preference for its own
// structured logger over a dependency's built-in one.
func Open(path string) (*Store, error) {
	opts := badgerdb.DefaultOptions(path).WithLogger(nil)
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("objectstore/badger: open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// OmapGetHeader implements objectstore.Objecter.
func (s *Store) OmapGetHeader(ctx context.Context, oid string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyHeader(oid))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore/badger: get header %s: %w", oid, err)
	}
	return out, nil
}

// OmapGetVals implements objectstore.Objecter: an ordered, prefix-scoped
// range read using badger's iterator, seeking just past startAfter so the
// caller's exclusive-start paging convention holds.
func (s *Store) OmapGetVals(ctx context.Context, oid string, startAfter string, maxReturn int) ([]objectstore.KeyValue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if maxReturn <= 0 {
		maxReturn = 1
	}

	prefix := keyOmapPrefix(oid)
	seekKey := prefix
	if startAfter != "" {
		seekKey = keyOmap(oid, startAfter)
	}

	var out []objectstore.KeyValue
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(seekKey); it.ValidForPrefix(prefix) && len(out) < maxReturn; it.Next() {
			item := it.Item()
			userKey := omapKeyToUserKey(item.KeyCopy(nil), prefix)
			if startAfter != "" && userKey <= startAfter {
				continue
			}
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			out = append(out, objectstore.KeyValue{Key: userKey, Value: val})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore/badger: get vals %s: %w", oid, err)
	}
	return out, nil
}

// ReadFull implements objectstore.Objecter: the legacy whole-object byte
// payload.
func (s *Store) ReadFull(ctx context.Context, oid string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyBody(oid))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore/badger: read full %s: %w", oid, err)
	}
	return out, nil
}

// Mutate implements objectstore.Objecter: applies op as one badger
// transaction, giving the Session Map's compound operation the atomicity
// it requires.
func (s *Store) Mutate(ctx context.Context, op objectstore.CompoundOp) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badgerdb.Txn) error {
		if err := txn.Set(keyHeader(op.OID), op.Header); err != nil {
			return err
		}

		if op.TruncateBody {
			if err := txn.Delete(keyBody(op.OID)); err != nil && err != badgerdb.ErrKeyNotFound {
				return err
			}
		}

		for k, v := range op.SetValues {
			if err := txn.Set(keyOmap(op.OID, k), v); err != nil {
				return err
			}
		}
		for _, k := range op.RemoveKeys {
			if err := txn.Delete(keyOmap(op.OID, k)); err != nil && err != badgerdb.ErrKeyNotFound {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.Error("objectstore/badger: mutate failed", logger.KeyObject, op.OID, logger.Err(err))
		return fmt.Errorf("objectstore/badger: mutate %s: %w", op.OID, err)
	}
	return nil
}
