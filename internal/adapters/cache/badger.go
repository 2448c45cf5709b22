package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/okian/earnsignal/pkg/metrics"
)

// BadgerDB is an embedded key-value database shared by badger-backed stores.
type BadgerDB struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a badger database at path.
func OpenBadger(path string) (*BadgerDB, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	return &BadgerDB{db: db}, nil
}

// Close closes the database.
func (b *BadgerDB) Close() error { return b.db.Close() }

// BadgerStore is a namespace view over a BadgerDB. Keys are stored as
// "<namespace>/<key>". Closing a view does not close the database.
type BadgerStore struct {
	db     *badger.DB
	prefix []byte
	opts   options
}

// Store returns a namespaced store on the database.
func (b *BadgerDB) Store(opts ...Option) *BadgerStore {
	o := buildOptions(opts)
	return &BadgerStore{db: b.db, prefix: []byte(o.namespace + "/"), opts: o}
}

func (s *BadgerStore) key(k string) []byte {
	out := make([]byte, 0, len(s.prefix)+len(k))
	out = append(out, s.prefix...)
	return append(out, k...)
}

// Get reads the entry for key.
func (s *BadgerStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		metrics.RecordCacheLookup(s.opts.namespace, false)
		return nil, false, nil
	case errors.Is(err, badger.ErrDBClosed):
		return nil, false, ErrCacheClosed
	case err != nil:
		return nil, false, fmt.Errorf("badger get: %w", err)
	}
	metrics.RecordCacheLookup(s.opts.namespace, true)
	return value, true, nil
}

// Put stores value under key.
func (s *BadgerStore) Put(_ context.Context, key string, value []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key(key), value)
	})
	if errors.Is(err, badger.ErrDBClosed) {
		return ErrCacheClosed
	}
	if err != nil {
		return fmt.Errorf("badger put: %w", err)
	}
	metrics.RecordCacheWrite(s.opts.namespace)
	return nil
}

// Close is a no-op; the owning BadgerDB is closed separately.
func (s *BadgerStore) Close() error { return nil }
