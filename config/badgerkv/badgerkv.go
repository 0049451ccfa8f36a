// Package badgerkv persists config values in a BadgerDB key/value store.
package badgerkv

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

const prefix = "config/"

// Store implements config.Persister. Each value is stored JSON encoded under
// "config/<key>".
type Store struct {
	db *badger.DB
}

// Open opens or creates the database in the directory path. An empty path
// opens an in-memory database.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerkv: open %q: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Load() (map[string]any, error) {
	ret := map[string]any{}
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			key := strings.TrimPrefix(string(item.Key()), prefix)
			err := item.Value(func(val []byte) error {
				var v any
				if err := json.Unmarshal(val, &v); err != nil {
					return fmt.Errorf("key %q: %w", key, err)
				}
				ret[key] = v
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badgerkv: load: %w", err)
	}
	return ret, nil
}

func (s *Store) Save(values map[string]any) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		for k, v := range values {
			b, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
			if err := txn.Set([]byte(prefix+k), b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("badgerkv: save: %w", err)
	}
	return nil
}

// Delete removes a key.
func (s *Store) Delete(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(prefix + key))
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}
