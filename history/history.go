// Package history persists completed voice commands so the UI can show a
// recent-commands list across restarts. Records expire on their own; the
// store is a convenience cache, not a system of record.
package history

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/cadence-app/cadence/internal/types"
)

const keyPrefix = "cmd:"

// Store is a TTL-bound command history backed by an embedded key-value
// database. Keys sort newest-first so listing never scans expired tails.
type Store struct {
	db  *badger.DB
	ttl time.Duration
}

// Open opens (or creates) the history database at dir. Records older than
// ttl disappear automatically.
func Open(dir string, ttl time.Duration) (*Store, error) {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}

	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	return &Store{db: db, ttl: ttl}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add stores one completed command.
func (s *Store) Add(rec types.CommandRecord) error {
	if rec.CreatedAt == 0 {
		rec.CreatedAt = time.Now().UnixMilli()
	}

	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key(rec), value).WithTTL(s.ttl)
		return txn.SetEntry(entry)
	})
}

// List returns up to limit records, newest first.
func (s *Store) List(limit int) ([]types.CommandRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	var out []types.CommandRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid() && len(out) < limit; it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var rec types.CommandRecord
				if err := json.Unmarshal(val, &rec); err != nil {
					// A corrupt record should not hide the rest.
					return nil
				}
				out = append(out, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return out, nil
}

// key encodes the creation time inverted so lexicographic order is
// newest-first.
func key(rec types.CommandRecord) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", keyPrefix, math.MaxInt64-rec.CreatedAt, rec.ID))
}
