package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const maxIncrRetries = 16

// BadgerStore is an embedded alternative to RedisStore for single-node
// deployments. Expiry uses badger's per-entry TTL.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens a store at path, or an in-memory one when path is empty.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (b *BadgerStore) Close() error {
	return b.db.Close()
}

// Incr keeps the expiry set by the first increment; later increments in the
// same window rewrite the value with the original ExpiresAt.
func (b *BadgerStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	var count int64
	for attempt := 0; attempt < maxIncrRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		err := b.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get([]byte(key))
			if errors.Is(err, badger.ErrKeyNotFound) {
				count = 1
				return txn.SetEntry(badger.NewEntry([]byte(key), []byte("1")).WithTTL(window))
			}
			if err != nil {
				return err
			}
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			current, err := strconv.ParseInt(string(raw), 10, 64)
			if err != nil {
				return fmt.Errorf("counter %q is not an integer: %w", key, err)
			}
			count = current + 1
			entry := badger.NewEntry([]byte(key), []byte(strconv.FormatInt(count, 10)))
			entry.ExpiresAt = item.ExpiresAt()
			return txn.SetEntry(entry)
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		return count, err
	}
	return 0, fmt.Errorf("incrementing %q: %w", key, badger.ErrConflict)
}

func (b *BadgerStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (b *BadgerStore) SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(key), value).WithTTL(ttl))
	})
}
