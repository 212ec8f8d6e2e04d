package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// incrRetries bounds commit-conflict retries on concurrent increments.
const incrRetries = 8

// BadgerStore is a Store backed by BadgerDB, for deployments that need the
// cache and counters to survive restarts without an external cache tier.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) a Badger database at path.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// NewBadgerStoreInMemory opens an in-memory Badger database. Used for
// tests and ephemeral deployments.
func NewBadgerStoreInMemory() (*BadgerStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory badger store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		value = string(raw)
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("badger get: %w", err)
	}
	return value, true, nil
}

func (s *BadgerStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), []byte(value))
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("badger set: %w", err)
	}
	return nil
}

func (s *BadgerStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var count int64
	var err error
	for attempt := 0; attempt < incrRetries; attempt++ {
		count, err = s.incrOnce(key, ttl)
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}
	if err != nil {
		return 0, fmt.Errorf("badger incr: %w", err)
	}
	return count, nil
}

// incrOnce runs a single read-modify-write transaction. Badger detects
// write conflicts at commit, which gives the atomic-increment guarantee;
// the caller retries on conflict.
func (s *BadgerStore) incrOnce(key string, ttl time.Duration) (int64, error) {
	var count int64
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			count = 1
			entry := badger.NewEntry([]byte(key), []byte("1"))
			if ttl > 0 {
				entry = entry.WithTTL(ttl)
			}
			return txn.SetEntry(entry)
		}
		if err != nil {
			return err
		}

		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		prev, parseErr := strconv.ParseInt(string(raw), 10, 64)
		if parseErr != nil {
			prev = 0
		}
		count = prev + 1

		entry := badger.NewEntry([]byte(key), []byte(strconv.FormatInt(count, 10)))
		// Preserve the original expiry across increments.
		if exp := item.ExpiresAt(); exp > 0 {
			remaining := time.Until(time.Unix(int64(exp), 0))
			if remaining > 0 {
				entry = entry.WithTTL(remaining)
			}
		}
		return txn.SetEntry(entry)
	})
	return count, err
}

func (s *BadgerStore) Delete(ctx context.Context, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("badger delete: %w", err)
	}
	return nil
}

// Close releases the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
