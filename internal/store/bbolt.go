package store

import (
	"bytes"
	"context"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// bucketKV holds every key written through BoltKV.
var bucketKV = []byte("keyring")

// BoltKV implements KV using bbolt.
type BoltKV struct {
	db *bolt.DB
}

// NewBoltKV opens (or creates) a bbolt database at the given path and ensures
// the bucket exists. The file is created with 0600 permissions.
func NewBoltKV(path string) (*BoltKV, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	if err = db.Update(func(tx *bolt.Tx) error {
		if _, bErr := tx.CreateBucketIfNotExists(bucketKV); bErr != nil {
			return fmt.Errorf("create bucket %s: %w", bucketKV, bErr)
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}

	return &BoltKV{db: db}, nil
}

// Get returns a copy of the value stored under key, or ErrNotFound.
func (s *BoltKV) Get(_ context.Context, key string) ([]byte, error) {
	var val []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketKV).Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		// bbolt values are only valid for the life of the transaction.
		val = bytes.Clone(v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Put stores value under key in a single write transaction.
func (s *BoltKV) Put(_ context.Context, key string, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketKV).Put([]byte(key), value)
	})
}

// Delete removes key. Deleting a missing key is not an error.
func (s *BoltKV) Delete(_ context.Context, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketKV).Delete([]byte(key))
	})
}

// Close closes the underlying bbolt database.
func (s *BoltKV) Close() error {
	return s.db.Close()
}
