// Package boltdb implements the local record store on top of bbolt. Records
// are stored JSON-encoded in a single bucket keyed by record ID.
package boltdb

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"
)

var bucketRecords = []byte("records")

// Storage is the BoltDB-backed local record store.
type Storage struct {
	db *bbolt.DB
}

// New opens (creating if necessary) the BoltDB file at dbPath and prepares
// the record bucket.
func New(ctx context.Context, dbPath string) (*Storage, error) {
	db, err := bbolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketRecords); err != nil {
			return fmt.Errorf("failed to create records bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return &Storage{db: db}, nil
}

// Close closes the database connection. Subsequent calls are no-ops and
// subsequent store operations fail with ErrStorageClosed.
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
