package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/finledger/syncengine/internal/models"
	"github.com/finledger/syncengine/internal/storage"
)

// LoadAll returns every stored record, tombstones included.
func (s *Storage) LoadAll(ctx context.Context) (models.Snapshot, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var snapshot models.Snapshot

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketRecords)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var rec models.SyncableRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("failed to unmarshal record %s: %w", k, err)
			}
			snapshot = append(snapshot, &rec)
			return nil
		})
	})
	if err != nil {
		return nil, &storage.StorageError{Op: "load_all", Err: err}
	}

	return snapshot, nil
}

// Get retrieves a record by ID.
func (s *Storage) Get(ctx context.Context, id string) (*models.SyncableRecord, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var rec *models.SyncableRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketRecords)
		if bucket == nil {
			return storage.ErrRecordNotFound
		}

		data := bucket.Get([]byte(id))
		if data == nil {
			return storage.ErrRecordNotFound
		}

		rec = &models.SyncableRecord{}
		if err := json.Unmarshal(data, rec); err != nil {
			return fmt.Errorf("failed to unmarshal record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return rec, nil
}

// Save stores or replaces a record.
func (s *Storage) Save(ctx context.Context, record *models.SyncableRecord) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	data, err := json.Marshal(record)
	if err != nil {
		return &storage.StorageError{Op: "save", ID: record.ID, Err: err}
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(bucketRecords)
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		return bucket.Put([]byte(record.ID), data)
	})
	if err != nil {
		return &storage.StorageError{Op: "save", ID: record.ID, Err: err}
	}

	return nil
}

// Delete removes a record physically.
func (s *Storage) Delete(ctx context.Context, id string) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketRecords)
		if bucket == nil {
			return nil
		}
		return bucket.Delete([]byte(id))
	})
	if err != nil {
		return &storage.StorageError{Op: "delete", ID: id, Err: err}
	}

	return nil
}
