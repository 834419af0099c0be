package storage

import (
	"context"

	"github.com/finledger/syncengine/internal/models"
)

//go:generate moq -out store_mock.go . Store

// Store defines the local persistent record store the engine reconciles
// against the remote backend. Implementations live in the boltdb and sqlite
// subpackages.
type Store interface {
	// LoadAll returns every record, tombstones included. Used to build
	// the local snapshot for a sync cycle.
	LoadAll(ctx context.Context) (models.Snapshot, error)

	// Get retrieves a record by ID.
	// Returns ErrRecordNotFound if the record doesn't exist.
	Get(ctx context.Context, id string) (*models.SyncableRecord, error)

	// Save stores or replaces a record.
	Save(ctx context.Context, record *models.SyncableRecord) error

	// Delete removes a record physically. Synchronized deletions go
	// through tombstoned Save calls instead; Delete exists for purging.
	Delete(ctx context.Context, id string) error

	// Close releases the underlying store.
	Close() error
}
