package remote

import (
	"context"

	"github.com/finledger/syncengine/internal/models"
)

//go:generate moq -out backend_mock.go . Backend

// Backend is the remote synchronization store the engine reconciles
// against. The engine treats it as an opaque key/value record store keyed by
// UUID with per-record modification timestamps.
type Backend interface {
	// FetchAll returns a snapshot of every remote record.
	// Fails with *NetworkError.
	FetchAll(ctx context.Context) (models.Snapshot, error)

	// Upsert creates or replaces one record on the backend.
	// Fails with *NetworkError; the Transient flag drives retry policy.
	Upsert(ctx context.Context, record *models.SyncableRecord) error

	// Ping validates reachability and session authorization.
	// Fails with ErrBackendUnavailable (possibly wrapped).
	Ping(ctx context.Context) error
}
