package storage

import (
	"errors"
	"fmt"
)

// Common local store errors. Local I/O failures are fatal to the current
// operation and surfaced to the caller; the engine never retries them.
var (
	// ErrRecordNotFound indicates that no record exists with the given ID
	ErrRecordNotFound = errors.New("record not found")

	// ErrStorageClosed indicates that the store has been closed
	ErrStorageClosed = errors.New("storage is closed")
)

// StorageError wraps an underlying store I/O failure with the operation and
// record it occurred on.
type StorageError struct {
	Op  string // "load_all", "get", "save", "delete"
	ID  string // record id, empty for collection-level operations
	Err error
}

func (e *StorageError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.ID, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
