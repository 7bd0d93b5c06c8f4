// Package storage persists the two caches owned by a sync run: the
// processed-video ledger and playlist membership snapshots.
//
// Both are whole-file JSON documents rewritten atomically. There is no
// locking; a single run is assumed to own the files.
package storage

import (
	"errors"
	"fmt"
)

// Sentinel errors for common storage conditions.
var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("storage: not found")
	// ErrStorageCorrupt indicates persisted data could not be decoded.
	ErrStorageCorrupt = errors.New("storage: data corruption detected")
)

// StorageError wraps storage errors with operation and entity context.
type StorageError struct {
	// Op is the operation that failed ("read", "write", "delete").
	Op string
	// Entity is the entity type ("processed", "snapshot").
	Entity string
	// ID is the entity ID if applicable.
	ID string
	// Err is the underlying error that occurred.
	Err error
}

func (e *StorageError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("storage: %s %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
	}
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Entity, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is() and errors.As().
func (e *StorageError) Unwrap() error { return e.Err }
