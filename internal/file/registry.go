// Package file implements the short-link file registry: identifier
// allocation, the durable mapping from identifiers to stored blobs, and the
// upload and retrieval flows built on top of it.
package file

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no record exists for a short identifier.
var ErrNotFound = errors.New("file record not found")

// ErrDuplicate is returned when committing a record whose short identifier is
// already claimed.
var ErrDuplicate = errors.New("short identifier already exists")

// Registry is the durable mapping from short identifiers to file records.
// Implementations must enforce identifier uniqueness at insert time: a Find
// before Create is advisory only, the insert itself is the guard.
type Registry interface {
	// Find returns the record for shortID, or ErrNotFound.
	Find(ctx context.Context, shortID string) (*Record, error)

	// Create inserts a new record. It returns ErrDuplicate when the short
	// identifier is already claimed; the check and the insert are atomic.
	Create(ctx context.Context, rec *Record) error
}
