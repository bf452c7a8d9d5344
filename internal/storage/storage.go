// Package storage defines the interface for blob storage operations.
// Implementations are injected at startup: the MinIO one works with any
// S3-compatible provider (MinIO, AWS S3, ArvanCloud), the local one writes
// straight to disk.
package storage

import (
	"context"
	"io"
)

// Storage is the interface for writing, locating and deleting blobs.
type Storage interface {
	// Upload streams data to the store under the given key.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	// Delete removes the blob identified by key.
	Delete(ctx context.Context, key string) error
	// Location returns the durable locator for a stored key: a
	// browser-accessible URL for object storage, an absolute path for local
	// disk.
	Location(key string) string
}

// Presigner is implemented by backends that can mint short-lived URLs which
// force the browser to download the blob as an attachment.
type Presigner interface {
	AttachmentURL(ctx context.Context, key, filename string) (string, error)
}
