// Package blobstore is a sample application serving a key/value blob store
// over remote method calls.
//
// Methods:
//
//	blob.put(String key, ByteArray data) -> Uint32 size
//	blob.get(String key) -> ByteArray
//	blob.delete(String key) -> Void
//	blob.list(String prefix) -> Array of String
//
// Blobs live in a Store: MemoryStore for tests and single-process use,
// S3Store for any S3-compatible object storage.
package blobstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned for keys that do not exist.
var ErrNotFound = errors.New("blobstore: not found")

// Store holds blobs by key.
type Store interface {
	// Put stores data under key, replacing any previous value.
	Put(ctx context.Context, key string, data []byte) error

	// Get returns the blob stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes key, or returns ErrNotFound.
	Delete(ctx context.Context, key string) error

	// List returns the keys starting with prefix in ascending order.
	List(ctx context.Context, prefix string) ([]string, error)
}
