package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// Package storage contains the blob store abstraction for object bytes.
// Implementations must rely on streaming I/O only: a whole object is never
// materialized in memory, regardless of its size.

// ErrObjectNotFound is returned by OpenRead and Stat for unknown keys.
var ErrObjectNotFound = errors.New("object not found")

// WriteOptions define optional parameters for an object write stream.
// The object size is not known up front; implementations must stream-chunk
// as the backend supports.
type WriteOptions struct {
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about an object in the store.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// WriteHandle is a sink for one object's byte stream.
//
// Writes append chunks in order. Exactly one of Close or Abort must be
// called. Until Close returns, the object is not visible to readers and
// the reported size is not trustworthy.
type WriteHandle interface {
	io.Writer
	// Close finalizes the object and returns its materialized info.
	// On failure the partial object does not become visible.
	Close() (ObjectInfo, error)
	// Abort discards the stream; nothing becomes visible.
	Abort() error
}

// BlobStore is a durable binary-object store keyed by caller-provided,
// store-unique keys. It is safe for concurrent use; independent streams
// carry no ordering guarantee relative to each other.
type BlobStore interface {
	// OpenWrite starts a streamed write for a new object under key.
	// The caller derives the key; the store never generates one.
	OpenWrite(ctx context.Context, key string, opt WriteOptions) (WriteHandle, error)
	// OpenRead opens a single-pass streamed read of the object's bytes.
	// Returns ErrObjectNotFound if no object matches.
	OpenRead(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Stat returns object info without touching the byte stream.
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	// Delete removes an object by key. Used for ingest rollback only;
	// there is no delete on the HTTP surface.
	Delete(ctx context.Context, key string) error
}
