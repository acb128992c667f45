// Package objectstore defines the head/get/get_range storage abstraction
// (spec §6) that both the kwidx CLI (reading the source and writing the four
// artifacts) and the loader/searcher (reading them) depend on, with local filesystem,
// S3, and Azure Blob backings.
package objectstore

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by Head/Get/GetRange when key does not exist,
// mirroring friggdb/backend's ErrMetaDoesNotExist sentinel pattern.
var ErrNotFound = errors.New("objectstore: object not found")

// Info is an object's validation triple: spec §4.4/§4.5 persist this into
// the filters artifact, and load.Index.Validate compares against it to
// detect a source file that changed out from under a built index.
type Info struct {
	ETag         string
	Size         uint64
	LastModified time.Time
}

// Store is the storage interface every backing implements. Keys are
// slash-separated paths relative to the store's own root/bucket/container;
// callers (cmd/kwidx, internal/index/load) own prefixing an
// index's artifacts under a per-source-file key.
type Store interface {
	// Head returns size/etag/last-modified without transferring the body.
	Head(ctx context.Context, key string) (Info, error)

	// Get reads an object's entire contents.
	Get(ctx context.Context, key string) ([]byte, error)

	// GetRange reads length bytes starting at offset. Implementations
	// must reject length == 0 requests that would otherwise ambiguously
	// mean "rest of object" in some backends.
	GetRange(ctx context.Context, key string, offset, length uint64) ([]byte, error)

	// Put writes an object's entire contents, overwriting any existing
	// object at key.
	Put(ctx context.Context, key string, data []byte) error
}
