// Package blobstore abstracts object storage for partition archival.
//
// A sealed partition directory is immutable, which makes it a natural
// archive unit: the store uploads its four files as blobs and can restore
// them byte-identically later. Implementations exist for the local
// filesystem, Amazon S3, and MinIO-compatible endpoints.
package blobstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations return errors satisfying errors.Is(err, ErrNotFound).
var ErrNotFound = errors.New("blob not found")

// Store is a flat namespace of immutable blobs.
type Store interface {
	// Put writes a blob, replacing any previous content.
	Put(ctx context.Context, name string, data []byte) error
	// Get reads a whole blob.
	Get(ctx context.Context, name string) ([]byte, error)
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the blob names under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}
