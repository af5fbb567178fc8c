// Package blobstore defines the blob store contract and the filesystem,
// object-store, and devnull variants behind it. A blob store keys opaque
// documents by doc_id; the engine stores the canonical PDF rendering of
// each ingested file under this key.
package blobstore

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/reis-engine/internal/sourcefile"
)

// ErrNotFound is returned by Delete and GetDocument when doc_id is absent.
var ErrNotFound = errors.New("blobstore: not found")

// Store is the common contract every blob store variant implements.
type Store interface {
	// AddDocument stores the file's bytes under file.ID. Overwriting an
	// existing id is permitted.
	AddDocument(ctx context.Context, file *sourcefile.File) error

	// Delete removes the object for docID. Returns ErrNotFound if absent.
	Delete(ctx context.Context, docID string) error

	// GetDocument returns a SourceFile whose bytes are the stored object.
	// Returns ErrNotFound if absent. The returned file may be a freshly
	// materialised temporary; callers must treat its lifetime as bounded
	// and delete it when done.
	GetDocument(ctx context.Context, docID string) (*sourcefile.File, error)

	// Exists reports whether docID has a stored object.
	Exists(ctx context.Context, docID string) (bool, error)
}
