// Package vectorstore defines the vector store contract, the filter model
// used to scope searches by bucket and document id, and the pgvector,
// azure-ai-search, and devnull variants behind it.
package vectorstore

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/reis-engine/internal/chunking"
)

// ErrBatchFailed wraps a partial-batch insertion failure; the caller may
// retry the whole batch.
var ErrBatchFailed = errors.New("vectorstore: batch insertion failed")

// Embedder computes the embedding vector for a query or document string.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Filter scopes a similarity search or get-by-id query. A record matches
// iff (Bucket is empty OR record.bucket == Bucket) AND (DocIDs is empty OR
// record.doc_id ∈ DocIDs).
type Filter struct {
	Bucket string
	DocIDs map[string]struct{}
}

// NewFilter builds a Filter from a bucket label and a list of doc ids. An
// empty bucket or nil/empty ids list leaves that dimension unconstrained.
func NewFilter(bucket string, docIDs []string) Filter {
	f := Filter{Bucket: bucket}
	if len(docIDs) > 0 {
		f.DocIDs = make(map[string]struct{}, len(docIDs))
		for _, id := range docIDs {
			f.DocIDs[id] = struct{}{}
		}
	}
	return f
}

// Matches reports whether a chunk's metadata satisfies the filter.
func (f Filter) Matches(bucket, docID string) bool {
	if f.Bucket != "" && f.Bucket != bucket {
		return false
	}
	if len(f.DocIDs) > 0 {
		if _, ok := f.DocIDs[docID]; !ok {
			return false
		}
	}
	return true
}

// Store is the common contract every vector store variant implements.
// Implementations must be safe for concurrent use by multiple request
// goroutines.
type Store interface {
	// AddDocuments inserts chunks as a single atomic batch from the
	// caller's viewpoint. Partial failure returns an error wrapping
	// ErrBatchFailed; the caller may retry the whole batch.
	AddDocuments(ctx context.Context, indexName string, chunks []chunking.Chunk) error

	// Delete removes every stored chunk whose doc_id metadata equals
	// docID. Deleting an unknown id is a no-op.
	Delete(ctx context.Context, indexName, docID string) error

	// SimilaritySearch returns up to k chunks matching filter, ordered by
	// decreasing similarity to query.
	SimilaritySearch(ctx context.Context, indexName, query string, k int, filter Filter) ([]chunking.Chunk, error)

	// GetDocuments returns the chunks whose primary ids are in ids, in
	// unspecified order. Unknown ids are silently dropped.
	GetDocuments(ctx context.Context, indexName string, ids []string) ([]chunking.Chunk, error)
}
