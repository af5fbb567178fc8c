package vectorstore

import (
	"context"

	"github.com/fyrsmithlabs/reis-engine/internal/chunking"
)

// DevNull discards writes and reports no matches. Selected when no vector
// backend is configured.
type DevNull struct{}

func NewDevNull() *DevNull { return &DevNull{} }

func (d *DevNull) AddDocuments(ctx context.Context, indexName string, chunks []chunking.Chunk) error {
	return nil
}

func (d *DevNull) Delete(ctx context.Context, indexName, docID string) error { return nil }

func (d *DevNull) SimilaritySearch(ctx context.Context, indexName, query string, k int, filter Filter) ([]chunking.Chunk, error) {
	return nil, nil
}

func (d *DevNull) GetDocuments(ctx context.Context, indexName string, ids []string) ([]chunking.Chunk, error) {
	return nil, nil
}
