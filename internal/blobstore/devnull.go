package blobstore

import (
	"context"

	"github.com/fyrsmithlabs/reis-engine/internal/sourcefile"
)

// DevNull accepts adds and deletes silently, reports nothing as present.
// cmd/reis-engine does not select it: an unset file_store_type gives the
// engine a nil blob store instead.
type DevNull struct{}

func NewDevNull() *DevNull { return &DevNull{} }

func (d *DevNull) AddDocument(ctx context.Context, file *sourcefile.File) error { return nil }

func (d *DevNull) Delete(ctx context.Context, docID string) error { return nil }

func (d *DevNull) GetDocument(ctx context.Context, docID string) (*sourcefile.File, error) {
	return nil, ErrNotFound
}

func (d *DevNull) Exists(ctx context.Context, docID string) (bool, error) { return false, nil }
