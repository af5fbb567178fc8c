package blobstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/reis-engine/internal/sourcefile"
)

func TestFilesystem_AddExistsGetDelete(t *testing.T) {
	ctx := context.Background()
	store, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)

	srcRoot := t.TempDir()
	scope, err := sourcefile.TempFile(srcRoot, []byte("pdf-bytes"), ".pdf", "application/pdf", "doc.pdf")
	require.NoError(t, err)
	defer scope.Close()
	scope.File.ID = "doc-1"

	require.NoError(t, store.AddDocument(ctx, scope.File))

	exists, err := store.Exists(ctx, "doc-1")
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := store.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	data, err := got.Buffer()
	require.NoError(t, err)
	assert.Equal(t, "pdf-bytes", string(data))

	require.NoError(t, store.Delete(ctx, "doc-1"))

	_, err = store.GetDocument(ctx, "doc-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFilesystem_DeleteUnknownIsNotFound(t *testing.T) {
	store, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)

	err = store.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFilesystem_TraversalIDIsConfinedToRoot(t *testing.T) {
	store, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)

	path, err := store.pathFor("../../etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, store.root, filepathDir(path))
}

func filepathDir(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[:i]
		}
	}
	return ""
}
