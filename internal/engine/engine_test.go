package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/reis-engine/internal/chunking"
	"github.com/fyrsmithlabs/reis-engine/internal/formatprovider"
	"github.com/fyrsmithlabs/reis-engine/internal/isolate"
	"github.com/fyrsmithlabs/reis-engine/internal/logging"
	"github.com/fyrsmithlabs/reis-engine/internal/metrics"
	"github.com/fyrsmithlabs/reis-engine/internal/sourcefile"
	"github.com/fyrsmithlabs/reis-engine/internal/vectorstore"
)

// fakeVectorStore is an in-memory vectorstore.Store used to observe the
// engine's batching and enrichment behaviour without a real backend.
type fakeVectorStore struct {
	batches [][]chunking.Chunk
	deleted []string
	search  []chunking.Chunk
	getByID []chunking.Chunk
}

func (f *fakeVectorStore) AddDocuments(ctx context.Context, indexName string, chunks []chunking.Chunk) error {
	f.batches = append(f.batches, chunks)
	return nil
}

func (f *fakeVectorStore) Delete(ctx context.Context, indexName, docID string) error {
	f.deleted = append(f.deleted, docID)
	return nil
}

func (f *fakeVectorStore) SimilaritySearch(ctx context.Context, indexName, query string, k int, filter vectorstore.Filter) ([]chunking.Chunk, error) {
	return f.search, nil
}

func (f *fakeVectorStore) GetDocuments(ctx context.Context, indexName string, ids []string) ([]chunking.Chunk, error) {
	return f.getByID, nil
}

func newTestEngine(t *testing.T, vs vectorstore.Store, batchSize int) *Engine {
	t.Helper()
	reg := formatprovider.NewRegistry(formatprovider.NewPlainProvider(""))
	harness := isolate.NewHarness("", nil, 1_000_000)
	logger, err := logging.NewLogger(logging.NewDefaultConfig())
	require.NoError(t, err)
	return New(reg, harness, nil, vs, metrics.New(), logger, Config{BatchSize: batchSize, TempRoot: t.TempDir()})
}

func TestAddFile_EnrichesAndBatchesChunks(t *testing.T) {
	vs := &fakeVectorStore{}
	e := newTestEngine(t, vs, 2)

	dir := t.TempDir()
	scope, err := sourcefile.TempFile(dir, []byte("alpha beta gamma delta epsilon"), ".txt", "text/plain", "notes.txt")
	require.NoError(t, err)
	defer scope.Close()

	err = e.AddFile(context.Background(), scope.File, "bucket-1", "doc-1", "")
	require.NoError(t, err)

	require.NotEmpty(t, vs.batches)
	for _, batch := range vs.batches {
		assert.LessOrEqual(t, len(batch), 2)
		for _, c := range batch {
			assert.Equal(t, "plain", c.Format())
			assert.Equal(t, "doc-1", c.DocID())
			assert.Equal(t, "bucket-1", c.Metadata[chunking.MetaBucket])
			assert.Equal(t, "notes.txt", c.Metadata[chunking.MetaSource])
			assert.NotEmpty(t, c.Metadata[chunking.MetaID])
		}
	}
}

func TestAddFile_UnsupportedFormatReturnsErrUnsupported(t *testing.T) {
	vs := &fakeVectorStore{}
	e := newTestEngine(t, vs, 0)

	dir := t.TempDir()
	scope, err := sourcefile.TempFile(dir, []byte("data"), ".unknownext", "application/octet-stream", "x.unknownext")
	require.NoError(t, err)
	defer scope.Close()

	err = e.AddFile(context.Background(), scope.File, "bucket", "doc", "")
	require.Error(t, err)
	var unsupported *formatprovider.ErrUnsupported
	assert.ErrorAs(t, err, &unsupported)
}

func TestSearch_AssignsDescendingScoresAndStripsBucket(t *testing.T) {
	vs := &fakeVectorStore{
		search: []chunking.Chunk{
			chunking.New("first", map[string]any{chunking.MetaFormat: "plain", chunking.MetaDocID: "d1", chunking.MetaBucket: "b1", chunking.MetaID: "c1"}),
			chunking.New("second", map[string]any{chunking.MetaFormat: "plain", chunking.MetaDocID: "d1", chunking.MetaBucket: "b1", chunking.MetaID: "c2"}),
			chunking.New("third", map[string]any{chunking.MetaFormat: "plain", chunking.MetaDocID: "d1", chunking.MetaBucket: "b1", chunking.MetaID: "c3"}),
		},
	}
	e := newTestEngine(t, vs, 0)

	sources, err := e.Search(context.Background(), "query", "b1", 3, nil, "")
	require.NoError(t, err)
	require.Len(t, sources, 3)

	assert.Equal(t, 3, sources[0].Chunk.Score)
	assert.Equal(t, 2, sources[1].Chunk.Score)
	assert.Equal(t, 1, sources[2].Chunk.Score)

	for _, s := range sources {
		_, hasBucket := s.Metadata[chunking.MetaBucket]
		assert.False(t, hasBucket)
		_, hasDocID := s.Metadata[chunking.MetaDocID]
		assert.False(t, hasDocID)
		assert.False(t, s.Document.DownloadAvailable)
	}
}

func TestGetDocumentsContent_SortsPDFPagesAscending(t *testing.T) {
	vs := &fakeVectorStore{
		getByID: []chunking.Chunk{
			chunking.New("page 2", map[string]any{chunking.MetaFormat: "pdf", chunking.MetaPage: 2}),
			chunking.New("page 1", map[string]any{chunking.MetaFormat: "pdf", chunking.MetaPage: 1}),
		},
	}
	e := newTestEngine(t, vs, 0)

	chunks, err := e.GetDocumentsContent(context.Background(), []string{"x"}, "")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	p0, _ := chunks[0].Page()
	p1, _ := chunks[1].Page()
	assert.Equal(t, 1, p0)
	assert.Equal(t, 2, p1)
}

func TestDeleteFile_DeletesChunksByDocID(t *testing.T) {
	vs := &fakeVectorStore{}
	e := newTestEngine(t, vs, 0)

	err := e.DeleteFile(context.Background(), "doc-9", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-9"}, vs.deleted)
}

func TestGetDocumentPDF_ReturnsNilWithoutBlobStore(t *testing.T) {
	vs := &fakeVectorStore{}
	e := newTestEngine(t, vs, 0)

	file, err := e.GetDocumentPDF(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Nil(t, file)
}
