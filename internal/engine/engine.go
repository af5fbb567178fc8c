// Package engine orchestrates ingestion and retrieval: selecting a format
// provider, converting and parsing a file, batching chunks into the vector
// store, and keeping the blob store and vector store in agreement on which
// documents exist.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reis-engine/internal/blobstore"
	"github.com/fyrsmithlabs/reis-engine/internal/chunking"
	"github.com/fyrsmithlabs/reis-engine/internal/formatprovider"
	"github.com/fyrsmithlabs/reis-engine/internal/isolate"
	"github.com/fyrsmithlabs/reis-engine/internal/logging"
	"github.com/fyrsmithlabs/reis-engine/internal/metrics"
	"github.com/fyrsmithlabs/reis-engine/internal/sourcefile"
	"github.com/fyrsmithlabs/reis-engine/internal/vectorstore"
)

// Source is the nested DTO returned for each similarity-search hit.
type Source struct {
	Title    string         `json:"title"`
	Chunk    SourceChunk    `json:"chunk"`
	Document SourceDocument `json:"document"`
	Metadata map[string]any `json:"metadata"`
}

// SourceChunk is the chunk facet of a Source DTO.
type SourceChunk struct {
	URI     string `json:"uri"`
	Content string `json:"content"`
	Pages   []int  `json:"pages,omitempty"`
	Score   int    `json:"score"`
}

// SourceDocument is the document facet of a Source DTO.
type SourceDocument struct {
	URI               string `json:"uri"`
	Name              string `json:"name"`
	MimeType          string `json:"mime_type"`
	Link              string `json:"link,omitempty"`
	DownloadAvailable bool   `json:"download_available"`
}

// Config parameterises the engine's orchestration behaviour.
type Config struct {
	// BatchSize is the vector-insertion batch size; 0 means one batch.
	BatchSize int
	// TempRoot is the directory under which intermediate PDF conversions
	// and other scoped temp artifacts are created.
	TempRoot string
}

// Engine wires format dispatch, process isolation, and the two storage
// abstractions behind the add-file and search operations.
type Engine struct {
	registry    *formatprovider.Registry
	harness     *isolate.Harness
	blobStore   blobstore.Store // nil disables the blob-store feature
	vectorStore vectorstore.Store
	metrics     *metrics.Metrics
	logger      *logging.Logger
	config      Config
}

// New returns an Engine. blobStore may be nil to disable the blob-store
// feature, per the "unset file_store_type disables it" configuration rule.
func New(registry *formatprovider.Registry, harness *isolate.Harness, blobStore blobstore.Store, vectorStore vectorstore.Store, m *metrics.Metrics, logger *logging.Logger, config Config) *Engine {
	return &Engine{
		registry:    registry,
		harness:     harness,
		blobStore:   blobStore,
		vectorStore: vectorStore,
		metrics:     m,
		logger:      logger,
		config:      config,
	}
}

// AddFile implements the add-file orchestration of the design: select a
// provider, obtain chunks (via the blob-store PDF round trip when a blob
// store is configured, or by parsing the original file directly otherwise),
// enrich and batch them, and insert batches into the vector store in order.
func (e *Engine) AddFile(ctx context.Context, file *sourcefile.File, bucket, docID, indexName string) error {
	start := time.Now()

	provider, err := e.registry.Dispatch(file)
	if err != nil {
		e.metrics.RecordFileFailed("unsupported")
		return err
	}

	chunks, err := e.parse(ctx, provider, file, docID)
	if err != nil {
		e.metrics.RecordFileFailed(errorKind(err))
		return err
	}

	enriched := enrich(chunks, provider.Name(), file.MimeType, docID, bucket, file.FileName)

	batches := chunking.Batches(enriched, e.config.BatchSize)
	for i, batch := range batches {
		if err := e.vectorStore.AddDocuments(ctx, indexName, batch); err != nil {
			e.logger.Error(ctx, "add-file: batch insert failed",
				zap.String("doc_id", docID), zap.Int("batch", i+1), zap.Int("of", len(batches)), zap.Error(err))
			e.metrics.RecordFileFailed("store")
			return fmt.Errorf("engine: insert batch %d/%d: %w", i+1, len(batches), err)
		}
		e.logger.Info(ctx, "add-file: batch inserted",
			zap.String("doc_id", docID), zap.Int("batch", i+1), zap.Int("of", len(batches)))
	}

	e.metrics.RecordChunksInserted(provider.Name(), len(enriched))
	e.metrics.RecordFileProcessed(provider.Name(), time.Since(start).Seconds())
	return nil
}

// parse resolves chunks for file, routing through the blob store's PDF
// round trip when one is configured so the stored PDF is guaranteed to be
// the exact source of the stored chunks.
func (e *Engine) parse(ctx context.Context, provider formatprovider.Provider, file *sourcefile.File, docID string) ([]chunking.Chunk, error) {
	if e.blobStore == nil {
		chunks, err := e.harness.ProcessFile(ctx, provider, file, 0, 0)
		if err != nil {
			return nil, err
		}
		return chunks, nil
	}

	pdf, err := e.harness.ConvertFileToPDF(ctx, provider, file, e.config.TempRoot)
	if err != nil {
		return nil, err
	}
	defer pdf.Delete()

	if err := e.blobStore.AddDocument(ctx, pdf); err != nil {
		return nil, fmt.Errorf("engine: store pdf for %s: %w", docID, err)
	}

	pdfProvider := formatprovider.NewPDFProvider()
	chunks, err := e.harness.ProcessFile(ctx, pdfProvider, pdf, 0, 0)
	if err != nil {
		return nil, err
	}
	for i := range chunks {
		chunks[i] = chunks[i].WithMeta(map[string]any{"pdf_parser": "pdf"})
	}
	return chunks, nil
}

// enrich stamps every chunk with the required metadata keys and a stable
// chunk id, allocating new chunk values rather than mutating in place.
func enrich(chunks []chunking.Chunk, format, mimeType, docID, bucket, source string) []chunking.Chunk {
	out := make([]chunking.Chunk, len(chunks))
	for i, c := range chunks {
		out[i] = c.WithMeta(map[string]any{
			chunking.MetaFormat:   format,
			chunking.MetaMimeType: mimeType,
			chunking.MetaDocID:    docID,
			chunking.MetaBucket:   bucket,
			chunking.MetaSource:   source,
			chunking.MetaID:       uuid.NewString(),
		})
	}
	return out
}

// Search composes a filter from bucket and docIDs, asks the vector store for
// the top take chunks, runs each chunk's provider clean_up hook, and strips
// the bucket key before returning.
func (e *Engine) Search(ctx context.Context, query, bucket string, take int, docIDs []string, indexName string) ([]Source, error) {
	filter := vectorstore.NewFilter(bucket, docIDs)

	chunks, err := e.vectorStore.SimilaritySearch(ctx, indexName, query, take, filter)
	if err != nil {
		e.metrics.RecordSearch("error", 0)
		return nil, fmt.Errorf("engine: similarity search: %w", err)
	}

	distinctDocIDs := make(map[string]struct{})
	for _, c := range chunks {
		distinctDocIDs[c.DocID()] = struct{}{}
	}
	availability := e.batchExists(ctx, distinctDocIDs)

	n := len(chunks)
	sources := make([]Source, 0, n)
	for i, c := range chunks {
		if p := e.registry.ByName(c.Format()); p != nil {
			c = p.CleanUp(c)
		}
		meta := withoutKeys(c.Metadata, chunking.MetaBucket)

		var pages []int
		if page, ok := c.Page(); ok {
			pages = []int{page}
		}

		sources = append(sources, Source{
			Title: c.DocID(),
			Chunk: SourceChunk{
				URI:     c.DocID(),
				Content: c.Content,
				Pages:   pages,
				Score:   n - i,
			},
			Document: SourceDocument{
				URI:               c.DocID(),
				Name:              sourceNameOf(c),
				MimeType:          mimeTypeOf(c),
				DownloadAvailable: availability[c.DocID()],
			},
			Metadata: withoutKeys(meta, chunking.MetaPage, chunking.MetaID, chunking.MetaDocID),
		})
	}

	e.metrics.RecordSearch("ok", len(sources))
	return sources, nil
}

// batchExists resolves blob-store availability for a set of doc ids with a
// single batched pass, per the DTO-assembly rule that download_available is
// not computed per-chunk.
func (e *Engine) batchExists(ctx context.Context, docIDs map[string]struct{}) map[string]bool {
	result := make(map[string]bool, len(docIDs))
	if e.blobStore == nil {
		for id := range docIDs {
			result[id] = false
		}
		return result
	}
	for id := range docIDs {
		ok, err := e.blobStore.Exists(ctx, id)
		if err != nil {
			ok = false
		}
		result[id] = ok
	}
	return result
}

// GetDocumentsContent fetches chunks by primary id, sorting ascending by
// page when the first returned chunk's format is pdf.
func (e *Engine) GetDocumentsContent(ctx context.Context, ids []string, indexName string) ([]chunking.Chunk, error) {
	chunks, err := e.vectorStore.GetDocuments(ctx, indexName, ids)
	if err != nil {
		return nil, fmt.Errorf("engine: get documents: %w", err)
	}
	if len(chunks) > 0 && chunks[0].Format() == "pdf" {
		chunking.SortByPageAscending(chunks)
	}
	return chunks, nil
}

// GetDocumentPDF returns the blob-store entry for docID, or nil if no blob
// store is configured.
func (e *Engine) GetDocumentPDF(ctx context.Context, docID string) (*sourcefile.File, error) {
	if e.blobStore == nil {
		return nil, nil
	}
	file, err := e.blobStore.GetDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	return file, nil
}

// DeleteFile deletes all chunks tagged with docID and, if a blob store is
// configured, the corresponding PDF.
func (e *Engine) DeleteFile(ctx context.Context, docID, indexName string) error {
	if err := e.vectorStore.Delete(ctx, indexName, docID); err != nil {
		e.metrics.RecordDelete("error")
		return fmt.Errorf("engine: delete chunks for %s: %w", docID, err)
	}

	if e.blobStore != nil {
		if err := e.blobStore.Delete(ctx, docID); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
			e.metrics.RecordDelete("error")
			return fmt.Errorf("engine: delete pdf for %s: %w", docID, err)
		}
	}

	e.metrics.RecordDelete("ok")
	return nil
}

func withoutKeys(m map[string]any, keys ...string) map[string]any {
	drop := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		drop[k] = struct{}{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if _, skip := drop[k]; skip {
			continue
		}
		out[k] = v
	}
	return out
}

func sourceNameOf(c chunking.Chunk) string {
	if v, ok := c.Metadata[chunking.MetaSource]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func mimeTypeOf(c chunking.Chunk) string {
	if v, ok := c.Metadata[chunking.MetaMimeType]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// errorKind classifies an orchestration error for the failure-counter label.
func errorKind(err error) string {
	var unsupported *formatprovider.ErrUnsupported
	if errors.As(err, &unsupported) {
		return "unsupported"
	}
	var processing *formatprovider.ProcessingError
	if errors.As(err, &processing) {
		return "processing"
	}
	var conversion *formatprovider.ConversionError
	if errors.As(err, &conversion) {
		return "conversion"
	}
	return "internal"
}
