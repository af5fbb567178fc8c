// Package chunking defines the Chunk value type shared by format providers,
// the vector store adapter, and the orchestration layer, and wraps the
// recursive-character text splitter used to produce chunks from parsed text.
package chunking

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// Metadata keys. The orchestration layer stamps format, mime_type, doc_id,
// bucket, source and id on every chunk it enriches; page is set only by
// providers of paginated formats.
const (
	MetaFormat   = "format"
	MetaMimeType = "mime_type"
	MetaDocID    = "doc_id"
	MetaBucket   = "bucket"
	MetaSource   = "source"
	MetaPage     = "page"
	MetaID       = "id"
)

// Chunk is a text fragment paired with a free-form metadata bag. Values are
// scalars (string, int, float64); callers that need a typed required key
// use the Meta* constants as map keys.
type Chunk struct {
	Content  string
	Metadata map[string]any
}

// New returns a chunk with a copy of metadata, replacing any embedded NUL
// byte with U+FFFD, as required of every chunk that can reach a vector
// backend.
func New(content string, metadata map[string]any) Chunk {
	return Chunk{
		Content:  SanitizeNUL(content),
		Metadata: cloneMeta(metadata),
	}
}

// WithMeta returns a new chunk with additional metadata keys merged over
// the existing ones. The receiver is left untouched.
func (c Chunk) WithMeta(extra map[string]any) Chunk {
	merged := cloneMeta(c.Metadata)
	for k, v := range extra {
		merged[k] = v
	}
	return Chunk{Content: c.Content, Metadata: merged}
}

// DocID returns the doc_id metadata value, or empty if absent or not a string.
func (c Chunk) DocID() string {
	return stringMeta(c.Metadata, MetaDocID)
}

// Format returns the format metadata value, or empty if absent.
func (c Chunk) Format() string {
	return stringMeta(c.Metadata, MetaFormat)
}

// Page returns the page metadata value and whether it was present.
func (c Chunk) Page() (int, bool) {
	v, ok := c.Metadata[MetaPage]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func stringMeta(m map[string]any, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func cloneMeta(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// SanitizeNUL replaces any NUL byte with U+FFFD; vector backends cannot
// store NUL.
func SanitizeNUL(s string) string {
	if !strings.ContainsRune(s, 0) {
		return s
	}
	return strings.ReplaceAll(s, "\x00", "�")
}

// Batches splits chunks into groups of size batchSize. batchSize <= 0 means
// a single batch containing every chunk.
func Batches(chunks []Chunk, batchSize int) [][]Chunk {
	if batchSize <= 0 || len(chunks) == 0 {
		if len(chunks) == 0 {
			return nil
		}
		return [][]Chunk{chunks}
	}
	var out [][]Chunk
	for i := 0; i < len(chunks); i += batchSize {
		end := i + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		out = append(out, chunks[i:end])
	}
	return out
}

// SortByPageAscending sorts chunks by their page metadata ascending;
// chunks without a page sort last, stable relative to their input order.
func SortByPageAscending(chunks []Chunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		pi, oki := chunks[i].Page()
		pj, okj := chunks[j].Page()
		if oki && okj {
			return pi < pj
		}
		return oki && !okj
	})
}

// Splitter wraps a recursive-character text splitter with validated sizes.
type Splitter struct {
	inner textsplitter.TextSplitter
}

// NewSplitter validates chunkSize/chunkOverlap and builds a recursive
// character splitter. chunkSize <= 0 or chunkOverlap < 0 return an error;
// zero values are treated as "use the default" by callers before reaching
// here, via NewSplitterWithDefaults.
func NewSplitter(chunkSize, chunkOverlap int, separators []string) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunking: chunk_size must be > 0, got %d", chunkSize)
	}
	if chunkOverlap < 0 {
		return nil, fmt.Errorf("chunking: chunk_overlap must be >= 0, got %d", chunkOverlap)
	}

	opts := []textsplitter.Option{
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
	}
	if len(separators) > 0 {
		opts = append(opts, textsplitter.WithSeparators(separators))
	}

	return &Splitter{inner: textsplitter.NewRecursiveCharacter(opts...)}, nil
}

// NewSplitterWithDefaults applies provider defaults whenever the caller
// leaves a size as zero/unset.
func NewSplitterWithDefaults(chunkSize, chunkOverlap, defaultSize, defaultOverlap int, separators []string) (*Splitter, error) {
	if chunkSize == 0 {
		chunkSize = defaultSize
	}
	if chunkOverlap == 0 {
		chunkOverlap = defaultOverlap
	}
	return NewSplitter(chunkSize, chunkOverlap, separators)
}

// Split runs the splitter over text, returning the resulting fragments.
func (s *Splitter) Split(text string) ([]string, error) {
	return s.inner.SplitText(text)
}
