package chunking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_SanitizesEmbeddedNUL(t *testing.T) {
	c := New("hello\x00world", map[string]any{MetaDocID: "d1"})
	assert.Equal(t, "hello�world", c.Content)
	assert.Equal(t, "d1", c.DocID())
}

func TestNew_ClonesMetadata(t *testing.T) {
	meta := map[string]any{MetaFormat: "pdf"}
	c := New("text", meta)
	meta[MetaFormat] = "mutated"
	assert.Equal(t, "pdf", c.Format(), "Chunk.Metadata must not alias the caller's map")
}

func TestChunk_WithMeta_LeavesReceiverUntouched(t *testing.T) {
	base := New("text", map[string]any{MetaDocID: "d1"})
	extended := base.WithMeta(map[string]any{MetaPage: 3})

	_, ok := base.Page()
	assert.False(t, ok, "WithMeta must not mutate the receiver")

	page, ok := extended.Page()
	require.True(t, ok)
	assert.Equal(t, 3, page)
	assert.Equal(t, "d1", extended.DocID())
}

func TestChunk_Page_AcceptsNumericKinds(t *testing.T) {
	tests := []struct {
		name string
		val  any
		want int
	}{
		{"int", 5, 5},
		{"int64", int64(5), 5},
		{"float64", float64(5), 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New("x", map[string]any{MetaPage: tt.val})
			got, ok := c.Page()
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChunk_Page_AbsentReturnsFalse(t *testing.T) {
	c := New("x", nil)
	_, ok := c.Page()
	assert.False(t, ok)
}

func TestBatches_SplitsIntoGroupsOfSize(t *testing.T) {
	chunks := []Chunk{New("a", nil), New("b", nil), New("c", nil), New("d", nil), New("e", nil)}

	batches := Batches(chunks, 2)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[1], 2)
	assert.Len(t, batches[2], 1)
}

func TestBatches_NonPositiveSizeReturnsSingleBatch(t *testing.T) {
	chunks := []Chunk{New("a", nil), New("b", nil)}
	batches := Batches(chunks, 0)
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 2)
}

func TestBatches_EmptyInputReturnsNil(t *testing.T) {
	assert.Nil(t, Batches(nil, 10))
}

func TestSortByPageAscending_OrdersAndStabilizesMissingPages(t *testing.T) {
	chunks := []Chunk{
		New("no-page-1", nil),
		New("page-3", map[string]any{MetaPage: 3}),
		New("page-1", map[string]any{MetaPage: 1}),
		New("no-page-2", nil),
		New("page-2", map[string]any{MetaPage: 2}),
	}

	SortByPageAscending(chunks)

	want := []string{"page-1", "page-2", "page-3", "no-page-1", "no-page-2"}
	got := make([]string, len(chunks))
	for i, c := range chunks {
		got[i] = c.Content
	}
	assert.Equal(t, want, got)
}

func TestNewSplitter_RejectsInvalidSizes(t *testing.T) {
	_, err := NewSplitter(0, 0, nil)
	assert.Error(t, err)

	_, err = NewSplitter(100, -1, nil)
	assert.Error(t, err)
}

func TestNewSplitter_ValidSizesSplitText(t *testing.T) {
	s, err := NewSplitter(10, 0, nil)
	require.NoError(t, err)

	parts, err := s.Split("this is a longer piece of text that must be split into multiple chunks")
	require.NoError(t, err)
	assert.Greater(t, len(parts), 1)
}

func TestNewSplitterWithDefaults_FillsZeroValues(t *testing.T) {
	s, err := NewSplitterWithDefaults(0, 0, 20, 5, nil)
	require.NoError(t, err)
	require.NotNil(t, s)
}
