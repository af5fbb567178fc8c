package formatprovider

import (
	"bytes"
	"context"
	"fmt"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark"

	"github.com/fyrsmithlabs/reis-engine/internal/chunking"
	"github.com/fyrsmithlabs/reis-engine/internal/sourcefile"
)

// MarkdownProvider parses Markdown directly and renders it to PDF via
// Markdown -> HTML (with syntax-highlighted code blocks) -> PDF.
type MarkdownProvider struct {
	base
	md        goldmark.Markdown
	converter *htmlToPDFConverter
}

// NewMarkdownProvider returns the "markdown" provider.
func NewMarkdownProvider(rendererBinary string) *MarkdownProvider {
	md := goldmark.New(
		goldmark.WithExtensions(
			highlighting.NewHighlighting(
				highlighting.WithFormatOptions(chromahtml.WithLineNumbers(false)),
			),
		),
	)
	return &MarkdownProvider{
		base: base{
			name:             "markdown",
			extensions:       []string{"md"},
			defaultChunkSize: defaultChunkSize,
			defaultOverlap:   defaultChunkOverlap,
			separators:       []string{"\n## ", "\n### ", "\n\n", "\n", " ", ""},
			multiprocessable: true,
		},
		md:        md,
		converter: newHTMLToPDFConverter(rendererBinary),
	}
}

func (p *MarkdownProvider) ProcessFile(ctx context.Context, file *sourcefile.File, chunkSize, chunkOverlap int) ([]chunking.Chunk, error) {
	data, err := file.Buffer()
	if err != nil {
		return nil, fmt.Errorf("markdown: read source: %w", err)
	}

	splitter, err := p.Splitter(chunkSize, chunkOverlap)
	if err != nil {
		return nil, err
	}
	fragments, err := splitter.Split(string(data))
	if err != nil {
		return nil, &ProcessingError{Status: 400, Message: fmt.Sprintf("markdown: split %s: %v", file.FileName, err)}
	}

	chunks := make([]chunking.Chunk, 0, len(fragments))
	for _, frag := range fragments {
		chunks = append(chunks, chunking.New(frag, nil))
	}
	return chunks, nil
}

func (p *MarkdownProvider) renderHTML(markdown []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := p.md.Convert(markdown, &buf); err != nil {
		return nil, fmt.Errorf("markdown: render html: %w", err)
	}
	doc := append([]byte("<html><body>"), buf.Bytes()...)
	doc = append(doc, []byte("</body></html>")...)
	return doc, nil
}

func (p *MarkdownProvider) ConvertFileToPDF(ctx context.Context, file *sourcefile.File, tempRoot string) (*sourcefile.File, error) {
	data, err := file.Buffer()
	if err != nil {
		return nil, fmt.Errorf("markdown: read source: %w", err)
	}
	return p.convertMarkdownToPDF(ctx, string(data), tempRoot, file.ID, file.FileName)
}

// convertMarkdownToPDF renders raw Markdown text (not necessarily backed by
// a SourceFile) to PDF, for callers that synthesise Markdown on the fly.
func (p *MarkdownProvider) convertMarkdownToPDF(ctx context.Context, markdown, tempRoot, id, fileName string) (*sourcefile.File, error) {
	html, err := p.renderHTML([]byte(markdown))
	if err != nil {
		return nil, err
	}
	return p.converter.convert(ctx, html, tempRoot, id, fileName)
}
