package formatprovider

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/reis-engine/internal/chunking"
	"github.com/fyrsmithlabs/reis-engine/internal/sourcefile"
)

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// HTMLProvider extracts visible text from HTML and renders the original
// markup to PDF via the headless renderer.
type HTMLProvider struct {
	base
	converter *htmlToPDFConverter
}

// NewHTMLProvider returns the "html" provider.
func NewHTMLProvider(rendererBinary string) *HTMLProvider {
	return &HTMLProvider{
		base: base{
			name:             "html",
			extensions:       []string{"html", "htm"},
			defaultChunkSize: defaultChunkSize,
			defaultOverlap:   defaultChunkOverlap,
			multiprocessable: true,
		},
		converter: newHTMLToPDFConverter(rendererBinary),
	}
}

func extractText(html string) string {
	text := htmlTagPattern.ReplaceAllString(html, " ")
	text = strings.Join(strings.Fields(text), " ")
	return text
}

func (p *HTMLProvider) ProcessFile(ctx context.Context, file *sourcefile.File, chunkSize, chunkOverlap int) ([]chunking.Chunk, error) {
	data, err := file.Buffer()
	if err != nil {
		return nil, fmt.Errorf("html: read source: %w", err)
	}

	text := extractText(string(data))

	splitter, err := p.Splitter(chunkSize, chunkOverlap)
	if err != nil {
		return nil, err
	}
	fragments, err := splitter.Split(text)
	if err != nil {
		return nil, &ProcessingError{Status: 400, Message: fmt.Sprintf("html: split %s: %v", file.FileName, err)}
	}

	chunks := make([]chunking.Chunk, 0, len(fragments))
	for _, frag := range fragments {
		chunks = append(chunks, chunking.New(frag, nil))
	}
	return chunks, nil
}

func (p *HTMLProvider) ConvertFileToPDF(ctx context.Context, file *sourcefile.File, tempRoot string) (*sourcefile.File, error) {
	data, err := file.Buffer()
	if err != nil {
		return nil, fmt.Errorf("html: read source: %w", err)
	}
	return p.converter.convert(ctx, data, tempRoot, file.ID, file.FileName)
}
