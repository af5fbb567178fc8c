package formatprovider

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/reis-engine/internal/chunking"
	"github.com/fyrsmithlabs/reis-engine/internal/sourcefile"
)

// textProvider is the shared implementation for formats whose PDF
// conversion is "wrap the raw text in a fenced code block, then render":
// plain text, structured data files (json/xml/yaml), and source code.
type textProvider struct {
	base
	language  string
	converter *htmlToPDFConverter
}

func (p *textProvider) ProcessFile(ctx context.Context, file *sourcefile.File, chunkSize, chunkOverlap int) ([]chunking.Chunk, error) {
	data, err := file.Buffer()
	if err != nil {
		return nil, fmt.Errorf("%s: read source: %w", p.name, err)
	}

	splitter, err := p.Splitter(chunkSize, chunkOverlap)
	if err != nil {
		return nil, err
	}
	fragments, err := splitter.Split(string(data))
	if err != nil {
		return nil, &ProcessingError{Status: 400, Message: fmt.Sprintf("%s: split %s: %v", p.name, file.FileName, err)}
	}

	chunks := make([]chunking.Chunk, 0, len(fragments))
	for _, frag := range fragments {
		chunks = append(chunks, chunking.New(frag, nil))
	}
	return chunks, nil
}

func (p *textProvider) ConvertFileToPDF(ctx context.Context, file *sourcefile.File, tempRoot string) (*sourcefile.File, error) {
	data, err := file.Buffer()
	if err != nil {
		return nil, fmt.Errorf("%s: read source: %w", p.name, err)
	}
	html := fencedCodeBlockHTML(string(data), p.language)
	return p.converter.convert(ctx, html, tempRoot, file.ID, file.FileName)
}

// PlainProvider handles raw .txt files.
type PlainProvider struct{ textProvider }

// NewPlainProvider returns the "plain" provider.
func NewPlainProvider(rendererBinary string) *PlainProvider {
	return &PlainProvider{textProvider{
		base: base{
			name:             "plain",
			extensions:       []string{"txt"},
			defaultChunkSize: defaultChunkSize,
			defaultOverlap:   defaultChunkOverlap,
			multiprocessable: false,
		},
		language:  "text",
		converter: newHTMLToPDFConverter(rendererBinary),
	}}
}
