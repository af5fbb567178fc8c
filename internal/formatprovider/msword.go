package formatprovider

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	godocx "github.com/fumiama/go-docx"

	"github.com/fyrsmithlabs/reis-engine/internal/chunking"
	"github.com/fyrsmithlabs/reis-engine/internal/sourcefile"
)

// MSWordProvider parses .docx natively (paragraph text extraction) and
// converts to PDF via the office subprocess.
type MSWordProvider struct {
	base
	converter *officeConverter
}

// NewMSWordProvider returns the "ms-word" provider.
func NewMSWordProvider(officeBinary string) *MSWordProvider {
	return &MSWordProvider{
		base: base{
			name:             "ms-word",
			extensions:       []string{"docx"},
			defaultChunkSize: defaultChunkSize,
			defaultOverlap:   defaultChunkOverlap,
			multiprocessable: true,
		},
		converter: newOfficeConverter(officeBinary),
	}
}

func (p *MSWordProvider) ProcessFile(ctx context.Context, file *sourcefile.File, chunkSize, chunkOverlap int) ([]chunking.Chunk, error) {
	data, err := file.Buffer()
	if err != nil {
		return nil, fmt.Errorf("ms-word: read source: %w", err)
	}

	doc, err := godocx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &ProcessingError{Status: 400, Message: fmt.Sprintf("ms-word: parse %s: %v", file.FileName, err)}
	}

	var sb strings.Builder
	for _, item := range doc.Document.Body.Items {
		if para, ok := item.(*godocx.Paragraph); ok {
			sb.WriteString(para.String())
			sb.WriteString("\n")
		}
	}

	splitter, err := p.Splitter(chunkSize, chunkOverlap)
	if err != nil {
		return nil, err
	}
	fragments, err := splitter.Split(sb.String())
	if err != nil {
		return nil, &ProcessingError{Status: 400, Message: fmt.Sprintf("ms-word: split %s: %v", file.FileName, err)}
	}

	chunks := make([]chunking.Chunk, 0, len(fragments))
	for _, frag := range fragments {
		chunks = append(chunks, chunking.New(frag, nil))
	}
	return chunks, nil
}

func (p *MSWordProvider) ConvertFileToPDF(ctx context.Context, file *sourcefile.File, tempRoot string) (*sourcefile.File, error) {
	pdf, err := p.converter.convert(ctx, file, tempRoot)
	if err != nil {
		return nil, fmt.Errorf("ms-word: convert %s: %w", file.FileName, err)
	}
	return pdf, nil
}
