package formatprovider

import (
	"bytes"
	"context"
	"fmt"
	"io"

	ledongthucpdf "github.com/ledongthuc/pdf"
	dslipakpdf "github.com/dslipak/pdf"

	"github.com/fyrsmithlabs/reis-engine/internal/chunking"
	"github.com/fyrsmithlabs/reis-engine/internal/sourcefile"
)

// PDFProvider parses PDF text with a tolerant primary parser, falling back
// to a second parser on failure, and copies the input through unchanged as
// its own PDF conversion (the source is already the canonical rendering).
type PDFProvider struct {
	base
}

// NewPDFProvider returns the "pdf" provider.
func NewPDFProvider() *PDFProvider {
	return &PDFProvider{base: base{
		name:             "pdf",
		extensions:       []string{"pdf"},
		defaultChunkSize: defaultChunkSize,
		defaultOverlap:   defaultChunkOverlap,
		multiprocessable: true,
	}}
}

// pageText is parsed text for one 1-based page.
type pageText struct {
	Page int
	Text string
}

func (p *PDFProvider) ProcessFile(ctx context.Context, file *sourcefile.File, chunkSize, chunkOverlap int) ([]chunking.Chunk, error) {
	pages, err := parsePDFPages(file.Path)
	if err != nil {
		return nil, &ProcessingError{Status: 400, Message: fmt.Sprintf("pdf: unable to parse %s: %v", file.FileName, err)}
	}

	splitter, err := p.Splitter(chunkSize, chunkOverlap)
	if err != nil {
		return nil, err
	}

	var chunks []chunking.Chunk
	for _, pg := range pages {
		fragments, err := splitter.Split(pg.Text)
		if err != nil {
			return nil, &ProcessingError{Status: 400, Message: fmt.Sprintf("pdf: split page %d: %v", pg.Page, err)}
		}
		for _, frag := range fragments {
			chunks = append(chunks, chunking.New(frag, map[string]any{
				chunking.MetaPage: pg.Page,
			}))
		}
	}
	return chunks, nil
}

// parsePDFPages tries the primary tolerant parser, falling back to a second
// implementation if the first fails to open or read the document.
func parsePDFPages(path string) ([]pageText, error) {
	pages, err := parseWithLedongthuc(path)
	if err == nil {
		return pages, nil
	}
	fallbackPages, fallbackErr := parseWithDslipak(path)
	if fallbackErr == nil {
		return fallbackPages, nil
	}
	return nil, fmt.Errorf("primary parser: %v; fallback parser: %v", err, fallbackErr)
}

func parseWithLedongthuc(path string) ([]pageText, error) {
	f, r, err := ledongthucpdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pages []pageText
	total := r.NumPage()
	for i := 1; i <= total; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		var buf bytes.Buffer
		rdr, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if _, err := io.Copy(&buf, rdr); err != nil {
			continue
		}
		pages = append(pages, pageText{Page: i, Text: buf.String()})
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no extractable pages")
	}
	return pages, nil
}

func parseWithDslipak(path string) ([]pageText, error) {
	r, err := dslipakpdf.Open(path)
	if err != nil {
		return nil, err
	}

	var pages []pageText
	total := r.NumPage()
	for i := 1; i <= total; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pages = append(pages, pageText{Page: i, Text: text})
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no extractable pages")
	}
	return pages, nil
}

// ConvertFileToPDF copies the already-PDF input to a fresh temp path; the
// pdf provider's PDF conversion is an identity copy.
func (p *PDFProvider) ConvertFileToPDF(ctx context.Context, file *sourcefile.File, tempRoot string) (*sourcefile.File, error) {
	data, err := file.Buffer()
	if err != nil {
		return nil, fmt.Errorf("pdf: read source: %w", err)
	}
	scope, err := sourcefile.TempFile(tempRoot, data, ".pdf", "application/pdf", file.FileName)
	if err != nil {
		return nil, fmt.Errorf("pdf: write copy: %w", err)
	}
	scope.File.ID = file.ID
	return scope.File, nil
}
