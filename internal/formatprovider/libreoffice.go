package formatprovider

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/reis-engine/internal/chunking"
	"github.com/fyrsmithlabs/reis-engine/internal/sourcefile"
)

// LibreOfficeProvider handles OpenDocument formats by delegating both
// parsing and PDF conversion to the LibreOffice headless subprocess: the
// file is converted to PDF, then the pdf provider's tolerant text parser
// runs over that PDF, guaranteeing parsed chunks match the stored PDF.
type LibreOfficeProvider struct {
	base
	converter *officeConverter
	parser    *PDFProvider
	tempRoot  string
}

// NewLibreOfficeProvider returns the "libre-office" provider. tempRoot is
// the configured temp root under which intermediate PDF conversions for
// ProcessFile are created and immediately cleaned up.
func NewLibreOfficeProvider(officeBinary, tempRoot string) *LibreOfficeProvider {
	return &LibreOfficeProvider{
		base: base{
			name:             "libre-office",
			extensions:       []string{"odp", "ods", "odt"},
			defaultChunkSize: defaultChunkSize,
			defaultOverlap:   defaultChunkOverlap,
			multiprocessable: true,
		},
		converter: newOfficeConverter(officeBinary),
		parser:    NewPDFProvider(),
		tempRoot:  tempRoot,
	}
}

func (p *LibreOfficeProvider) ProcessFile(ctx context.Context, file *sourcefile.File, chunkSize, chunkOverlap int) ([]chunking.Chunk, error) {
	pdf, err := p.converter.convert(ctx, file, p.tempRoot)
	if err != nil {
		return nil, err
	}
	defer pdf.Delete()

	return p.parser.ProcessFile(ctx, pdf, chunkSize, chunkOverlap)
}

func (p *LibreOfficeProvider) ConvertFileToPDF(ctx context.Context, file *sourcefile.File, tempRoot string) (*sourcefile.File, error) {
	pdf, err := p.converter.convert(ctx, file, tempRoot)
	if err != nil {
		return nil, fmt.Errorf("libre-office: convert %s: %w", file.FileName, err)
	}
	return pdf, nil
}
