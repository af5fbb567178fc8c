package formatprovider

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/fyrsmithlabs/reis-engine/internal/chunking"
	"github.com/fyrsmithlabs/reis-engine/internal/sourcefile"
)

// MSExcelProvider parses .xlsx natively, producing one chunk per sheet
// tagged with a 1-based page number, and converts to PDF via the office
// subprocess.
type MSExcelProvider struct {
	base
	converter *officeConverter
}

// NewMSExcelProvider returns the "ms-excel" provider.
func NewMSExcelProvider(officeBinary string) *MSExcelProvider {
	return &MSExcelProvider{
		base: base{
			name:             "ms-excel",
			extensions:       []string{"xlsx"},
			defaultChunkSize: defaultChunkSize,
			defaultOverlap:   defaultChunkOverlap,
			multiprocessable: true,
		},
		converter: newOfficeConverter(officeBinary),
	}
}

func (p *MSExcelProvider) ProcessFile(ctx context.Context, file *sourcefile.File, chunkSize, chunkOverlap int) ([]chunking.Chunk, error) {
	f, err := excelize.OpenFile(file.Path)
	if err != nil {
		return nil, &ProcessingError{Status: 400, Message: fmt.Sprintf("ms-excel: open %s: %v", file.FileName, err)}
	}
	defer f.Close()

	var chunks []chunking.Chunk
	for i, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, &ProcessingError{Status: 400, Message: fmt.Sprintf("ms-excel: read sheet %s: %v", sheet, err)}
		}

		var sb strings.Builder
		sb.WriteString(sheet)
		sb.WriteString("\n")
		for _, row := range rows {
			sb.WriteString(strings.Join(row, "\t"))
			sb.WriteString("\n")
		}

		chunks = append(chunks, chunking.New(sb.String(), map[string]any{
			chunking.MetaPage: i + 1,
		}))
	}
	return chunks, nil
}

func (p *MSExcelProvider) ConvertFileToPDF(ctx context.Context, file *sourcefile.File, tempRoot string) (*sourcefile.File, error) {
	pdf, err := p.converter.convert(ctx, file, tempRoot)
	if err != nil {
		return nil, fmt.Errorf("ms-excel: convert %s: %w", file.FileName, err)
	}
	return pdf, nil
}
