package formatprovider

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/reis-engine/internal/chunking"
	"github.com/fyrsmithlabs/reis-engine/internal/sourcefile"
)

// MSPPTProvider parses .pptx by reading its OOXML slide parts directly
// (no pack library covers PPTX text extraction; see DESIGN.md), producing
// one chunk per slide tagged with a 1-based page number, and converts to
// PDF via the office subprocess.
type MSPPTProvider struct {
	base
	converter *officeConverter
}

// NewMSPPTProvider returns the "ms-ppt" provider.
func NewMSPPTProvider(officeBinary string) *MSPPTProvider {
	return &MSPPTProvider{
		base: base{
			name:             "ms-ppt",
			extensions:       []string{"pptx"},
			defaultChunkSize: defaultChunkSize,
			defaultOverlap:   defaultChunkOverlap,
			multiprocessable: true,
		},
		converter: newOfficeConverter(officeBinary),
	}
}

type pptxTextRun struct {
	Text string `xml:",chardata"`
}

type pptxParagraph struct {
	Runs []pptxTextRun `xml:"r>t"`
}

type pptxSlideXML struct {
	Paragraphs []pptxParagraph `xml:"cSld>spTree>sp>txBody>p"`
}

func (p *MSPPTProvider) ProcessFile(ctx context.Context, file *sourcefile.File, chunkSize, chunkOverlap int) ([]chunking.Chunk, error) {
	r, err := zip.OpenReader(file.Path)
	if err != nil {
		return nil, &ProcessingError{Status: 400, Message: fmt.Sprintf("ms-ppt: open %s: %v", file.FileName, err)}
	}
	defer r.Close()

	type slide struct {
		number int
		text   string
	}
	var slides []slide

	for _, f := range r.File {
		if !strings.HasPrefix(f.Name, "ppt/slides/slide") || !strings.HasSuffix(f.Name, ".xml") {
			continue
		}
		numStr := strings.TrimSuffix(strings.TrimPrefix(f.Name, "ppt/slides/slide"), ".xml")
		num, err := strconv.Atoi(numStr)
		if err != nil {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, &ProcessingError{Status: 400, Message: fmt.Sprintf("ms-ppt: open part %s: %v", f.Name, err)}
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, &ProcessingError{Status: 400, Message: fmt.Sprintf("ms-ppt: read part %s: %v", f.Name, err)}
		}

		var parsed pptxSlideXML
		if err := xml.Unmarshal(data, &parsed); err != nil {
			return nil, &ProcessingError{Status: 400, Message: fmt.Sprintf("ms-ppt: parse part %s: %v", f.Name, err)}
		}

		var sb strings.Builder
		for _, para := range parsed.Paragraphs {
			for _, run := range para.Runs {
				sb.WriteString(run.Text)
			}
			sb.WriteString("\n")
		}

		slides = append(slides, slide{number: num, text: sb.String()})
	}

	sort.Slice(slides, func(i, j int) bool { return slides[i].number < slides[j].number })

	chunks := make([]chunking.Chunk, 0, len(slides))
	for _, s := range slides {
		chunks = append(chunks, chunking.New(s.text, map[string]any{
			chunking.MetaPage: s.number,
		}))
	}
	return chunks, nil
}

func (p *MSPPTProvider) ConvertFileToPDF(ctx context.Context, file *sourcefile.File, tempRoot string) (*sourcefile.File, error) {
	pdf, err := p.converter.convert(ctx, file, tempRoot)
	if err != nil {
		return nil, fmt.Errorf("ms-ppt: convert %s: %w", file.FileName, err)
	}
	return pdf, nil
}
