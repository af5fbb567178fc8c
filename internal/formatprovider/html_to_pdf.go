package formatprovider

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/fyrsmithlabs/reis-engine/internal/sourcefile"
)

// htmlToPDFConverter renders HTML to PDF via a headless renderer subprocess.
// The examples pack carries no pure-Go HTML-to-PDF renderer with print
// fidelity (headers, page breaks, syntax-highlighted code blocks), so this
// shells out the same way office conversion does (see DESIGN.md).
type htmlToPDFConverter struct {
	binary string
}

func newHTMLToPDFConverter(binary string) *htmlToPDFConverter {
	if binary == "" {
		binary = "wkhtmltopdf"
	}
	return &htmlToPDFConverter{binary: binary}
}

// convert writes html to a temp .html file, renders it to PDF under
// tempRoot, and returns the PDF as a fresh SourceFile with DeleteDir set.
func (c *htmlToPDFConverter) convert(ctx context.Context, html []byte, tempRoot, id, fileName string) (*sourcefile.File, error) {
	htmlScope, err := sourcefile.TempFile(tempRoot, html, ".html", "text/html", "")
	if err != nil {
		return nil, fmt.Errorf("formatprovider: write intermediate html: %w", err)
	}
	defer htmlScope.Close()

	outDir, err := sourcefile.TempDir(tempRoot, "html-out")
	if err != nil {
		return nil, fmt.Errorf("formatprovider: create html output dir: %w", err)
	}

	outPath := outDir + "/" + id + ".pdf"

	cmd := exec.CommandContext(ctx, c.binary, "--quiet", htmlScope.File.Path, outPath)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		os.RemoveAll(outDir)
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		return nil, &ConversionError{
			ExitCode: exitCode,
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Cause:    err,
		}
	}

	return sourcefile.New(id, outPath, "application/pdf", fileName, true), nil
}

// fencedCodeBlockHTML wraps text as a fenced code block inside a minimal
// HTML document, used by the plain, data-file, and code providers to reach
// the HTML-to-PDF path with a readable rendering.
func fencedCodeBlockHTML(text, language string) []byte {
	escaped := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(text)
	doc := "<html><body><pre><code class=\"language-" + language + "\">" + escaped + "</code></pre></body></html>"
	return []byte(doc)
}
