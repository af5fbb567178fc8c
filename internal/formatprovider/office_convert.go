package formatprovider

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/fyrsmithlabs/reis-engine/internal/sourcefile"
)

// officeConverter runs a LibreOffice headless conversion to PDF, isolating
// each invocation behind a fresh user-profile directory (always removed)
// and a fresh output directory (removed via the returned SourceFile's
// DeleteDir flag, once the caller is done with it).
type officeConverter struct {
	binary string
}

func newOfficeConverter(binary string) *officeConverter {
	if binary == "" {
		binary = "soffice"
	}
	return &officeConverter{binary: binary}
}

// convert renders file to PDF under tempRoot and returns the resulting
// SourceFile with id=file.ID, MIME application/pdf, and DeleteDir set so
// the caller's cleanup removes the whole per-call output directory.
func (c *officeConverter) convert(ctx context.Context, file *sourcefile.File, tempRoot string) (*sourcefile.File, error) {
	profileDir, err := sourcefile.TempDir(tempRoot, "office-profile")
	if err != nil {
		return nil, fmt.Errorf("formatprovider: create office profile dir: %w", err)
	}
	defer os.RemoveAll(profileDir)

	outDir, err := sourcefile.TempDir(tempRoot, "office-out")
	if err != nil {
		return nil, fmt.Errorf("formatprovider: create office output dir: %w", err)
	}

	profileURL := "file://" + profileDir
	cmd := exec.CommandContext(ctx, c.binary,
		"--headless",
		"--convert-to", "pdf",
		"--outdir", outDir,
		"-env:UserInstallation="+profileURL,
		file.Path,
	)

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

	base := strings.TrimSuffix(filepath.Base(file.Path), filepath.Ext(file.Path))
	outPath := filepath.Join(outDir, base+".pdf")
	if _, err := os.Stat(outPath); err != nil {
		os.RemoveAll(outDir)
		return nil, &ConversionError{
			ExitCode: 0,
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Cause:    fmt.Errorf("formatprovider: expected output %s not produced: %w", outPath, err),
		}
	}

	return sourcefile.New(file.ID, outPath, "application/pdf", file.FileName, true), nil
}
