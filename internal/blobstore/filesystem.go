package blobstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fyrsmithlabs/reis-engine/internal/sourcefile"
)

// ErrPathEscape is returned when a constructed object path would resolve
// outside the configured root.
type ErrPathEscape struct {
	Root string
	Path string
}

func (e *ErrPathEscape) Error() string {
	return fmt.Sprintf("blobstore: path %q escapes root %q", e.Path, e.Root)
}

// Filesystem is a blob store rooted at a configured directory. Every path
// is constructed from the basename of the supplied id so a malicious id
// (containing "..", an absolute path, or a separator) can never escape the
// root.
type Filesystem struct {
	root string
}

// NewFilesystem creates the root directory if it does not exist and returns
// a store rooted there.
func NewFilesystem(root string) (*Filesystem, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("blobstore: ensure root %s: %w", root, err)
	}
	resolved, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("blobstore: resolve root: %w", err)
	}
	return &Filesystem{root: resolved}, nil
}

func (s *Filesystem) pathFor(docID string) (string, error) {
	base := filepath.Base(docID)
	joined := filepath.Join(s.root, base)
	resolved, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("blobstore: resolve path: %w", err)
	}
	if resolved != s.root && !strings.HasPrefix(resolved, s.root+string(filepath.Separator)) {
		return "", &ErrPathEscape{Root: s.root, Path: resolved}
	}
	return resolved, nil
}

func (s *Filesystem) AddDocument(ctx context.Context, file *sourcefile.File) error {
	path, err := s.pathFor(file.ID)
	if err != nil {
		return err
	}
	data, err := file.Buffer()
	if err != nil {
		return fmt.Errorf("blobstore: read source: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("blobstore: write object: %w", err)
	}
	return nil
}

func (s *Filesystem) Delete(ctx context.Context, docID string) error {
	path, err := s.pathFor(docID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("blobstore: delete object: %w", err)
	}
	return nil
}

func (s *Filesystem) GetDocument(ctx context.Context, docID string) (*sourcefile.File, error) {
	path, err := s.pathFor(docID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("blobstore: read object: %w", err)
	}
	// Callers delete the returned file when done, so hand out a temporary
	// copy rather than the stored object itself.
	scope, err := sourcefile.TempFile(os.TempDir(), data, ".pdf", "application/pdf", docID+".pdf")
	if err != nil {
		return nil, fmt.Errorf("blobstore: materialise object: %w", err)
	}
	scope.File.ID = docID
	return scope.File, nil
}

func (s *Filesystem) Exists(ctx context.Context, docID string) (bool, error) {
	path, err := s.pathFor(docID)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("blobstore: stat object: %w", err)
	}
	return true, nil
}
