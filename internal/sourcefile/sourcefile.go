// Package sourcefile names an on-disk byte stream carried through the
// ingestion pipeline: a file identity, its MIME type and original name, and
// whether destroying it should also remove its containing directory.
package sourcefile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrPathEscape is returned when a constructed path would resolve outside
// its permitted root.
type ErrPathEscape struct {
	Root string
	Path string
}

func (e *ErrPathEscape) Error() string {
	return fmt.Sprintf("sourcefile: path %q escapes root %q", e.Path, e.Root)
}

// File is a value object naming a file on disk. Instances are effectively
// immutable once constructed; a File that no longer points at a readable
// regular file must not be used.
type File struct {
	ID        string
	Path      string
	MimeType  string
	FileName  string
	DeleteDir bool
}

// New wraps an existing path under the given id. The file is not created;
// the caller is asserting it already exists at Path.
func New(id, path, mimeType, fileName string, deleteDir bool) *File {
	return &File{
		ID:        id,
		Path:      path,
		MimeType:  mimeType,
		FileName:  fileName,
		DeleteDir: deleteDir,
	}
}

// Size returns the current size on disk.
func (f *File) Size() (int64, error) {
	info, err := os.Stat(f.Path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Buffer reads the full byte content of the file.
func (f *File) Buffer() ([]byte, error) {
	return os.ReadFile(f.Path)
}

// Ext returns the filename suffix without a leading dot, lowercased.
func (f *File) Ext() string {
	ext := filepath.Ext(f.FileName)
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// Delete removes the underlying file and, if DeleteDir is set, its
// containing directory. Missing files are not an error.
func (f *File) Delete() error {
	if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("sourcefile: delete %s: %w", f.Path, err)
	}
	if f.DeleteDir {
		dir := filepath.Dir(f.Path)
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("sourcefile: delete dir %s: %w", dir, err)
		}
	}
	return nil
}

// newPathUnder joins root with a basename derived from name and verifies
// the resolved path does not escape root.
func newPathUnder(root, name string) (string, error) {
	base := filepath.Base(name)
	joined := filepath.Join(root, base)
	resolvedRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("sourcefile: resolve root: %w", err)
	}
	resolvedPath, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("sourcefile: resolve path: %w", err)
	}
	if resolvedPath != resolvedRoot && !strings.HasPrefix(resolvedPath, resolvedRoot+string(filepath.Separator)) {
		return "", &ErrPathEscape{Root: resolvedRoot, Path: resolvedPath}
	}
	return resolvedPath, nil
}

// Scope is a scoped temporary file: Close unconditionally deletes it.
type Scope struct {
	File *File
}

// Close deletes the scoped file. Safe to call multiple times.
func (s *Scope) Close() error {
	if s.File == nil {
		return nil
	}
	return s.File.Delete()
}

// TempFile writes bytes to a fresh file under root and returns a Scope
// guaranteeing its deletion when the scope is closed. extension is
// normalised to carry a leading dot if one is missing; it may be empty.
// fileName defaults to the generated name when empty; mimeType is stored
// as given and may be empty.
func TempFile(root string, data []byte, extension, mimeType, fileName string) (*Scope, error) {
	if extension != "" && !strings.HasPrefix(extension, ".") {
		extension = "." + extension
	}

	id := uuid.NewString()
	generatedName := id + extension

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("sourcefile: ensure temp root: %w", err)
	}

	path, err := newPathUnder(root, generatedName)
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, fmt.Errorf("sourcefile: write temp file: %w", err)
	}

	if fileName == "" {
		fileName = generatedName
	}

	return &Scope{
		File: &File{
			ID:        id,
			Path:      path,
			MimeType:  mimeType,
			FileName:  fileName,
			DeleteDir: false,
		},
	}, nil
}

// TempDir creates a fresh, uniquely-named directory under root, for callers
// that need an isolated working area (office conversion profiles, per-call
// output directories). The caller is responsible for removing it, typically
// via a File with DeleteDir set or a direct os.RemoveAll.
func TempDir(root, prefix string) (string, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("sourcefile: ensure temp root: %w", err)
	}
	dir, err := os.MkdirTemp(root, prefix+"-*")
	if err != nil {
		return "", fmt.Errorf("sourcefile: create temp dir: %w", err)
	}
	resolvedRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("sourcefile: resolve root: %w", err)
	}
	resolvedDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("sourcefile: resolve dir: %w", err)
	}
	if !strings.HasPrefix(resolvedDir, resolvedRoot+string(filepath.Separator)) {
		return "", &ErrPathEscape{Root: resolvedRoot, Path: resolvedDir}
	}
	return dir, nil
}
