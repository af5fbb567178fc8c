// Package formatprovider dispatches ingested files to the provider that
// understands their format: parsing to chunks, splitting, and rendering a
// canonical PDF.
package formatprovider

import (
	"context"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/reis-engine/internal/chunking"
	"github.com/fyrsmithlabs/reis-engine/internal/sourcefile"
)

// ProcessingError is a structured failure a provider reports for a file it
// claims to support but cannot parse or convert. Status mirrors the HTTP
// status the orchestration boundary should surface.
type ProcessingError struct {
	Status  int
	Message string
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("formatprovider: %d: %s", e.Status, e.Message)
}

// ConversionError wraps a non-zero subprocess exit (office conversion,
// HTML-to-PDF rendering) with its diagnostic output.
type ConversionError struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Cause    error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("formatprovider: conversion failed (exit %d): %s", e.ExitCode, e.Stderr)
}

func (e *ConversionError) Unwrap() error { return e.Cause }

// Provider is the capability set every concrete format understands.
type Provider interface {
	// Name is the stable string used as the "format" tag in chunk metadata.
	Name() string

	// Extensions lists the filename suffixes (no leading dot, lowercase)
	// this provider claims.
	Extensions() []string

	// Supports reports whether file should be dispatched to this provider.
	// The default is an extension suffix match; providers needing
	// MIME-based rules (mail) override it.
	Supports(file *sourcefile.File) bool

	// Splitter returns a recursive character splitter parameterised by
	// validated sizes, falling back to provider defaults when zero.
	Splitter(chunkSize, chunkOverlap int) (*chunking.Splitter, error)

	// ProcessFile parses file into chunks with provider-specific metadata,
	// then runs the splitter over the parsed text.
	ProcessFile(ctx context.Context, file *sourcefile.File, chunkSize, chunkOverlap int) ([]chunking.Chunk, error)

	// ConvertFileToPDF writes a canonical PDF rendering to a fresh temp
	// path under tempRoot. The returned SourceFile carries id=file.ID,
	// MIME application/pdf, and file's original FileName.
	ConvertFileToPDF(ctx context.Context, file *sourcefile.File, tempRoot string) (*sourcefile.File, error)

	// CleanUp is a post-search hook run on a chunk before it reaches the
	// caller. The default is identity.
	CleanUp(chunk chunking.Chunk) chunking.Chunk

	// Multiprocessable reports whether this provider is safe and useful to
	// run in an isolated worker process for large files.
	Multiprocessable() bool
}

// base implements the defaults shared by every concrete provider:
// extension-suffix Supports, identity CleanUp, and a sized splitter with
// provider-level defaults. Concrete providers embed base and override what
// they need.
type base struct {
	name             string
	extensions       []string
	defaultChunkSize int
	defaultOverlap   int
	separators       []string
	multiprocessable bool
}

func (b base) Name() string            { return b.name }
func (b base) Extensions() []string    { return b.extensions }
func (b base) Multiprocessable() bool  { return b.multiprocessable }
func (b base) CleanUp(c chunking.Chunk) chunking.Chunk { return c }

func (b base) Supports(file *sourcefile.File) bool {
	ext := file.Ext()
	for _, e := range b.extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func (b base) Splitter(chunkSize, chunkOverlap int) (*chunking.Splitter, error) {
	return chunking.NewSplitterWithDefaults(chunkSize, chunkOverlap, b.defaultChunkSize, b.defaultOverlap, b.separators)
}

const defaultChunkSize = 1000
const defaultChunkOverlap = 200

// hasSuffixFold reports whether name ends with suffix, case-insensitively.
func hasSuffixFold(name, suffix string) bool {
	return strings.HasSuffix(strings.ToLower(name), strings.ToLower(suffix))
}
