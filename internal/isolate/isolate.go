// Package isolate decides, per call, whether a format-provider operation
// runs in the caller or in a freshly-spawned worker process, and carries the
// result (or the exact error) back across that boundary.
package isolate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"

	"github.com/fyrsmithlabs/reis-engine/internal/chunking"
	"github.com/fyrsmithlabs/reis-engine/internal/formatprovider"
	"github.com/fyrsmithlabs/reis-engine/internal/sourcefile"
)

// defaultThreshold is the byte size above which isolation engages when the
// caller does not override it.
const defaultThreshold = 100_000

// opKind names the operation a Job asks the worker to perform.
type opKind string

const (
	opProcessFile      opKind = "process_file"
	opConvertFileToPDF opKind = "convert_to_pdf"
)

// Job is the serialised request sent to a worker process over its stdin.
type Job struct {
	Op           opKind `json:"op"`
	Provider     string `json:"provider"`
	FileID       string `json:"file_id"`
	FilePath     string `json:"file_path"`
	FileMIME     string `json:"file_mime"`
	FileName     string `json:"file_name"`
	ChunkSize    int    `json:"chunk_size"`
	ChunkOverlap int    `json:"chunk_overlap"`
	TempRoot     string `json:"temp_root"`
}

// jobError carries enough of an original error's shape to reconstruct its
// exact kind in the parent process.
type jobError struct {
	Kind     string `json:"kind"`
	Message  string `json:"message"`
	Status   int    `json:"status,omitempty"`
	ExitCode int    `json:"exit_code,omitempty"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
}

// result is the serialised response a worker writes to its stdout.
type result struct {
	Chunks []chunking.Chunk `json:"chunks,omitempty"`
	PDF    *pdfResult       `json:"pdf,omitempty"`
	Err    *jobError        `json:"error,omitempty"`
}

type pdfResult struct {
	ID        string `json:"id"`
	Path      string `json:"path"`
	MimeType  string `json:"mime_type"`
	FileName  string `json:"file_name"`
	DeleteDir bool   `json:"delete_dir"`
}

func classify(err error) *jobError {
	if err == nil {
		return nil
	}
	var pe *formatprovider.ProcessingError
	if errors.As(err, &pe) {
		return &jobError{Kind: "processing", Message: pe.Message, Status: pe.Status}
	}
	var ce *formatprovider.ConversionError
	if errors.As(err, &ce) {
		return &jobError{Kind: "conversion", Message: err.Error(), ExitCode: ce.ExitCode, Stdout: ce.Stdout, Stderr: ce.Stderr}
	}
	return &jobError{Kind: "internal", Message: err.Error()}
}

func (e *jobError) restore() error {
	switch e.Kind {
	case "processing":
		return &formatprovider.ProcessingError{Status: e.Status, Message: e.Message}
	case "conversion":
		return &formatprovider.ConversionError{ExitCode: e.ExitCode, Stdout: e.Stdout, Stderr: e.Stderr, Cause: errors.New(e.Message)}
	default:
		return fmt.Errorf("isolate: worker: %s", e.Message)
	}
}

// Harness decides whether to run a provider operation in-thread or hand it
// to a spawned worker process, and transports the result or exact error
// back to the caller unconditionally.
type Harness struct {
	// SelfPath is the executable re-invoked as a worker. Empty disables
	// isolation entirely (every call runs in-thread).
	SelfPath string
	// WorkerArgs are the leading args that select the worker subcommand,
	// e.g. []string{"isolate-worker"}.
	WorkerArgs []string
	// Threshold is the byte size at or above which isolation engages.
	// NewHarness substitutes the default of 100,000 bytes for zero.
	Threshold int64
}

// NewHarness returns a Harness with the given self-invocation command and
// threshold (0 for the default).
func NewHarness(selfPath string, workerArgs []string, threshold int64) *Harness {
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	return &Harness{SelfPath: selfPath, WorkerArgs: workerArgs, Threshold: threshold}
}

func (h *Harness) shouldIsolate(provider formatprovider.Provider, file *sourcefile.File) bool {
	if h.SelfPath == "" || !provider.Multiprocessable() {
		return false
	}
	size, err := file.Size()
	if err != nil {
		return false
	}
	return size >= h.Threshold
}

// ProcessFile runs provider.ProcessFile either in-thread or in a worker,
// per the size/multiprocessable decision, re-raising the worker's exact
// error kind when isolated.
func (h *Harness) ProcessFile(ctx context.Context, provider formatprovider.Provider, file *sourcefile.File, chunkSize, chunkOverlap int) ([]chunking.Chunk, error) {
	if !h.shouldIsolate(provider, file) {
		return provider.ProcessFile(ctx, file, chunkSize, chunkOverlap)
	}

	job := Job{
		Op:           opProcessFile,
		Provider:     provider.Name(),
		FileID:       file.ID,
		FilePath:     file.Path,
		FileMIME:     file.MimeType,
		FileName:     file.FileName,
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
	}
	res, err := h.run(ctx, job)
	if err != nil {
		return nil, err
	}
	if res.Err != nil {
		return nil, res.Err.restore()
	}
	return res.Chunks, nil
}

// ConvertFileToPDF runs provider.ConvertFileToPDF either in-thread or in a
// worker, per the size/multiprocessable decision.
func (h *Harness) ConvertFileToPDF(ctx context.Context, provider formatprovider.Provider, file *sourcefile.File, tempRoot string) (*sourcefile.File, error) {
	if !h.shouldIsolate(provider, file) {
		return provider.ConvertFileToPDF(ctx, file, tempRoot)
	}

	job := Job{
		Op:       opConvertFileToPDF,
		Provider: provider.Name(),
		FileID:   file.ID,
		FilePath: file.Path,
		FileMIME: file.MimeType,
		FileName: file.FileName,
		TempRoot: tempRoot,
	}
	res, err := h.run(ctx, job)
	if err != nil {
		return nil, err
	}
	if res.Err != nil {
		return nil, res.Err.restore()
	}
	if res.PDF == nil {
		return nil, fmt.Errorf("isolate: worker returned no pdf result")
	}
	return sourcefile.New(res.PDF.ID, res.PDF.Path, res.PDF.MimeType, res.PDF.FileName, res.PDF.DeleteDir), nil
}

// run spawns the worker, writes job to its stdin as JSON, and blocks until
// it writes a result to stdout and exits. The caller always joins the
// worker; a worker that never exits blocks the caller until ctx is
// cancelled, at which point exec.CommandContext kills it.
func (h *Harness) run(ctx context.Context, job Job) (*result, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("isolate: marshal job: %w", err)
	}

	cmd := exec.CommandContext(ctx, h.SelfPath, h.WorkerArgs...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runErr != nil && stdout.Len() == 0 {
		return nil, fmt.Errorf("isolate: worker process failed: %w (stderr: %s)", runErr, stderr.String())
	}

	var res result
	if err := json.Unmarshal(stdout.Bytes(), &res); err != nil {
		return nil, fmt.Errorf("isolate: decode worker result: %w (stderr: %s)", err, stderr.String())
	}
	return &res, nil
}

// RunWorker is the worker-side entrypoint: it reads a single Job from r,
// executes the named provider's operation in this process, and writes the
// single result to w. Intended to be called from a hidden CLI subcommand
// that the parent process re-invokes via Harness.
func RunWorker(ctx context.Context, registry *formatprovider.Registry, r io.Reader, w io.Writer) error {
	var job Job
	dec := json.NewDecoder(r)
	if err := dec.Decode(&job); err != nil {
		return fmt.Errorf("isolate: worker: decode job: %w", err)
	}

	provider := registry.ByName(job.Provider)
	if provider == nil {
		return writeResult(w, &result{Err: &jobError{Kind: "internal", Message: fmt.Sprintf("unknown provider %q", job.Provider)}})
	}

	file := sourcefile.New(job.FileID, job.FilePath, job.FileMIME, job.FileName, false)

	switch job.Op {
	case opProcessFile:
		chunks, err := provider.ProcessFile(ctx, file, job.ChunkSize, job.ChunkOverlap)
		if err != nil {
			return writeResult(w, &result{Err: classify(err)})
		}
		return writeResult(w, &result{Chunks: chunks})

	case opConvertFileToPDF:
		pdf, err := provider.ConvertFileToPDF(ctx, file, job.TempRoot)
		if err != nil {
			return writeResult(w, &result{Err: classify(err)})
		}
		return writeResult(w, &result{PDF: &pdfResult{
			ID:        pdf.ID,
			Path:      pdf.Path,
			MimeType:  pdf.MimeType,
			FileName:  pdf.FileName,
			DeleteDir: pdf.DeleteDir,
		}})

	default:
		return writeResult(w, &result{Err: &jobError{Kind: "internal", Message: fmt.Sprintf("unknown op %q", job.Op)}})
	}
}

func writeResult(w io.Writer, res *result) error {
	enc := json.NewEncoder(w)
	return enc.Encode(res)
}
