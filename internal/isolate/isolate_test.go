package isolate

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/reis-engine/internal/formatprovider"
	"github.com/fyrsmithlabs/reis-engine/internal/sourcefile"
)

func TestHarness_RunsInThreadWhenSelfPathEmpty(t *testing.T) {
	h := NewHarness("", nil, 1)
	reg := formatprovider.NewRegistry(formatprovider.NewPlainProvider(""))
	provider := reg.ByName("plain")

	dir := t.TempDir()
	scope, err := sourcefile.TempFile(dir, []byte("hello world"), ".txt", "text/plain", "notes.txt")
	require.NoError(t, err)
	defer scope.Close()

	chunks, err := h.ProcessFile(context.Background(), provider, scope.File, 1000, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Content, "hello world")
}

func TestHarness_RunsInThreadBelowThreshold(t *testing.T) {
	h := NewHarness("/some/self/path/that/would/fail/if/invoked", nil, 1_000_000)
	reg := formatprovider.NewRegistry(formatprovider.NewPlainProvider(""))
	provider := reg.ByName("plain")

	dir := t.TempDir()
	scope, err := sourcefile.TempFile(dir, []byte("small"), ".txt", "text/plain", "notes.txt")
	require.NoError(t, err)
	defer scope.Close()

	chunks, err := h.ProcessFile(context.Background(), provider, scope.File, 1000, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
}

func TestRunWorker_ProcessFileRoundTrip(t *testing.T) {
	reg := formatprovider.NewRegistry(formatprovider.NewPlainProvider(""))

	dir := t.TempDir()
	scope, err := sourcefile.TempFile(dir, []byte("worker content"), ".txt", "text/plain", "notes.txt")
	require.NoError(t, err)
	defer scope.Close()

	job := Job{
		Op:           opProcessFile,
		Provider:     "plain",
		FileID:       scope.File.ID,
		FilePath:     scope.File.Path,
		FileMIME:     scope.File.MimeType,
		FileName:     scope.File.FileName,
		ChunkSize:    1000,
		ChunkOverlap: 0,
	}
	payload, err := json.Marshal(job)
	require.NoError(t, err)

	var out bytes.Buffer
	err = RunWorker(context.Background(), reg, bytes.NewReader(payload), &out)
	require.NoError(t, err)

	var res result
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	require.Nil(t, res.Err)
	require.Len(t, res.Chunks, 1)
	assert.Contains(t, res.Chunks[0].Content, "worker content")
}

func TestRunWorker_UnknownProviderReportsInternalError(t *testing.T) {
	reg := formatprovider.NewRegistry(formatprovider.NewPlainProvider(""))
	job := Job{Op: opProcessFile, Provider: "does-not-exist"}
	payload, err := json.Marshal(job)
	require.NoError(t, err)

	var out bytes.Buffer
	err = RunWorker(context.Background(), reg, bytes.NewReader(payload), &out)
	require.NoError(t, err)

	var res result
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	require.NotNil(t, res.Err)
	assert.Equal(t, "internal", res.Err.Kind)
}

func TestJobError_RestoreReconstructsProcessingError(t *testing.T) {
	je := &jobError{Kind: "processing", Message: "bad file", Status: 400}
	err := je.restore()
	var pe *formatprovider.ProcessingError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 400, pe.Status)
	assert.Equal(t, "bad file", pe.Message)
}
