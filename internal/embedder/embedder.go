// Package embedder wraps langchaingo's embedding abstraction behind the
// single-string vectorstore.Embedder contract, supporting both a local TEI
// (Text Embeddings Inference) server and any OpenAI-compatible endpoint.
package embedder

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrEmptyInput indicates empty input text was passed to Embed.
var ErrEmptyInput = errors.New("embedder: empty input text")

// ErrInvalidConfig indicates invalid configuration.
var ErrInvalidConfig = errors.New("embedder: invalid configuration")

// Config holds the embedding endpoint configuration.
type Config struct {
	// BaseURL is the OpenAI-compatible base URL, e.g. http://localhost:8080/v1
	// for TEI or https://api.openai.com/v1 for OpenAI.
	BaseURL string
	// Model is the embedding model name.
	Model string
	// APIKey authenticates against BaseURL; optional for TEI, required for OpenAI.
	APIKey string
}

// Validate checks that the configuration carries the fields Embedder needs.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base url required", ErrInvalidConfig)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	return nil
}

// Embedder generates vector embeddings through an OpenAI-compatible
// endpoint, satisfying vectorstore.Embedder.
type Embedder struct {
	inner embeddings.Embedder
}

// New builds an Embedder from config. TEI servers typically require no API
// key; langchaingo's OpenAI client still requires a non-empty token, so a
// placeholder is substituted when APIKey is unset.
func New(config Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = "placeholder"
	}

	llm, err := openai.New(
		openai.WithBaseURL(config.BaseURL),
		openai.WithEmbeddingModel(config.Model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("embedder: create openai client: %w", err)
	}

	inner, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("embedder: create embedder: %w", err)
	}

	return &Embedder{inner: inner}, nil
}

// Embed returns the embedding vector for a single piece of text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	vectors, err := e.inner.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embedder: embed documents: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder: provider returned no vectors")
	}
	return vectors[0], nil
}

// EmbedBatch returns one embedding vector per input text, in order. It is a
// thin convenience over the underlying batched API; the vector-store
// backends embed one chunk at a time through Embed and do not call it.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	vectors, err := e.inner.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedder: embed documents: %w", err)
	}
	return vectors, nil
}
