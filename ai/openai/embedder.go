package openai

import (
	"context"
	"log/slog"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/PiloTracer/aiagents/ai"
)

// Embedder implements ai.Embedder using OpenAI-compatible embedding
// APIs. It serves both the hosted OpenAI API and local OpenAI-compatible
// services such as Ollama, LocalAI and vLLM.
type Embedder struct {
	embedder embeddings.Embedder
	logger   *slog.Logger
}

// NewEmbedder creates an embedder from the provided configuration.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Local OpenAI-compatible services usually accept any token; "none"
	// keeps the client happy when no key is configured.
	token := config.APIKey
	if token == "" {
		token = "none"
	}

	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithEmbeddingModel(config.Model),
	}
	if config.Host != "" {
		opts = append(opts, openai.WithBaseURL(config.Host))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}

	return &Embedder{
		embedder: embedder,
		logger:   slog.Default().With("component", "openai-embedder"),
	}, nil
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embedder.EmbedDocuments(ctx, []string{text})
	if err != nil {
		e.logger.Error("failed to generate embedding", "err", err)
		return nil, err
	}
	if len(vectors) == 0 {
		e.logger.Warn("embedder returned empty result")
		return []float32{}, nil
	}
	return vectors[0], nil
}

// EmbedTexts generates vector embeddings for multiple text strings in a batch.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("generating embeddings for texts", "count", len(texts))

	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, err
	}
	return vectors, nil
}
