package ollamaembed

import (
	"context"
	"log/slog"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/PiloTracer/aiagents/ai"
)

// Embedder implements ai.Embedder against a self-hosted Ollama model
// server through its native API.
type Embedder struct {
	embedder embeddings.Embedder
	logger   *slog.Logger
}

// NewEmbedder creates an embedder talking to the Ollama server named in
// the configuration.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := ollama.New(
		ollama.WithServerURL(config.Host),
		ollama.WithModel(config.Model),
	)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}

	return &Embedder{
		embedder: embedder,
		logger:   slog.Default().With("component", "ollama-embedder"),
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

// EmbedTexts generates vector embeddings for a batch of texts.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("generating embeddings for texts", "count", len(texts))

	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, err
	}
	return vectors, nil
}
