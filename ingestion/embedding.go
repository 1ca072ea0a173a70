package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/PiloTracer/aiagents/ai"
	"github.com/PiloTracer/aiagents/core"
)

// BatchEncoder drives an ai.Embedder in bounded batches and enforces
// the configured vector dimension on every result.
type BatchEncoder struct {
	embedder  ai.Embedder
	dimension int
	maxBatch  int
	logger    *slog.Logger
}

// NewBatchEncoder wraps embedder with batching and dimension checks.
func NewBatchEncoder(embedder ai.Embedder, dimension, maxBatchSize int) *BatchEncoder {
	if maxBatchSize <= 0 {
		maxBatchSize = ai.DefaultMaxBatchSize
	}
	return &BatchEncoder{
		embedder:  embedder,
		dimension: dimension,
		maxBatch:  maxBatchSize,
		logger:    slog.Default().With("component", "batch-encoder"),
	}
}

// Dimension returns the enforced vector dimension.
func (e *BatchEncoder) Dimension() int { return e.dimension }

// Encode embeds texts in configured-size batches, preserving input
// order. A transport or malformed-response failure is classified
// provider-unavailable; a wrong-length vector is dimension-mismatch.
// There are no retries.
func (e *BatchEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.maxBatch {
		end := start + e.maxBatch
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		embedded, err := e.embedder.EmbedTexts(ctx, batch)
		if err != nil {
			return nil, core.NewEmbeddingError(core.KindProviderUnavailable, err)
		}
		if len(embedded) != len(batch) {
			return nil, core.NewEmbeddingError(core.KindProviderUnavailable,
				fmt.Errorf("provider returned %d vectors for %d texts", len(embedded), len(batch)))
		}
		for i, vector := range embedded {
			if len(vector) != e.dimension {
				return nil, core.NewEmbeddingError(core.KindDimensionMismatch,
					fmt.Errorf("vector %d has dimension %d, expected %d",
						start+i, len(vector), e.dimension))
			}
		}

		vectors = append(vectors, embedded...)
		e.logger.Debug("embedded batch", "count", len(batch), "offset", start)
	}
	return vectors, nil
}
