package ingestion

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PiloTracer/aiagents/ai/mock"
	"github.com/PiloTracer/aiagents/core"
)

func TestEncodePreservesOrderAcrossBatches(t *testing.T) {
	var batchSizes []int
	embedder := mock.NewEmbedder(8)
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		batchSizes = append(batchSizes, len(texts))
		vectors := make([][]float32, len(texts))
		for i, text := range texts {
			vectors[i] = mock.DeterministicVector(text, 8)
		}
		return vectors, nil
	}

	encoder := NewBatchEncoder(embedder, 8, 2)
	texts := []string{"a", "b", "c", "d", "e"}

	vectors, err := encoder.Encode(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, 5)
	assert.Equal(t, []int{2, 2, 1}, batchSizes)
	for i, text := range texts {
		assert.Equal(t, mock.DeterministicVector(text, 8), vectors[i])
	}
}

func TestEncodeDimensionMismatch(t *testing.T) {
	embedder := mock.NewEmbedder(4) // returns 4-wide vectors
	encoder := NewBatchEncoder(embedder, 8, 16)

	_, err := encoder.Encode(context.Background(), []string{"text"})

	require.Error(t, err)
	pipelineErr, ok := core.AsPipelineError(err)
	require.True(t, ok)
	assert.Equal(t, core.KindDimensionMismatch, pipelineErr.Kind)
	assert.False(t, pipelineErr.Fatal())
}

func TestEncodeProviderFailure(t *testing.T) {
	embedder := mock.NewEmbedder(8)
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("connection refused")
	}
	encoder := NewBatchEncoder(embedder, 8, 16)

	_, err := encoder.Encode(context.Background(), []string{"text"})

	require.Error(t, err)
	pipelineErr, ok := core.AsPipelineError(err)
	require.True(t, ok)
	assert.Equal(t, core.KindProviderUnavailable, pipelineErr.Kind)
	assert.True(t, pipelineErr.Fatal())
}

func TestEncodeCountMismatchIsProviderFailure(t *testing.T) {
	embedder := mock.NewEmbedder(8)
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{mock.DeterministicVector("only one", 8)}, nil
	}
	encoder := NewBatchEncoder(embedder, 8, 16)

	_, err := encoder.Encode(context.Background(), []string{"one", "two"})

	require.Error(t, err)
	pipelineErr, ok := core.AsPipelineError(err)
	require.True(t, ok)
	assert.Equal(t, core.KindProviderUnavailable, pipelineErr.Kind)
}

func TestEncodeEmptyInput(t *testing.T) {
	encoder := NewBatchEncoder(mock.NewEmbedder(8), 8, 16)
	vectors, err := encoder.Encode(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}
