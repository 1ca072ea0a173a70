package mock

import (
	"context"
	"hash/fnv"
	"sync"
)

// Embedder is a test double for ai.Embedder.
// It allows custom behavior injection via function fields.
type Embedder struct {
	// Dimension of the default deterministic vectors. Zero means 768.
	Dimension int

	// EmbedTextFunc is called by EmbedText if set.
	// If nil, uses default deterministic behavior.
	EmbedTextFunc func(ctx context.Context, text string) ([]float32, error)

	// EmbedTextsFunc is called by EmbedTexts if set.
	// If nil, uses default deterministic behavior.
	EmbedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)

	mu        sync.Mutex
	callCount int
}

// NewEmbedder creates a mock embedder with default deterministic behavior.
// Note: returns the concrete type to allow test assertions.
func NewEmbedder(dimension int) *Embedder {
	return &Embedder{Dimension: dimension}
}

func (m *Embedder) dim() int {
	if m.Dimension > 0 {
		return m.Dimension
	}
	return 768
}

// EmbedText generates a deterministic embedding based on text hash.
func (m *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	m.recordCall()

	if m.EmbedTextFunc != nil {
		return m.EmbedTextFunc(ctx, text)
	}
	return DeterministicVector(text, m.dim()), nil
}

// EmbedTexts generates deterministic embeddings for multiple texts.
func (m *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	m.recordCall()

	if m.EmbedTextsFunc != nil {
		return m.EmbedTextsFunc(ctx, texts)
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = DeterministicVector(text, m.dim())
	}
	return vectors, nil
}

func (m *Embedder) recordCall() {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()
}

// CallCount returns the number of times any method was called.
func (m *Embedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Reset clears the call count and injected behavior.
func (m *Embedder) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.EmbedTextFunc = nil
	m.EmbedTextsFunc = nil
}

// DeterministicVector creates a deterministic embedding vector from text.
// It uses FNV hash to ensure the same text always produces the same vector.
func DeterministicVector(text string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vector := make([]float32, dim)
	for i := 0; i < dim; i++ {
		seed = seed*1664525 + 1013904223 // LCG constants
		vector[i] = float32(seed%1000) / 1000.0
	}

	var sumSquares float32
	for _, v := range vector {
		sumSquares += v * v
	}
	if sumSquares > 0 {
		norm := float32(1.0) / sumSquares
		for i := range vector {
			vector[i] *= norm
		}
	}

	return vector
}
