package voyage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/PiloTracer/aiagents/ai"
)

// DefaultEndpoint is the Voyage AI embeddings API endpoint.
const DefaultEndpoint = "https://api.voyageai.com/v1/embeddings"

// Embedder implements ai.Embedder against the Voyage AI hosted API.
type Embedder struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
	logger   *slog.Logger
}

// Compile-time check that Embedder implements ai.Embedder.
var _ ai.Embedder = (*Embedder)(nil)

// NewEmbedder creates a Voyage AI embedding client. When the config
// names a host it overrides the default endpoint, which lets tests and
// proxies intercept requests.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	endpoint := DefaultEndpoint
	if config.Host != "" {
		endpoint = config.Host + "/embeddings"
	}

	return &Embedder{
		endpoint: endpoint,
		apiKey:   config.APIKey,
		model:    config.Model,
		client:   &http.Client{},
		logger:   slog.Default().With("component", "voyage-embedder"),
	}, nil
}

// embedRequest is the request format for the Voyage AI API.
type embedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

// embedResponse is the response format from the Voyage AI API.
type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return vectors[0], nil
}

// EmbedTexts generates vector embeddings for a batch of texts in a
// single API request.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	body, err := json.Marshal(embedRequest{Input: texts, Model: e.model})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voyage request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		e.logger.Error("voyage API error", "status", resp.StatusCode, "body", string(msg))
		return nil, fmt.Errorf("voyage API status %d: %s", resp.StatusCode, string(msg))
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(parsed.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, item := range parsed.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}
