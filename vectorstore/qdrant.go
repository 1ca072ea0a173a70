package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PiloTracer/aiagents/core"
)

const (
	// DefaultEndpoint is the Qdrant REST endpoint.
	DefaultEndpoint = "http://localhost:6333"

	// DefaultMaxUpsertBatch bounds how many points go into a single
	// upsert request.
	DefaultMaxUpsertBatch = 128

	collectionPrefix = "rag_"
)

// Point is one vector plus its payload, addressed by a UUID string id.
type Point struct {
	Id      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// Client talks to a Qdrant instance over its REST API.
type Client struct {
	endpoint       string
	apiKey         string
	maxUpsertBatch int
	httpClient     *http.Client
	logger         *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the Qdrant endpoint.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = strings.TrimRight(endpoint, "/")
		}
	}
}

// WithAPIKey sets the api-key header for secured deployments.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithMaxUpsertBatch overrides the upsert batch bound.
func WithMaxUpsertBatch(size int) Option {
	return func(c *Client) {
		if size > 0 {
			c.maxUpsertBatch = size
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// NewClient creates a Qdrant REST client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		endpoint:       DefaultEndpoint,
		maxUpsertBatch: DefaultMaxUpsertBatch,
		httpClient:     &http.Client{Timeout: 60 * time.Second},
		logger:         slog.Default().With("component", "vectorstore"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CollectionName maps an area slug to its collection.
func CollectionName(areaSlug string) string {
	return collectionPrefix + areaSlug
}

type collectionInfoResponse struct {
	Result struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	} `json:"result"`
}

type createCollectionRequest struct {
	Vectors vectorParams `json:"vectors"`
}

type vectorParams struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

// EnsureCollection creates the area's collection with the given vector
// size if it does not exist. An existing collection with a different
// vector size is a fatal configuration conflict.
func (c *Client) EnsureCollection(ctx context.Context, areaSlug string, dimension int) error {
	name := CollectionName(areaSlug)

	status, body, err := c.do(ctx, http.MethodGet, "/collections/"+name, nil)
	if err != nil {
		return core.NewStorageError(core.KindUpsertFailed,
			fmt.Errorf("checking collection %s: %w", name, err))
	}

	switch {
	case status == http.StatusOK:
		var info collectionInfoResponse
		if err := json.Unmarshal(body, &info); err != nil {
			return core.NewStorageError(core.KindUpsertFailed,
				fmt.Errorf("decoding collection info for %s: %w", name, err))
		}
		existing := info.Result.Config.Params.Vectors.Size
		if existing != 0 && existing != dimension {
			return core.NewStorageError(core.KindDimensionConflict,
				fmt.Errorf("collection %s has vector size %d, expected %d", name, existing, dimension))
		}
		return nil
	case status == http.StatusNotFound:
		// fall through to create
	default:
		return core.NewStorageError(core.KindUpsertFailed,
			fmt.Errorf("checking collection %s: unexpected status %d", name, status))
	}

	payload, err := json.Marshal(createCollectionRequest{
		Vectors: vectorParams{Size: dimension, Distance: "Cosine"},
	})
	if err != nil {
		return core.NewStorageError(core.KindUpsertFailed, err)
	}

	status, body, err = c.do(ctx, http.MethodPut, "/collections/"+name, payload)
	if err != nil {
		return core.NewStorageError(core.KindUpsertFailed,
			fmt.Errorf("creating collection %s: %w", name, err))
	}
	// A concurrent creator winning the race is fine; the collection now
	// exists with the requested parameters.
	if status != http.StatusOK && status != http.StatusConflict {
		return core.NewStorageError(core.KindUpsertFailed,
			fmt.Errorf("creating collection %s: status %d: %s", name, status, truncateBody(body)))
	}

	c.logger.Info("ensured collection", "collection", name, "dimension", dimension)
	return nil
}

type upsertRequest struct {
	Points []Point `json:"points"`
}

// Upsert writes points into the area's collection in bounded batches.
// Failed batches abort the remaining ones; earlier batches stay
// written.
func (c *Client) Upsert(ctx context.Context, areaSlug string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	name := CollectionName(areaSlug)

	for start := 0; start < len(points); start += c.maxUpsertBatch {
		end := start + c.maxUpsertBatch
		if end > len(points) {
			end = len(points)
		}

		payload, err := json.Marshal(upsertRequest{Points: points[start:end]})
		if err != nil {
			return core.NewStorageError(core.KindUpsertFailed, err)
		}

		status, body, err := c.do(ctx, http.MethodPut,
			"/collections/"+name+"/points?wait=true", payload)
		if err != nil {
			return core.NewStorageError(core.KindUpsertFailed,
				fmt.Errorf("upserting into %s: %w", name, err))
		}
		if status != http.StatusOK {
			return core.NewStorageError(core.KindUpsertFailed,
				fmt.Errorf("upserting into %s: status %d: %s", name, status, truncateBody(body)))
		}

		c.logger.Debug("upserted batch",
			"collection", name, "count", end-start, "offset", start)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, data, nil
}

func truncateBody(body []byte) string {
	const limit = 256
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
