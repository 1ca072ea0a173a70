package ai

import (
	"errors"
	"fmt"
	"strings"
)

// Provider selects an embedding backend. The set is closed: selection is
// resolved once from configuration at job start, never re-evaluated per
// chunk.
type Provider string

const (
	// ProviderLocal is an OpenAI-compatible endpoint running locally
	// (Ollama, LocalAI, vLLM and similar).
	ProviderLocal Provider = "local"
	// ProviderOpenAI is the hosted OpenAI embeddings API.
	ProviderOpenAI Provider = "openai"
	// ProviderOllama talks to a self-hosted Ollama model server through
	// its native API.
	ProviderOllama Provider = "ollama"
	// ProviderVoyage is the Voyage AI hosted embeddings API.
	ProviderVoyage Provider = "voyage"
)

const (
	// DefaultDimension is the default embedding vector length.
	DefaultDimension = 768

	// DefaultMaxBatchSize is the default per-request batch cap.
	DefaultMaxBatchSize = 64
)

// Config holds configuration for the embedding provider.
type Config struct {
	// Provider selects the backend variant.
	Provider Provider

	// Host is the base URL of the embedding service. Required for the
	// local and ollama providers; optional override for hosted APIs.
	Host string

	// APIKey authenticates against hosted APIs. Local services that do
	// not require authentication may leave it empty.
	APIKey string

	// Model is the embedding model identifier.
	// Example: "embeddinggemma", "text-embedding-3-small", "voyage-3"
	Model string

	// Dimension is the required length of every returned vector. A
	// response with a different length is a dimension-mismatch error.
	Dimension int

	// MaxBatchSize caps how many texts are sent per provider request.
	MaxBatchSize int
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithProvider sets the backend variant.
func WithProvider(p Provider) ConfigOption {
	return func(c *Config) {
		c.Provider = p
	}
}

// WithHost sets the embedding service base URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.Host = host
	}
}

// WithAPIKey sets the API key for hosted providers.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithModel sets the embedding model identifier.
func WithModel(model string) ConfigOption {
	return func(c *Config) {
		c.Model = model
	}
}

// WithDimension sets the required embedding dimension.
func WithDimension(dim int) ConfigOption {
	return func(c *Config) {
		c.Dimension = dim
	}
}

// WithMaxBatchSize sets the per-request batch cap.
func WithMaxBatchSize(size int) ConfigOption {
	return func(c *Config) {
		c.MaxBatchSize = size
	}
}

// DefaultConfig returns a Config with sensible defaults for a local
// OpenAI-compatible service.
func DefaultConfig() *Config {
	return &Config{
		Provider:     ProviderLocal,
		Host:         "http://localhost:11434/v1",
		Model:        "embeddinggemma",
		Dimension:    DefaultDimension,
		MaxBatchSize: DefaultMaxBatchSize,
	}
}

// NewConfig creates a Config with default values and applies the
// provided options.
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in canonical form. For
// OpenAI-compatible providers the host must carry the /v1 suffix; the
// ollama native API must not.
func (c *Config) Normalize() {
	c.Provider = Provider(strings.ToLower(string(c.Provider)))
	if c.Host == "" {
		return
	}
	c.Host = strings.TrimSuffix(c.Host, "/")
	switch c.Provider {
	case ProviderLocal, ProviderOpenAI:
		if !strings.HasSuffix(c.Host, "/v1") {
			c.Host += "/v1"
		}
	case ProviderOllama:
		c.Host = strings.TrimSuffix(c.Host, "/v1")
	}
}

// Validate checks that the configuration is valid and complete. It
// normalizes the configuration first.
func (c *Config) Validate() error {
	c.Normalize()

	switch c.Provider {
	case ProviderLocal, ProviderOpenAI, ProviderOllama, ProviderVoyage:
	default:
		return fmt.Errorf("ai config: unsupported provider %q", c.Provider)
	}
	if c.Model == "" {
		return errors.New("ai config: Model is required")
	}
	if c.Dimension <= 0 {
		return errors.New("ai config: Dimension must be positive")
	}
	if c.MaxBatchSize <= 0 {
		return errors.New("ai config: MaxBatchSize must be positive")
	}
	if (c.Provider == ProviderLocal || c.Provider == ProviderOllama) && c.Host == "" {
		return fmt.Errorf("ai config: Host is required for provider %q", c.Provider)
	}
	if (c.Provider == ProviderOpenAI || c.Provider == ProviderVoyage) && c.APIKey == "" {
		return fmt.Errorf("ai config: APIKey is required for provider %q", c.Provider)
	}
	return nil
}
