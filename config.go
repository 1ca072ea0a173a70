package aiagents

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/PiloTracer/aiagents/ai"
	"github.com/PiloTracer/aiagents/ingestion"
	"github.com/PiloTracer/aiagents/tokens"
	"github.com/PiloTracer/aiagents/vectorstore"
)

// Config is the full service configuration, loadable from TOML.
type Config struct {
	ChunkSize    int `toml:"chunk_size"`
	ChunkOverlap int `toml:"chunk_overlap"`

	Embedding EmbeddingConfig `toml:"embedding"`
	Qdrant    QdrantConfig    `toml:"qdrant"`
	Extract   ExtractConfig   `toml:"extract"`
	Tokens    TokensConfig    `toml:"tokens"`
	Source    SourceConfig    `toml:"source"`
	Server    ServerConfig    `toml:"server"`
	Ledger    LedgerConfig    `toml:"ledger"`
}

// EmbeddingConfig selects and parameterizes the embedding provider.
type EmbeddingConfig struct {
	Provider     string `toml:"provider"`
	Model        string `toml:"model"`
	Host         string `toml:"host"`
	APIKey       string `toml:"api_key"`
	Dimension    int    `toml:"dimension"`
	MaxBatchSize int    `toml:"max_batch_size"`
}

// QdrantConfig parameterizes the vector store client.
type QdrantConfig struct {
	URL            string `toml:"url"`
	APIKey         string `toml:"api_key"`
	MaxUpsertBatch int    `toml:"max_upsert_batch"`
}

// ExtractConfig controls the extraction chain.
type ExtractConfig struct {
	VisionEnabled bool   `toml:"vision_enabled"`
	VisionModel   string `toml:"vision_model"`
	VisionHost    string `toml:"vision_host"`
	VisionAPIKey  string `toml:"vision_api_key"`
}

// TokensConfig controls the token validator.
type TokensConfig struct {
	DropThreshold float64 `toml:"drop_threshold"`
	SampleCap     int     `toml:"sample_cap"`
}

// SourceConfig controls discovery.
type SourceConfig struct {
	AllowedExtensions []string `toml:"allowed_extensions"`
}

// ServerConfig controls the HTTP surface.
type ServerConfig struct {
	Addr      string `toml:"addr"`
	AuthToken string `toml:"auth_token"`
}

// LedgerConfig controls the SQLite ledger.
type LedgerConfig struct {
	Path string `toml:"path"`
}

// DefaultConfig returns the configuration used when no file or flags
// override it.
func DefaultConfig() *Config {
	embedding := ai.DefaultConfig()
	return &Config{
		ChunkSize:    ingestion.DefaultChunkSize,
		ChunkOverlap: ingestion.DefaultChunkOverlap,
		Embedding: EmbeddingConfig{
			Provider:     string(embedding.Provider),
			Model:        embedding.Model,
			Host:         embedding.Host,
			Dimension:    embedding.Dimension,
			MaxBatchSize: embedding.MaxBatchSize,
		},
		Qdrant: QdrantConfig{
			URL:            vectorstore.DefaultEndpoint,
			MaxUpsertBatch: vectorstore.DefaultMaxUpsertBatch,
		},
		Tokens: TokensConfig{
			DropThreshold: tokens.DefaultDropThreshold,
			SampleCap:     tokens.DefaultSampleCap,
		},
		Source: SourceConfig{
			AllowedExtensions: []string{".pdf", ".txt", ".md", ".png", ".jpg", ".jpeg"},
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Ledger: LedgerConfig{
			Path: "./data",
		},
	}
}

// LoadConfig reads a TOML file over the defaults. An empty path
// returns the defaults untouched.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// EmbeddingAIConfig converts the TOML embedding section into the ai
// package's config form.
func (c *Config) EmbeddingAIConfig() *ai.Config {
	opts := []ai.ConfigOption{}
	if c.Embedding.Provider != "" {
		opts = append(opts, ai.WithProvider(ai.Provider(c.Embedding.Provider)))
	}
	if c.Embedding.Host != "" {
		opts = append(opts, ai.WithHost(c.Embedding.Host))
	}
	if c.Embedding.APIKey != "" {
		opts = append(opts, ai.WithAPIKey(c.Embedding.APIKey))
	}
	if c.Embedding.Model != "" {
		opts = append(opts, ai.WithModel(c.Embedding.Model))
	}
	if c.Embedding.Dimension > 0 {
		opts = append(opts, ai.WithDimension(c.Embedding.Dimension))
	}
	if c.Embedding.MaxBatchSize > 0 {
		opts = append(opts, ai.WithMaxBatchSize(c.Embedding.MaxBatchSize))
	}
	return ai.NewConfig(opts...)
}
