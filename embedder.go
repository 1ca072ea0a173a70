package aiagents

import (
	"fmt"

	"github.com/PiloTracer/aiagents/ai"
	"github.com/PiloTracer/aiagents/ai/ollamaembed"
	"github.com/PiloTracer/aiagents/ai/openai"
	"github.com/PiloTracer/aiagents/ai/voyage"
)

// NewEmbedder resolves the embedding backend from configuration. The
// selection is a pure function of the config, resolved once per
// service, never per chunk.
func NewEmbedder(cfg *ai.Config) (ai.Embedder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case ai.ProviderLocal, ai.ProviderOpenAI:
		return openai.NewEmbedder(cfg)
	case ai.ProviderOllama:
		return ollamaembed.NewEmbedder(cfg)
	case ai.ProviderVoyage:
		return voyage.NewEmbedder(cfg)
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", cfg.Provider)
	}
}
