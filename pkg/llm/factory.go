package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/querylens/querylens-engine/pkg/config"
)

// NewEmbedder creates the configured embedding client. Only
// OpenAI-compatible endpoints serve embeddings.
func NewEmbedder(cfg *config.Config, logger *zap.Logger) (Embedder, error) {
	return NewOpenAIClient(&OpenAIConfig{
		BaseURL:        cfg.Embedding.BaseURL,
		APIKey:         cfg.Embedding.APIKey,
		EmbeddingModel: cfg.Embedding.Model,
		Dimension:      cfg.Embedding.Dimension,
	}, logger)
}

// NewGenerator creates the configured SQL-generation client.
func NewGenerator(cfg *config.Config, logger *zap.Logger) (Generator, error) {
	switch cfg.LLM.Provider {
	case "openai":
		return NewOpenAIClient(&OpenAIConfig{
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
		}, logger)
	case "anthropic":
		return NewAnthropicClient(cfg.LLM.APIKey, cfg.LLM.Model, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}
