package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/querylens/querylens-engine/pkg/apperrors"
)

// OpenAIClient talks to any OpenAI-compatible endpoint for both embeddings
// and chat-based SQL generation.
type OpenAIClient struct {
	client         *openai.Client
	model          string
	embeddingModel string
	dimension      int
	logger         *zap.Logger
}

// OpenAIConfig holds configuration for creating an OpenAI-compatible client.
type OpenAIConfig struct {
	BaseURL        string // e.g. "https://api.openai.com/v1"
	APIKey         string // optional for local endpoints
	Model          string // chat model for SQL generation
	EmbeddingModel string
	Dimension      int // expected embedding dimension
}

// NewOpenAIClient creates a client for an OpenAI-compatible endpoint.
func NewOpenAIClient(cfg *OpenAIConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	return &OpenAIClient{
		client:         openai.NewClientWithConfig(clientConfig),
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		dimension:      cfg.Dimension,
		logger:         logger.Named("openai"),
	}, nil
}

var (
	_ Embedder  = (*OpenAIClient)(nil)
	_ Generator = (*OpenAIClient)(nil)
)

// Embed generates an embedding vector for the input text.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.embeddingModel),
		Input: []string{text},
	})
	if err != nil {
		c.logger.Error("Embedding request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, classifyError("openai", "embed", err)
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, classifyError("openai", "embed", fmt.Errorf("empty embedding response"))
	}

	vec := resp.Data[0].Embedding
	if c.dimension > 0 && len(vec) != c.dimension {
		return nil, apperrors.NewValidationError("embedding",
			fmt.Sprintf("provider returned dimension %d, configured dimension is %d", len(vec), c.dimension))
	}

	c.logger.Debug("Embedding created",
		zap.Int("input_len", len(text)),
		zap.Duration("elapsed", time.Since(start)))
	return vec, nil
}

// GenerateSQL generates a chat completion and returns the raw response text.
func (c *OpenAIClient) GenerateSQL(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: 0.1,
	})
	if err != nil {
		c.logger.Error("Generation request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", classifyError("openai", "generate", err)
	}

	if len(resp.Choices) == 0 {
		return "", classifyError("openai", "generate", fmt.Errorf("no choices in response"))
	}

	c.logger.Info("Generation completed",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))
	return resp.Choices[0].Message.Content, nil
}
