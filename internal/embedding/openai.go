package embedding

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient embeds text through an OpenAI-compatible /embeddings endpoint.
type OpenAIClient struct {
	client *openai.Client
	model  string

	mu        sync.Mutex
	dimension int
}

type OpenAIConfig struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
}

func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	conf := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		conf.BaseURL = cfg.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.SmallEmbedding3)
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(conf), model: cfg.Model}, nil
}

func (c *OpenAIClient) Name() string { return "openai" }

// Prepare is not required for remote embedding. Dimension is learnt on first embed.
func (c *OpenAIClient) Prepare(corpus []string) error { return nil }

func (c *OpenAIClient) Dimension() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dimension
}

func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.New("no embedding returned")
	}
	v := resp.Data[0].Embedding
	c.mu.Lock()
	if c.dimension == 0 {
		c.dimension = len(v)
	}
	c.mu.Unlock()
	return v, nil
}
