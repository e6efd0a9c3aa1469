package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/ollama/ollama/api"
)

// DefaultOllamaModel matches the text2vec module used for the commune collection.
const DefaultOllamaModel = "nomic-embed-text"

// OllamaClient embeds text with a local Ollama server.
type OllamaClient struct {
	client *api.Client
	model  string

	mu        sync.Mutex
	dimension int
}

// NewOllamaClient connects to baseURL, or to OLLAMA_HOST when baseURL is empty.
func NewOllamaClient(baseURL, model string) (*OllamaClient, error) {
	client, err := newOllamaAPI(baseURL)
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	return &OllamaClient{client: client, model: model}, nil
}

func newOllamaAPI(baseURL string) (*api.Client, error) {
	if baseURL == "" {
		client, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
		return client, nil
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama url %q: %w", baseURL, err)
	}
	return api.NewClient(u, http.DefaultClient), nil
}

func (c *OllamaClient) Name() string { return "ollama" }

func (c *OllamaClient) Prepare(corpus []string) error { return nil }

func (c *OllamaClient) Dimension() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dimension
}

func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.Embed(ctx, &api.EmbedRequest{Model: c.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		return nil, errors.New("no embedding returned")
	}
	v := resp.Embeddings[0]
	c.mu.Lock()
	if c.dimension == 0 {
		c.dimension = len(v)
	}
	c.mu.Unlock()
	return v, nil
}
