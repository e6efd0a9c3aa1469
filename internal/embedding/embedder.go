package embedding

import (
	"fmt"

	"adresse/internal/config"
	"adresse/internal/domain"
)

// New builds the configured embedder and prepares it over the catalog corpus.
func New(cfg config.EmbedderConfig, corpus []string) (domain.Embedder, error) {
	var emb domain.Embedder
	switch cfg.Type {
	case "local", "":
		emb = NewTFIDFEmbedder()
	case "ollama":
		c, err := NewOllamaClient(cfg.BaseURL, cfg.Model)
		if err != nil {
			return nil, err
		}
		emb = c
	case "openai":
		c, err := NewOpenAIClient(OpenAIConfig{
			BaseURL:   cfg.BaseURL,
			APIKeyEnv: cfg.APIKeyEnv,
			Model:     cfg.Model,
		})
		if err != nil {
			return nil, err
		}
		emb = c
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
	if err := emb.Prepare(corpus); err != nil {
		return nil, fmt.Errorf("prepare %s embedder: %w", emb.Name(), err)
	}
	return emb, nil
}
