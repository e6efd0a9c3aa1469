// Package llm provides chat-completion clients for the supported providers.
package llm

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"adresse/internal/config"
	"adresse/internal/domain"
)

// New builds the configured provider wrapped with the retry policy.
func New(cfg config.ModelConfig, logger *zap.Logger) (domain.ChatModel, error) {
	var model domain.ChatModel
	switch cfg.Provider {
	case "ollama", "":
		c, err := NewOllamaChat(OllamaConfig{
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Name,
			Temperature: cfg.Temperature,
			JSONMode:    cfg.JSONMode,
		})
		if err != nil {
			return nil, err
		}
		model = c
	case "openai":
		c, err := NewOpenAIChat(OpenAIConfig{
			BaseURL:     cfg.BaseURL,
			APIKeyEnv:   cfg.APIKeyEnv,
			Model:       cfg.Name,
			Temperature: cfg.Temperature,
			JSONMode:    cfg.JSONMode,
			MaxTokens:   cfg.MaxTokens,
		})
		if err != nil {
			return nil, err
		}
		model = c
	case "anthropic":
		c, err := NewAnthropicChat(AnthropicConfig{
			BaseURL:     cfg.BaseURL,
			APIKeyEnv:   cfg.APIKeyEnv,
			Model:       cfg.Name,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		})
		if err != nil {
			return nil, err
		}
		model = c
	default:
		return nil, fmt.Errorf("unknown model provider: %s", cfg.Provider)
	}
	return WithRetry(model, RetryPolicy{
		Timeout: time.Duration(cfg.TimeoutSecs) * time.Second,
		Retries: cfg.Retries,
		Delay:   time.Duration(cfg.RetryDelayMs) * time.Millisecond,
	}, logger), nil
}
