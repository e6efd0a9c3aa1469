package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/sashabaranov/go-openai"

	"adresse/internal/domain"
)

// OpenAIChat calls an OpenAI-compatible /chat/completions endpoint,
// including Ollama's /v1 compatibility layer.
type OpenAIChat struct {
	client      *openai.Client
	model       string
	temperature float32
	jsonMode    bool
	maxTokens   int
}

type OpenAIConfig struct {
	BaseURL     string
	APIKeyEnv   string
	Model       string
	Temperature float32
	JSONMode    bool
	MaxTokens   int
}

func NewOpenAIChat(cfg OpenAIConfig) (*OpenAIChat, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	conf := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		conf.BaseURL = cfg.BaseURL
	}
	return &OpenAIChat{
		client:      openai.NewClientWithConfig(conf),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		jsonMode:    cfg.JSONMode,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

func (c *OpenAIChat) Name() string { return "openai/" + c.model }

func (c *OpenAIChat) Chat(ctx context.Context, messages []domain.Message) (string, error) {
	temp := c.temperature
	if temp == 0 {
		// A zero temperature is dropped by omitempty and the server default applies.
		temp = math.SmallestNonzeroFloat32
	}
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		Temperature: temp,
		MaxTokens:   c.maxTokens,
	}
	if c.jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai chat: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
