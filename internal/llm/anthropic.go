package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"

	"adresse/internal/domain"
)

type AnthropicChat struct {
	client      *anthropic.Client
	model       string
	temperature float32
	maxTokens   int
}

type AnthropicConfig struct {
	BaseURL     string
	APIKeyEnv   string
	Model       string
	Temperature float32
	MaxTokens   int
}

func NewAnthropicChat(cfg AnthropicConfig) (*AnthropicChat, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	var opts []anthropic.ClientOption
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 512
	}
	return &AnthropicChat{
		client:      anthropic.NewClient(key, opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

func (c *AnthropicChat) Name() string { return "anthropic/" + c.model }

// Chat sends system turns through the dedicated system field.
func (c *AnthropicChat) Chat(ctx context.Context, messages []domain.Message) (string, error) {
	var system []string
	msgs := make([]anthropic.Message, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case domain.RoleSystem:
			system = append(system, m.Content)
		case domain.RoleAssistant:
			msgs = append(msgs, anthropic.NewAssistantTextMessage(m.Content))
		default:
			msgs = append(msgs, anthropic.NewUserTextMessage(m.Content))
		}
	}
	temp := c.temperature
	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(c.model),
		System:      strings.Join(system, "\n\n"),
		Messages:    msgs,
		MaxTokens:   c.maxTokens,
		Temperature: &temp,
	})
	if err != nil {
		return "", fmt.Errorf("anthropic chat: %w", err)
	}
	var sb strings.Builder
	for _, part := range resp.Content {
		if part.Text != nil {
			sb.WriteString(*part.Text)
		}
	}
	return sb.String(), nil
}
