package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"adresse/internal/domain"
)

// OllamaChat talks to the native Ollama chat API without streaming.
type OllamaChat struct {
	client      *api.Client
	model       string
	temperature float32
	jsonMode    bool
}

type OllamaConfig struct {
	BaseURL     string
	Model       string
	Temperature float32
	JSONMode    bool
}

// NewOllamaChat connects to cfg.BaseURL, or to OLLAMA_HOST when it is empty.
func NewOllamaChat(cfg OllamaConfig) (*OllamaChat, error) {
	var client *api.Client
	if cfg.BaseURL == "" {
		c, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
		client = c
	} else {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama url %q: %w", cfg.BaseURL, err)
		}
		client = api.NewClient(u, http.DefaultClient)
	}
	if cfg.Model == "" {
		cfg.Model = "llama3"
	}
	return &OllamaChat{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		jsonMode:    cfg.JSONMode,
	}, nil
}

func (o *OllamaChat) Name() string { return "ollama/" + o.model }

// Ping lists local models as a health check.
func (o *OllamaChat) Ping(ctx context.Context) error {
	if _, err := o.client.List(ctx); err != nil {
		return fmt.Errorf("ollama not reachable: %w", err)
	}
	return nil
}

func (o *OllamaChat) Chat(ctx context.Context, messages []domain.Message) (string, error) {
	stream := false
	req := &api.ChatRequest{
		Model:    o.model,
		Messages: make([]api.Message, 0, len(messages)),
		Stream:   &stream,
		Options:  map[string]any{"temperature": o.temperature},
	}
	if o.jsonMode {
		req.Format = json.RawMessage(`"json"`)
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, api.Message{Role: string(m.Role), Content: m.Content})
	}

	var sb strings.Builder
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	// An empty completion is returned as is and rejected by the parser.
	return sb.String(), nil
}
