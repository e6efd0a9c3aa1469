package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"adresse/internal/config"
	"adresse/internal/domain"
)

var conversation = []domain.Message{
	{Role: domain.RoleSystem, Content: "Tu es un assistant."},
	{Role: domain.RoleUser, Content: "J'habite 39 place des martyrs à Lyon"},
}

const completion = `{"fullText":"39 place des martyrs, Lyon","voie":"39 place des martyrs","commune":"Lyon"}`

func TestOllamaChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3", req["model"])
		assert.Equal(t, false, req["stream"])
		assert.Equal(t, "json", req["format"])
		opts, _ := req["options"].(map[string]any)
		assert.Equal(t, 0.0, opts["temperature"])
		msgs, _ := req["messages"].([]any)
		require.Len(t, msgs, 2)
		assert.Equal(t, "system", msgs[0].(map[string]any)["role"])

		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"model":   "llama3",
			"message": map[string]any{"role": "assistant", "content": completion},
			"done":    true,
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c, err := NewOllamaChat(OllamaConfig{BaseURL: srv.URL, JSONMode: true})
	require.NoError(t, err)
	assert.Equal(t, "ollama/llama3", c.Name())

	out, err := c.Chat(context.Background(), conversation)
	require.NoError(t, err)
	assert.Equal(t, completion, out)
}

func TestOllamaPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer srv.Close()

	c, err := NewOllamaChat(OllamaConfig{BaseURL: srv.URL})
	require.NoError(t, err)
	assert.NoError(t, c.Ping(context.Background()))
}

func TestOpenAIChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		temp, ok := req["temperature"].(float64)
		require.True(t, ok, "temperature must be sent")
		assert.Less(t, temp, 1e-30)
		assert.Equal(t, map[string]any{"type": "json_object"}, req["response_format"])

		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []any{map[string]any{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": completion},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()
	t.Setenv("TEST_CHAT_KEY", "secret")

	c, err := NewOpenAIChat(OpenAIConfig{BaseURL: srv.URL + "/v1", APIKeyEnv: "TEST_CHAT_KEY", Model: "gpt-4o-mini", JSONMode: true})
	require.NoError(t, err)

	out, err := c.Chat(context.Background(), conversation)
	require.NoError(t, err)
	assert.Equal(t, completion, out)
}

func TestAnthropicChatSendsSystemSeparately(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Tu es un assistant.", req["system"])
		msgs, _ := req["messages"].([]any)
		require.Len(t, msgs, 1)
		assert.Equal(t, "user", msgs[0].(map[string]any)["role"])

		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"id":          "msg_1",
			"type":        "message",
			"role":        "assistant",
			"model":       "claude-3-5-haiku-latest",
			"stop_reason": "end_turn",
			"content":     []any{map[string]any{"type": "text", "text": completion}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()
	t.Setenv("TEST_ANTHROPIC_KEY", "secret")

	c, err := NewAnthropicChat(AnthropicConfig{BaseURL: srv.URL, APIKeyEnv: "TEST_ANTHROPIC_KEY", Model: "claude-3-5-haiku-latest"})
	require.NoError(t, err)

	out, err := c.Chat(context.Background(), conversation)
	require.NoError(t, err)
	assert.Equal(t, completion, out)
}

func TestProvidersRequireKeys(t *testing.T) {
	t.Setenv("TEST_MISSING_KEY", "")
	_, err := NewOpenAIChat(OpenAIConfig{APIKeyEnv: "TEST_MISSING_KEY"})
	assert.Error(t, err)
	_, err = NewAnthropicChat(AnthropicConfig{APIKeyEnv: "TEST_MISSING_KEY"})
	assert.Error(t, err)
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(config.ModelConfig{Provider: "mistral"}, zap.NewNop())
	assert.Error(t, err)
}

type flakyModel struct {
	failures int32
	calls    atomic.Int32
	block    bool
}

func (f *flakyModel) Name() string { return "flaky" }

func (f *flakyModel) Chat(ctx context.Context, _ []domain.Message) (string, error) {
	n := f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if n <= f.failures {
		return "", errors.New("connection refused")
	}
	return completion, nil
}

func TestWithRetryRecovers(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	inner := &flakyModel{failures: 1}
	m := WithRetry(inner, RetryPolicy{Retries: 1, Delay: time.Millisecond}, zap.New(core))

	out, err := m.Chat(context.Background(), conversation)
	require.NoError(t, err)
	assert.Equal(t, completion, out)
	assert.Equal(t, int32(2), inner.calls.Load())
	assert.Equal(t, 1, logs.FilterMessage("model call failed").Len())
}

func TestWithRetryExhausted(t *testing.T) {
	inner := &flakyModel{failures: 10}
	m := WithRetry(inner, RetryPolicy{Retries: 2, Delay: time.Millisecond}, nil)

	_, err := m.Chat(context.Background(), conversation)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrModelUnavailable)
	assert.Equal(t, int32(3), inner.calls.Load())
}

func TestWithRetryAttemptTimeout(t *testing.T) {
	inner := &flakyModel{block: true}
	m := WithRetry(inner, RetryPolicy{Timeout: 10 * time.Millisecond, Retries: 1, Delay: time.Millisecond}, nil)

	_, err := m.Chat(context.Background(), conversation)
	assert.ErrorIs(t, err, domain.ErrModelUnavailable)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestWithRetryStopsOnCallerCancel(t *testing.T) {
	inner := &flakyModel{block: true}
	m := WithRetry(inner, RetryPolicy{Retries: 5, Delay: time.Millisecond}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := m.Chat(ctx, conversation)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, domain.ErrModelUnavailable)
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestEmptyCompletionIsReturnedWithoutRetry(t *testing.T) {
	var ollamaCalls, anthropicCalls atomic.Int32
	ollamaSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ollamaCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3","message":{"role":"assistant","content":""},"done":true}`))
	}))
	defer ollamaSrv.Close()
	anthropicSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		anthropicCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"m","stop_reason":"end_turn","content":[]}`))
	}))
	defer anthropicSrv.Close()
	t.Setenv("TEST_ANTHROPIC_KEY", "secret")

	oc, err := NewOllamaChat(OllamaConfig{BaseURL: ollamaSrv.URL})
	require.NoError(t, err)
	ac, err := NewAnthropicChat(AnthropicConfig{BaseURL: anthropicSrv.URL, APIKeyEnv: "TEST_ANTHROPIC_KEY", Model: "m"})
	require.NoError(t, err)

	policy := RetryPolicy{Retries: 2, Delay: time.Millisecond}
	for _, m := range []domain.ChatModel{WithRetry(oc, policy, nil), WithRetry(ac, policy, nil)} {
		out, err := m.Chat(context.Background(), conversation)
		require.NoError(t, err, m.Name())
		assert.Empty(t, out)
	}
	assert.Equal(t, int32(1), ollamaCalls.Load())
	assert.Equal(t, int32(1), anthropicCalls.Load())
}
