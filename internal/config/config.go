package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultRetries is the number of extra model calls after a failed one.
const DefaultRetries = 1

// ModelConfig selects the chat-completion provider used for extraction.
type ModelConfig struct {
	Provider     string  `yaml:"provider"`
	Name         string  `yaml:"name"`
	BaseURL      string  `yaml:"base_url,omitempty"`
	APIKeyEnv    string  `yaml:"api_key_env,omitempty"`
	Temperature  float32 `yaml:"temperature"`
	TimeoutSecs  int     `yaml:"timeout_secs"`
	Retries      int     `yaml:"retries"`
	RetryDelayMs int     `yaml:"retry_delay_ms"`
	JSONMode     bool    `yaml:"json_mode"`
	MaxTokens    int     `yaml:"max_tokens"`
}

// EmbedderConfig selects the text embedder backing the similarity store.
type EmbedderConfig struct {
	Type      string `yaml:"type"`
	Model     string `yaml:"model,omitempty"`
	BaseURL   string `yaml:"base_url,omitempty"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
}

type ChromemConfig struct {
	Path     string `yaml:"path"`
	Compress bool   `yaml:"compress"`
}

// QdrantConfig contains connection details for a Qdrant gRPC endpoint.
type QdrantConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
	UseTLS    bool   `yaml:"use_tls"`
}

// StoreConfig selects and configures the similarity store holding the commune catalog.
type StoreConfig struct {
	Type       string        `yaml:"type"`
	Collection string        `yaml:"collection"`
	Chromem    ChromemConfig `yaml:"chromem"`
	Qdrant     *QdrantConfig `yaml:"qdrant,omitempty"`
}

type CatalogConfig struct {
	Path            string `yaml:"path,omitempty"`
	IncludeInPrompt bool   `yaml:"include_in_prompt"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type BatchConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Model    ModelConfig    `yaml:"model"`
	Embedder EmbedderConfig `yaml:"embedder"`
	Store    StoreConfig    `yaml:"store"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
	Batch    BatchConfig    `yaml:"batch"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	// Keys absent from the file keep these values; an explicit zero is honoured.
	cfg := AppConfig{
		Model:   ModelConfig{Retries: DefaultRetries},
		Catalog: CatalogConfig{IncludeInPrompt: true},
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/adresse/config.yaml.
// If neither exists, it writes defaults to ~/.config/adresse/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "adresse", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Model:    ModelConfig{Provider: "ollama", Retries: DefaultRetries},
		Embedder: EmbedderConfig{Type: "local"},
		Store:    StoreConfig{Type: "chromem"},
		Catalog:  CatalogConfig{IncludeInPrompt: true},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	m := &cfg.Model
	if m.Provider == "" {
		m.Provider = "ollama"
	}
	if m.Name == "" {
		switch m.Provider {
		case "openai":
			m.Name = "gpt-4o-mini"
		case "anthropic":
			m.Name = "claude-3-5-haiku-latest"
		default:
			m.Name = "llama3"
		}
	}
	if m.APIKeyEnv == "" {
		switch m.Provider {
		case "openai":
			m.APIKeyEnv = "OPENAI_API_KEY"
		case "anthropic":
			m.APIKeyEnv = "ANTHROPIC_API_KEY"
		}
	}
	if m.TimeoutSecs == 0 {
		m.TimeoutSecs = 60
	}
	if m.Retries < 0 {
		m.Retries = 0
	}
	if m.RetryDelayMs == 0 {
		m.RetryDelayMs = 500
	}
	if m.MaxTokens == 0 {
		m.MaxTokens = 512
	}

	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "local"
	}
	if cfg.Embedder.Type == "openai" && cfg.Embedder.APIKeyEnv == "" {
		cfg.Embedder.APIKeyEnv = "OPENAI_API_KEY"
	}

	if cfg.Store.Type == "" {
		cfg.Store.Type = "chromem"
	}
	if cfg.Store.Collection == "" {
		cfg.Store.Collection = "Communes"
	}
	if cfg.Store.Type == "qdrant" {
		if cfg.Store.Qdrant == nil {
			cfg.Store.Qdrant = &QdrantConfig{}
		}
		if cfg.Store.Qdrant.Host == "" {
			cfg.Store.Qdrant.Host = "localhost"
		}
		if cfg.Store.Qdrant.Port == 0 {
			cfg.Store.Qdrant.Port = 6334
		}
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Batch.Concurrency == 0 {
		cfg.Batch.Concurrency = 4
	}
}
