package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ChunkerConfig configures how documents are split into token windows.
type ChunkerConfig struct {
	Tokenizer string `yaml:"tokenizer" toml:"tokenizer"`
	Encoding  string `yaml:"encoding" toml:"encoding"`
	MaxTokens int    `yaml:"max_tokens" toml:"max_tokens"`
	Workers   int    `yaml:"workers" toml:"workers"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI embeddings provider.
type OpenAIEmbedderConfig struct {
	BaseURL   string `yaml:"base_url" toml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env" toml:"api_key_env"`
	Model     string `yaml:"model" toml:"model"`
	Dimension int    `yaml:"dimension" toml:"dimension"`
}

// OllamaEmbedderConfig holds configuration for an Ollama embeddings server.
type OllamaEmbedderConfig struct {
	BaseURL string `yaml:"base_url" toml:"base_url"`
	Model   string `yaml:"model" toml:"model"`
}

// HashingEmbedderConfig configures the local feature-hashing embedder.
type HashingEmbedderConfig struct {
	Dimension int `yaml:"dimension" toml:"dimension"`
}

// EmbedderConfig selects and configures the embedding provider.
type EmbedderConfig struct {
	Type              string                 `yaml:"type" toml:"type"`
	BatchSize         int                    `yaml:"batch_size" toml:"batch_size"`
	TimeoutSecs       int                    `yaml:"timeout_secs" toml:"timeout_secs"`
	MaxRetries        int                    `yaml:"max_retries" toml:"max_retries"` // 0 means the default; negative disables retries
	RequestsPerSecond float64                `yaml:"requests_per_second" toml:"requests_per_second"`
	OpenAI            *OpenAIEmbedderConfig  `yaml:"openai,omitempty" toml:"openai,omitempty"`
	Ollama            *OllamaEmbedderConfig  `yaml:"ollama,omitempty" toml:"ollama,omitempty"`
	Hashing           *HashingEmbedderConfig `yaml:"hashing,omitempty" toml:"hashing,omitempty"`
}

// IndexConfig selects where the vector index is persisted.
type IndexConfig struct {
	Type string `yaml:"type" toml:"type"`
	Dir  string `yaml:"dir" toml:"dir"`
}

// LLMConfig configures the chat model used for answers, summaries and translation.
type LLMConfig struct {
	Type        string `yaml:"type" toml:"type"`
	BaseURL     string `yaml:"base_url" toml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env" toml:"api_key_env"`
	Model       string `yaml:"model" toml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs" toml:"timeout_secs"`
}

// SummarizerConfig selects and configures the summarizer.
type SummarizerConfig struct {
	Type       string `yaml:"type" toml:"type"`
	MaxLength  int    `yaml:"max_length" toml:"max_length"`
	MinLength  int    `yaml:"min_length" toml:"min_length"`
	ChunkWords int    `yaml:"chunk_words" toml:"chunk_words"`
}

// RetrievalConfig configures the query side.
type RetrievalConfig struct {
	TopK int `yaml:"top_k" toml:"top_k"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Chunker    ChunkerConfig    `yaml:"chunker" toml:"chunker"`
	Embedder   EmbedderConfig   `yaml:"embedder" toml:"embedder"`
	Index      IndexConfig      `yaml:"index" toml:"index"`
	LLM        LLMConfig        `yaml:"llm" toml:"llm"`
	Summarizer SummarizerConfig `yaml:"summarizer" toml:"summarizer"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" toml:"retrieval"`
	Log        LogConfig        `yaml:"log" toml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// Files ending in .toml are decoded as TOML, everything else as YAML.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if isTOML(path) {
		err = toml.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/docrag/config.yaml.
// If neither exists, it writes defaults to ~/.config/docrag/config.yaml and returns them.
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
	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		data, err = toml.Marshal(cfg)
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects unknown component types and non-positive budgets.
func (c *AppConfig) Validate() error {
	if err := oneOf("chunker.tokenizer", c.Chunker.Tokenizer, "tiktoken", "word"); err != nil {
		return err
	}
	if c.Chunker.MaxTokens <= 0 {
		return fmt.Errorf("chunker.max_tokens must be positive, got %d", c.Chunker.MaxTokens)
	}
	if err := oneOf("embedder.type", c.Embedder.Type, "openai", "ollama", "hashing"); err != nil {
		return err
	}
	if c.Embedder.BatchSize <= 0 {
		return fmt.Errorf("embedder.batch_size must be positive, got %d", c.Embedder.BatchSize)
	}
	if err := oneOf("index.type", c.Index.Type, "file", "memory"); err != nil {
		return err
	}
	if err := oneOf("llm.type", c.LLM.Type, "none", "openai"); err != nil {
		return err
	}
	if err := oneOf("summarizer.type", c.Summarizer.Type, "frequency", "llm"); err != nil {
		return err
	}
	if c.Summarizer.Type == "llm" && c.LLM.Type == "none" {
		return errors.New("summarizer.type llm requires an llm section")
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	return nil
}

func oneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("unknown %s %q (want one of %s)", field, value, strings.Join(allowed, ", "))
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "docrag", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Chunker.Tokenizer == "" {
		cfg.Chunker.Tokenizer = "tiktoken"
	}
	if cfg.Chunker.Tokenizer == "tiktoken" && cfg.Chunker.Encoding == "" {
		cfg.Chunker.Encoding = "cl100k_base"
	}
	if cfg.Chunker.MaxTokens == 0 {
		cfg.Chunker.MaxTokens = 500
	}
	if cfg.Chunker.Workers == 0 {
		cfg.Chunker.Workers = 4
	}

	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "hashing"
	}
	if cfg.Embedder.BatchSize == 0 {
		cfg.Embedder.BatchSize = 256
	}
	if cfg.Embedder.TimeoutSecs == 0 {
		cfg.Embedder.TimeoutSecs = 60
	}
	if cfg.Embedder.MaxRetries == 0 {
		cfg.Embedder.MaxRetries = 3
	}
	switch cfg.Embedder.Type {
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
	case "ollama":
		if cfg.Embedder.Ollama == nil {
			cfg.Embedder.Ollama = &OllamaEmbedderConfig{}
		}
		if cfg.Embedder.Ollama.BaseURL == "" {
			cfg.Embedder.Ollama.BaseURL = "http://localhost:11434"
		}
		if cfg.Embedder.Ollama.Model == "" {
			cfg.Embedder.Ollama.Model = "all-minilm"
		}
	case "hashing":
		if cfg.Embedder.Hashing == nil {
			cfg.Embedder.Hashing = &HashingEmbedderConfig{}
		}
		if cfg.Embedder.Hashing.Dimension == 0 {
			cfg.Embedder.Hashing.Dimension = 384
		}
	}

	if cfg.Index.Type == "" {
		cfg.Index.Type = "file"
	}
	if cfg.Index.Dir == "" {
		cfg.Index.Dir = "vector_db"
	}

	if cfg.LLM.Type == "" {
		cfg.LLM.Type = "none"
	}
	if cfg.LLM.Type == "openai" {
		if cfg.LLM.BaseURL == "" {
			cfg.LLM.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.LLM.APIKeyEnv == "" {
			cfg.LLM.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.LLM.Model == "" {
			cfg.LLM.Model = "gpt-4o-mini"
		}
		if cfg.LLM.TimeoutSecs == 0 {
			cfg.LLM.TimeoutSecs = 120
		}
	}

	if cfg.Summarizer.Type == "" {
		cfg.Summarizer.Type = "frequency"
	}
	if cfg.Summarizer.MaxLength == 0 {
		cfg.Summarizer.MaxLength = 200
	}
	if cfg.Summarizer.MinLength == 0 {
		cfg.Summarizer.MinLength = 30
	}
	if cfg.Summarizer.ChunkWords == 0 {
		cfg.Summarizer.ChunkWords = 1000
	}

	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
}
