package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"legalflow/pkg/logx"
)

// DefaultAPIKeyEnv maps a provider to the environment variable holding its key.
//
//nolint:gochecknoglobals // static lookup table
var DefaultAPIKeyEnv = map[string]string{
	ProviderAnthropic: "ANTHROPIC_API_KEY",
	ProviderOpenAI:    "OPENAI_API_KEY",
	ProviderGoogle:    "GEMINI_API_KEY",
}

// Load reads path (YAML for .yaml/.yml, JSON otherwise) over Default(), applies environment
// overrides and validates. An empty path loads defaults only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := decode(path, data, &cfg); err != nil {
			return nil, err
		}
		logx.NewLogger("config").Info("Loaded configuration from %s", path)
	}

	applyEnv(&cfg)
	applySmartDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse YAML config %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse JSON config %s: %w", path, err)
		}
	}
	return nil
}

// applyEnv overlays LEGALFLOW_* variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("LEGALFLOW_LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("LEGALFLOW_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LEGALFLOW_LLM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.LLM.RequestTimeout = d
		}
	}
	if v := os.Getenv("LEGALFLOW_EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("LEGALFLOW_EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("LEGALFLOW_EMBEDDING_DIMENSION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Embedding.Dimension = n
		}
	}
	if v := os.Getenv("LEGALFLOW_RETRIEVAL_DIR"); v != "" {
		cfg.Retrieval.Dir = v
	}
	if v := os.Getenv("LEGALFLOW_STORE_DRIVER"); v != "" {
		cfg.Persistence.Driver = v
	}
	if v := os.Getenv("LEGALFLOW_STORE_DSN"); v != "" {
		cfg.Persistence.DSN = v
	}
	if v := os.Getenv("LEGALFLOW_METRICS_ADDR"); v != "" {
		cfg.Metrics.ListenAddr = v
	}
}

// applySmartDefaults fills values that depend on other settings.
func applySmartDefaults(cfg *Config) {
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = DefaultAPIKeyEnv[cfg.LLM.Provider]
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = DefaultAPIKeyEnv[cfg.Embedding.Provider]
	}
	if cfg.LLM.Provider == ProviderOllama && cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "http://localhost:11434"
	}
	if cfg.Embedding.Provider == ProviderOllama && cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "http://localhost:11434"
	}
	if cfg.Embedding.Model == "" {
		switch cfg.Embedding.Provider {
		case ProviderOpenAI:
			cfg.Embedding.Model = "text-embedding-3-small"
		case ProviderOllama:
			cfg.Embedding.Model = "nomic-embed-text"
		case ProviderGoogle:
			cfg.Embedding.Model = "text-embedding-004"
		}
	}
	if cfg.Retrieval.EfSearch <= 0 {
		cfg.Retrieval.EfSearch = 64
	}
	if cfg.Retrieval.Ml <= 0 {
		cfg.Retrieval.Ml = 0.25
	}
	if cfg.Workflow.QueueCapacity <= 0 {
		cfg.Workflow.QueueCapacity = 64
	}
}

// APIKey resolves a key through the secrets file first, then the environment.
func APIKey(envName string) (string, error) {
	if envName == "" {
		return "", fmt.Errorf("no API key variable configured")
	}
	return GetSecret(envName)
}
