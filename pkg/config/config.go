// Package config provides configuration loading, defaults, validation and secrets for legalflow.
//
// Configuration is a single Config value loaded once at startup from a YAML or JSON file
// (chosen by extension), overlaid with smart defaults and LEGALFLOW_* environment overrides.
// Algorithm constants (stage tables, multipliers) live in their owning packages and are not
// user-configurable.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Provider names shared by the generation and embedding sections.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGoogle    = "google"
	ProviderOllama    = "ollama"
	ProviderHash      = "hash"
	ProviderMock      = "mock"
)

// Store drivers for workflow persistence.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the root configuration.
type Config struct {
	LLM         LLMConfig         `yaml:"llm" json:"llm"`
	Embedding   EmbeddingConfig   `yaml:"embedding" json:"embedding"`
	Retrieval   RetrievalConfig   `yaml:"retrieval" json:"retrieval"`
	Workflow    WorkflowConfig    `yaml:"workflow" json:"workflow"`
	Agents      AgentsConfig      `yaml:"agents" json:"agents"`
	Persistence PersistenceConfig `yaml:"persistence" json:"persistence"`
	Metrics     MetricsConfig     `yaml:"metrics" json:"metrics"`
	EventLog    EventLogConfig    `yaml:"eventlog" json:"eventlog"`
}

// LLMConfig selects and tunes the text-generation backend.
type LLMConfig struct {
	Provider       string        `yaml:"provider" json:"provider"`
	Model          string        `yaml:"model" json:"model"`
	APIKeyEnv      string        `yaml:"api_key_env" json:"api_key_env"`
	BaseURL        string        `yaml:"base_url" json:"base_url"`
	Temperature    float32       `yaml:"temperature" json:"temperature"`
	MaxTokens      int           `yaml:"max_tokens" json:"max_tokens"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	MaxAttempts    int           `yaml:"max_attempts" json:"max_attempts"`

	// Client-side throttling; zero disables.
	TokensPerMinute int `yaml:"tokens_per_minute" json:"tokens_per_minute"`
	MaxConcurrency  int `yaml:"max_concurrency" json:"max_concurrency"`

	// Circuit breaker around the backend; a zero threshold disables it.
	CircuitFailureThreshold int           `yaml:"circuit_failure_threshold" json:"circuit_failure_threshold"`
	CircuitCooldown         time.Duration `yaml:"circuit_cooldown" json:"circuit_cooldown"`
}

// EmbeddingConfig selects the Embedder strategy. The choice is made once at construction.
type EmbeddingConfig struct {
	Provider       string        `yaml:"provider" json:"provider"`
	Model          string        `yaml:"model" json:"model"`
	APIKeyEnv      string        `yaml:"api_key_env" json:"api_key_env"`
	BaseURL        string        `yaml:"base_url" json:"base_url"`
	Dimension      int           `yaml:"dimension" json:"dimension"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

// RetrievalConfig locates the on-disk index and tunes the HNSW graph.
type RetrievalConfig struct {
	Dir      string  `yaml:"dir" json:"dir"`
	M        int     `yaml:"m" json:"m"`
	Ml       float64 `yaml:"ml" json:"ml"`
	EfSearch int     `yaml:"ef_search" json:"ef_search"`
}

// WorkflowConfig tunes the orchestrator.
type WorkflowConfig struct {
	BaseMinutes   float64 `yaml:"base_minutes" json:"base_minutes"`
	QueueCapacity int     `yaml:"queue_capacity" json:"queue_capacity"`
}

// AgentsConfig tunes the agent variants.
type AgentsConfig struct {
	Intake   IntakeConfig   `yaml:"intake" json:"intake"`
	Research ResearchConfig `yaml:"research" json:"research"`
	Document DocumentConfig `yaml:"document" json:"document"`
}

// IntakeConfig controls optional AI refinement of validated input.
type IntakeConfig struct {
	AIRefinement bool `yaml:"ai_refinement" json:"ai_refinement"`
}

// ResearchConfig controls retrieval breadth for the research agent.
type ResearchConfig struct {
	MaxResults    int     `yaml:"max_results" json:"max_results"`
	Threshold     float64 `yaml:"threshold" json:"threshold"`
	FallbackTopN  int     `yaml:"fallback_top_n" json:"fallback_top_n"`
	ContextTopN   int     `yaml:"context_top_n" json:"context_top_n"`
}

// DocumentConfig controls document generation.
type DocumentConfig struct {
	Formats         []string `yaml:"formats" json:"formats"`
	MinHealthLength int      `yaml:"min_health_length" json:"min_health_length"`
}

// PersistenceConfig selects the workflow Store.
type PersistenceConfig struct {
	Driver string `yaml:"driver" json:"driver"`
	Path   string `yaml:"path" json:"path"`
	DSN    string `yaml:"dsn" json:"dsn"`
}

// MetricsConfig controls the ops server and the Prometheus query endpoint.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled" json:"enabled"`
	ListenAddr    string `yaml:"listen_addr" json:"listen_addr"`
	PrometheusURL string `yaml:"prometheus_url" json:"prometheus_url"`
}

// EventLogConfig controls the JSONL lifecycle event sink.
type EventLogConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Dir     string `yaml:"dir" json:"dir"`
}

// Default returns a configuration that runs fully offline: mock generation, hash embeddings,
// in-memory workflow store.
func Default() Config {
	return Config{
		LLM: LLMConfig{
			Provider:       ProviderMock,
			Temperature:    0.3,
			MaxTokens:      4096,
			RequestTimeout: 2 * time.Minute,
			MaxAttempts:    3,

			CircuitFailureThreshold: 5,
			CircuitCooldown:         30 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Provider:       ProviderHash,
			Dimension:      384,
			RequestTimeout: 30 * time.Second,
		},
		Retrieval: RetrievalConfig{
			Dir:             "data/vectors",
			M:        16,
			Ml:       0.25,
			EfSearch: 64,
		},
		Workflow: WorkflowConfig{
			BaseMinutes:   30,
			QueueCapacity: 64,
		},
		Agents: AgentsConfig{
			Intake: IntakeConfig{AIRefinement: true},
			Research: ResearchConfig{
				MaxResults:   20,
				Threshold:    0.2,
				FallbackTopN: 5,
				ContextTopN:  8,
			},
			Document: DocumentConfig{
				Formats:         []string{"html", "markdown"},
				MinHealthLength: 100,
			},
		},
		Persistence: PersistenceConfig{
			Driver: StoreMemory,
			Path:   "data/workflows.db",
		},
		Metrics: MetricsConfig{
			Enabled:    true,
			ListenAddr: ":9464",
		},
		EventLog: EventLogConfig{
			Enabled: false,
			Dir:     "data/events",
		},
	}
}

// Validate checks the configuration for values the services cannot run with.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderAnthropic, ProviderOpenAI, ProviderGoogle, ProviderOllama, ProviderMock:
	default:
		return fmt.Errorf("%w: unknown llm provider %q", ErrInvalidConfig, c.LLM.Provider)
	}
	if c.LLM.Provider != ProviderMock && c.LLM.Model == "" {
		return fmt.Errorf("%w: llm.model is required for provider %s", ErrInvalidConfig, c.LLM.Provider)
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("%w: llm.max_tokens must be positive", ErrInvalidConfig)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("%w: llm.temperature must be between 0.0 and 2.0", ErrInvalidConfig)
	}
	if c.LLM.TokensPerMinute < 0 || c.LLM.MaxConcurrency < 0 {
		return fmt.Errorf("%w: llm.tokens_per_minute and llm.max_concurrency must not be negative", ErrInvalidConfig)
	}
	if c.LLM.CircuitFailureThreshold < 0 || c.LLM.CircuitCooldown < 0 {
		return fmt.Errorf("%w: llm.circuit_failure_threshold and llm.circuit_cooldown must not be negative", ErrInvalidConfig)
	}
	if c.LLM.RequestTimeout <= 0 {
		return fmt.Errorf("%w: llm.request_timeout must be positive", ErrInvalidConfig)
	}

	switch c.Embedding.Provider {
	case ProviderHash, ProviderOpenAI, ProviderOllama, ProviderGoogle:
	default:
		return fmt.Errorf("%w: unknown embedding provider %q", ErrInvalidConfig, c.Embedding.Provider)
	}
	if c.Embedding.Provider == ProviderHash && c.Embedding.Dimension <= 0 {
		return fmt.Errorf("%w: embedding.dimension must be positive for the hash embedder", ErrInvalidConfig)
	}

	if c.Retrieval.Dir == "" {
		return fmt.Errorf("%w: retrieval.dir is required", ErrInvalidConfig)
	}
	if c.Retrieval.M < 2 {
		return fmt.Errorf("%w: retrieval.m must be at least 2", ErrInvalidConfig)
	}
	if c.Workflow.BaseMinutes <= 0 {
		return fmt.Errorf("%w: workflow.base_minutes must be positive", ErrInvalidConfig)
	}
	if c.Agents.Research.MaxResults <= 0 {
		return fmt.Errorf("%w: agents.research.max_results must be positive", ErrInvalidConfig)
	}
	if c.Agents.Research.Threshold < 0 || c.Agents.Research.Threshold > 1 {
		return fmt.Errorf("%w: agents.research.threshold must be within [0,1]", ErrInvalidConfig)
	}
	if len(c.Agents.Document.Formats) < 2 {
		return fmt.Errorf("%w: agents.document.formats needs at least two formats", ErrInvalidConfig)
	}

	switch c.Persistence.Driver {
	case StoreMemory:
	case StoreSQLite:
		if c.Persistence.Path == "" {
			return fmt.Errorf("%w: persistence.path is required for sqlite", ErrInvalidConfig)
		}
	case StorePostgres:
		if c.Persistence.DSN == "" {
			return fmt.Errorf("%w: persistence.dsn is required for postgres", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown persistence driver %q", ErrInvalidConfig, c.Persistence.Driver)
	}
	return nil
}
