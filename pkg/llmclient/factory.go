// Package llmclient builds a configured llm.Client: the provider adapter wrapped in the
// metrics, circuit, retry, rate-limit and timeout middleware.
package llmclient

import (
	"fmt"

	"github.com/ollama/ollama/api"

	"legalflow/pkg/config"
	"legalflow/pkg/llm"
	"legalflow/pkg/llm/middleware/circuit"
	"legalflow/pkg/llm/middleware/metrics"
	"legalflow/pkg/llm/middleware/ratelimit"
	"legalflow/pkg/llm/middleware/retry"
	"legalflow/pkg/llm/middleware/timeout"
	"legalflow/pkg/llmclient/internal/anthropic"
	"legalflow/pkg/llmclient/internal/google"
	"legalflow/pkg/llmclient/internal/ollama"
	"legalflow/pkg/llmclient/internal/openai"
	"legalflow/pkg/logx"
)

// NewProvider returns the raw provider client for cfg without middleware.
func NewProvider(cfg config.LLMConfig) (llm.Client, error) {
	switch cfg.Provider {
	case config.ProviderMock:
		return llm.NewMockClient(), nil
	case config.ProviderOllama:
		return ollama.New(cfg.BaseURL, cfg.Model), nil
	}

	key, err := config.APIKey(cfg.APIKeyEnv)
	if err != nil {
		return nil, fmt.Errorf("llm provider %s: %w", cfg.Provider, err)
	}
	switch cfg.Provider {
	case config.ProviderAnthropic:
		return anthropic.New(key, cfg.Model, cfg.BaseURL), nil
	case config.ProviderOpenAI:
		return openai.New(key, cfg.Model, cfg.BaseURL), nil
	case config.ProviderGoogle:
		return google.New(key, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// Wrap applies the standard middleware stack: metrics -> circuit -> retry -> ratelimit -> timeout
// -> base. Retries go back through the limiter. The breaker counts whole retried calls, so it
// opens only after the retry layer has given up repeatedly.
func Wrap(base llm.Client, cfg config.LLMConfig, recorder metrics.Recorder) llm.Client {
	policyCfg := retry.DefaultConfig
	if cfg.MaxAttempts > 0 {
		policyCfg.MaxAttempts = cfg.MaxAttempts
	}
	var limiter *ratelimit.Limiter
	if limits := (ratelimit.Config{TokensPerMinute: cfg.TokensPerMinute, MaxConcurrency: cfg.MaxConcurrency}); limits.Enabled() {
		limiter = ratelimit.NewLimiter(base.ModelName(), limits)
	}
	var breaker *circuit.Breaker
	if cfg.CircuitFailureThreshold > 0 {
		breakerCfg := circuit.DefaultConfig
		breakerCfg.FailureThreshold = cfg.CircuitFailureThreshold
		if cfg.CircuitCooldown > 0 {
			breakerCfg.Cooldown = cfg.CircuitCooldown
		}
		breaker = circuit.New(breakerCfg)
	}
	return llm.Chain(base,
		metrics.Middleware(recorder, logx.NewLogger("llm")),
		circuit.Middleware(breaker, logx.NewLogger("circuit")),
		retry.Middleware(retry.NewPolicy(policyCfg, nil)),
		ratelimit.Middleware(limiter),
		timeout.Middleware(cfg.RequestTimeout),
	)
}

// New builds the provider for cfg and wraps it.
func New(cfg config.LLMConfig, recorder metrics.Recorder) (llm.Client, error) {
	base, err := NewProvider(cfg)
	if err != nil {
		return nil, err
	}
	return Wrap(base, cfg, recorder), nil
}

// NewOllamaAPIClient exposes the shared Ollama API client construction for the embedder.
func NewOllamaAPIClient(hostURL string) *api.Client {
	return ollama.NewAPIClient(hostURL)
}
