package llmclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legalflow/pkg/config"
	"legalflow/pkg/llm"
	"legalflow/pkg/llm/llmerrors"
	"legalflow/pkg/llm/middleware/circuit"
	"legalflow/pkg/llm/middleware/metrics"
	"legalflow/pkg/llm/middleware/ratelimit"
)

func TestNewMockProvider(t *testing.T) {
	cfg := config.Default().LLM
	c, err := New(cfg, metrics.Nop())
	require.NoError(t, err)

	resp, err := c.Generate(context.Background(), llm.NewRequest("Summarise the dispute"))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Content)
	assert.Equal(t, "mock-model", c.ModelName())
	assert.Positive(t, resp.Usage.TotalTokens)
}

func TestProvidersRequireKey(t *testing.T) {
	config.SetSecrets(nil)
	for _, p := range []string{config.ProviderAnthropic, config.ProviderOpenAI, config.ProviderGoogle} {
		cfg := config.LLMConfig{Provider: p, Model: "m", APIKeyEnv: "LEGALFLOW_TEST_MISSING_KEY"}
		_, err := NewProvider(cfg)
		assert.Error(t, err, p)
	}
}

func TestProvidersConstructWithKey(t *testing.T) {
	t.Setenv("LEGALFLOW_TEST_KEY", "k")
	for _, p := range []string{config.ProviderAnthropic, config.ProviderOpenAI, config.ProviderGoogle, config.ProviderOllama} {
		cfg := config.LLMConfig{Provider: p, Model: "model-x", APIKeyEnv: "LEGALFLOW_TEST_KEY", BaseURL: "http://127.0.0.1:1"}
		c, err := NewProvider(cfg)
		require.NoError(t, err, p)
		assert.Equal(t, "model-x", c.ModelName())
	}
	_, err := NewProvider(config.LLMConfig{Provider: "nope", APIKeyEnv: "LEGALFLOW_TEST_KEY"})
	assert.Error(t, err)
}

func TestWrapAppliesTimeoutAndRetry(t *testing.T) {
	base := llm.NewMockClient().SetDelay(time.Second)
	cfg := config.LLMConfig{RequestTimeout: 10 * time.Millisecond, MaxAttempts: 2}
	c := Wrap(base, cfg, metrics.Nop())

	_, err := c.Generate(context.Background(), llm.NewRequest("slow"))
	require.Error(t, err)
	assert.True(t, llmerrors.IsServiceUnavailable(err))
	assert.Len(t, base.Calls(), 2)
}

func TestWrapAppliesRateLimit(t *testing.T) {
	base := llm.NewMockClient("ok")
	cfg := config.LLMConfig{RequestTimeout: time.Second, MaxAttempts: 3, TokensPerMinute: 50}
	c := Wrap(base, cfg, metrics.Nop())

	_, err := c.Generate(context.Background(), llm.NewRequest("far more than fifty tokens once the reply budget is added"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ratelimit.ErrRequestTooLarge)
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeBadPrompt))
	assert.Empty(t, base.Calls())
}

func TestWrapOpensCircuit(t *testing.T) {
	base := llm.NewMockClient().SetError(llmerrors.NewError(llmerrors.ErrorTypeAuth, "bad key"))
	cfg := config.LLMConfig{RequestTimeout: time.Second, MaxAttempts: 3, CircuitFailureThreshold: 2, CircuitCooldown: time.Hour}
	c := Wrap(base, cfg, metrics.Nop())

	for range 2 {
		_, err := c.Generate(context.Background(), llm.NewRequest("x"))
		require.True(t, llmerrors.Is(err, llmerrors.ErrorTypeAuth))
	}
	_, err := c.Generate(context.Background(), llm.NewRequest("x"))
	require.Error(t, err)
	assert.True(t, llmerrors.IsServiceUnavailable(err))
	var open *circuit.OpenError
	assert.ErrorAs(t, err, &open)
	assert.Len(t, base.Calls(), 2, "open circuit is not retried")
}
