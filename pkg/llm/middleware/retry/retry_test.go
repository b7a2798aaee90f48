package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legalflow/pkg/llm"
	"legalflow/pkg/llm/llmerrors"
)

func fastPolicy(attempts int) *Policy {
	return NewPolicy(Config{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffFactor: 2}, nil)
}

func TestShouldRetry(t *testing.T) {
	assert.False(t, ShouldRetry(nil))
	assert.False(t, ShouldRetry(context.Canceled))
	assert.True(t, ShouldRetry(fmt.Errorf("http: %w", context.DeadlineExceeded)))
	assert.True(t, ShouldRetry(llmerrors.NewError(llmerrors.ErrorTypeTransient, "503")))
	assert.False(t, ShouldRetry(llmerrors.NewError(llmerrors.ErrorTypeAuth, "key")))
	assert.False(t, ShouldRetry(errors.New("plain")))
}

func TestCalculateDelay(t *testing.T) {
	p := NewPolicy(Config{MaxAttempts: 5, InitialDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, BackoffFactor: 2}, nil)
	assert.Equal(t, time.Duration(0), p.CalculateDelay(1))
	assert.Equal(t, 100*time.Millisecond, p.CalculateDelay(2))
	assert.Equal(t, 200*time.Millisecond, p.CalculateDelay(3))
	assert.Equal(t, 300*time.Millisecond, p.CalculateDelay(4))

	p.Config.Jitter = true
	d := p.CalculateDelay(2)
	assert.InDelta(t, float64(100*time.Millisecond), float64(d), float64(10*time.Millisecond)+1)
}

func TestMiddlewareRecovers(t *testing.T) {
	calls := 0
	base := llm.NewMockClient().SetResponder(func(llm.Request) (string, error) {
		calls++
		if calls < 3 {
			return "", llmerrors.NewError(llmerrors.ErrorTypeTransient, "flaky")
		}
		return "done", nil
	})

	c := llm.Chain(base, Middleware(fastPolicy(3)))
	resp, err := c.Generate(context.Background(), llm.NewRequest("x"))
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Content)
	assert.Equal(t, 3, calls)
}

func TestMiddlewareExhaustsToServiceUnavailable(t *testing.T) {
	base := llm.NewMockClient().SetError(llmerrors.NewError(llmerrors.ErrorTypeRateLimit, "429"))
	c := llm.Chain(base, Middleware(fastPolicy(2)))

	_, err := c.Generate(context.Background(), llm.NewRequest("x"))
	require.Error(t, err)
	assert.True(t, llmerrors.IsServiceUnavailable(err))
	assert.Len(t, base.Calls(), 2)
}

func TestMiddlewareDoesNotRetryAuth(t *testing.T) {
	base := llm.NewMockClient().SetError(llmerrors.NewError(llmerrors.ErrorTypeAuth, "bad key"))
	c := llm.Chain(base, Middleware(fastPolicy(5)))

	_, err := c.Generate(context.Background(), llm.NewRequest("x"))
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeAuth))
	assert.Len(t, base.Calls(), 1)
}
