package circuit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legalflow/pkg/llm"
	"legalflow/pkg/llm/llmerrors"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func TestBreakerTransitions(t *testing.T) {
	cfg := Config{FailureThreshold: 2, SuccessThreshold: 2, Cooldown: time.Minute}

	// step is one call: advance the clock, ask Allow, then record the outcome if allowed.
	type step struct {
		advance time.Duration
		success bool
		allowed bool
		state   State
	}
	tests := []struct {
		name  string
		steps []step
	}{
		{
			name: "success keeps closed",
			steps: []step{
				{success: true, allowed: true, state: Closed},
				{success: true, allowed: true, state: Closed},
			},
		},
		{
			name: "failures below threshold stay closed",
			steps: []step{
				{success: false, allowed: true, state: Closed},
				{success: true, allowed: true, state: Closed},
				{success: false, allowed: true, state: Closed},
			},
		},
		{
			name: "consecutive failures open",
			steps: []step{
				{success: false, allowed: true, state: Closed},
				{success: false, allowed: true, state: Open},
				{allowed: false, state: Open},
			},
		},
		{
			name: "cooldown allows a trial and successes close",
			steps: []step{
				{success: false, allowed: true, state: Closed},
				{success: false, allowed: true, state: Open},
				{advance: time.Minute, success: true, allowed: true, state: HalfOpen},
				{success: true, allowed: true, state: Closed},
			},
		},
		{
			name: "failure while half-open reopens",
			steps: []step{
				{success: false, allowed: true, state: Closed},
				{success: false, allowed: true, state: Open},
				{advance: time.Minute, success: false, allowed: true, state: Open},
				{advance: 30 * time.Second, allowed: false, state: Open},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
			b := newBreaker(cfg, c.Now)
			for i, s := range tt.steps {
				c.now = c.now.Add(s.advance)
				allowed := b.Allow()
				require.Equal(t, s.allowed, allowed, "step %d allow", i)
				if allowed {
					b.Record(s.success)
				}
				assert.Equal(t, s.state, b.State(), "step %d state", i)
			}
		})
	}
}

func TestReset(t *testing.T) {
	b := New(Config{FailureThreshold: 1, Cooldown: time.Hour})
	b.Record(false)
	require.Equal(t, Open, b.State())
	assert.False(t, b.Allow())

	b.Reset()
	assert.Equal(t, Closed, b.State())
	assert.True(t, b.Allow())
}

func TestMiddlewareFailsFastWhenOpen(t *testing.T) {
	base := llm.NewMockClient().SetError(llmerrors.NewError(llmerrors.ErrorTypeTransient, "503"))
	b := New(Config{FailureThreshold: 2, Cooldown: time.Hour})
	c := llm.Chain(base, Middleware(b, nil))

	for range 2 {
		_, err := c.Generate(context.Background(), llm.NewRequest("x"))
		require.True(t, llmerrors.Is(err, llmerrors.ErrorTypeTransient))
	}
	require.Equal(t, Open, b.State())

	_, err := c.Generate(context.Background(), llm.NewRequest("x"))
	require.Error(t, err)
	assert.True(t, llmerrors.IsServiceUnavailable(err))
	var open *OpenError
	require.ErrorAs(t, err, &open)
	assert.Equal(t, base.ModelName(), open.Model)
	assert.Len(t, base.Calls(), 2, "open circuit does not reach the backend")
}

func TestMiddlewareIgnoresCallerFaults(t *testing.T) {
	b := New(Config{FailureThreshold: 1, Cooldown: time.Hour})

	bad := llm.Chain(llm.NewMockClient().SetError(llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, "too long")), Middleware(b, nil))
	_, err := bad.Generate(context.Background(), llm.NewRequest("x"))
	require.Error(t, err)
	assert.Equal(t, Closed, b.State())

	cancelled := llm.Chain(llm.NewMockClient().SetError(context.Canceled), Middleware(b, nil))
	_, err = cancelled.Generate(context.Background(), llm.NewRequest("x"))
	require.Error(t, err)
	assert.Equal(t, Closed, b.State())

	down := llm.Chain(llm.NewMockClient().SetError(errors.New("connection refused")), Middleware(b, nil))
	_, err = down.Generate(context.Background(), llm.NewRequest("x"))
	require.Error(t, err)
	assert.Equal(t, Open, b.State())
}

func TestNilBreakerPassesThrough(t *testing.T) {
	base := llm.NewMockClient("ok")
	assert.Same(t, llm.Client(base), Middleware(nil, nil)(base))
}
