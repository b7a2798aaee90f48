package timeout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legalflow/pkg/llm"
)

func TestTimeoutBoundsSlowCalls(t *testing.T) {
	base := llm.NewMockClient().SetDelay(time.Second)
	c := llm.Chain(base, Middleware(20*time.Millisecond))

	start := time.Now()
	_, err := c.Generate(context.Background(), llm.NewRequest("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestTimeoutPassesFastCalls(t *testing.T) {
	c := llm.Chain(llm.NewMockClient("ok"), Middleware(time.Second))
	resp, err := c.Generate(context.Background(), llm.NewRequest("x"))
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)

	base := llm.NewMockClient()
	assert.Same(t, llm.Client(base), Middleware(0)(base))
}
