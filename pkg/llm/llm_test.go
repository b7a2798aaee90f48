package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainOrder(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next Client) Client {
			return WrapClient(
				func(ctx context.Context, req Request) (Response, error) {
					order = append(order, name)
					return next.Generate(ctx, req)
				},
				next.ModelName,
			)
		}
	}

	c := Chain(NewMockClient("ok"), tag("outer"), tag("inner"))
	resp, err := c.Generate(context.Background(), NewRequest("hi"))
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, []string{"outer", "inner"}, order)
	assert.Equal(t, "mock-model", c.ModelName())
}

func TestMockClientScript(t *testing.T) {
	m := NewMockClient("first")
	m.SetResponder(func(r Request) (string, error) { return "echo:" + r.Prompt, nil })

	ctx := context.Background()
	r1, err := m.Generate(ctx, NewRequest("a"))
	require.NoError(t, err)
	r2, err := m.Generate(ctx, NewRequest("b"))
	require.NoError(t, err)

	assert.Equal(t, "first", r1.Content)
	assert.Equal(t, "echo:b", r2.Content)
	assert.Equal(t, r2.Usage.PromptTokens+r2.Usage.CompletionTokens, r2.Usage.TotalTokens)
	assert.Len(t, m.Calls(), 2)

	boom := errors.New("boom")
	m.SetError(boom)
	_, err = m.Generate(ctx, NewRequest("c"))
	assert.ErrorIs(t, err, boom)
}

func TestMockClientCannedReplyAndDelay(t *testing.T) {
	m := NewMockClient()
	resp, err := m.Generate(context.Background(), NewRequest("Draft a legal memo\nmore"))
	require.NoError(t, err)
	assert.Contains(t, resp.Content, "Draft a legal memo")

	m.SetDelay(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = m.Generate(ctx, NewRequest("x"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUserText(t *testing.T) {
	assert.Equal(t, "p", Request{Prompt: "p"}.UserText())
	assert.Equal(t, "Context:\nc\n\np", Request{Prompt: "p", Context: "c"}.UserText())
}
