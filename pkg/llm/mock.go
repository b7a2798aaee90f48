package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MockClient is a scripted Client for tests and offline runs.
//
// Replies come from, in order: a forced error, the queued responses, the responder function,
// and finally a deterministic canned reply derived from the prompt.
type MockClient struct {
	mu        sync.Mutex
	model     string
	responses []string
	responder func(Request) (string, error)
	err       error
	delay     time.Duration
	calls     []Request
}

// NewMockClient returns a mock that replies with responses in order.
func NewMockClient(responses ...string) *MockClient {
	return &MockClient{model: "mock-model", responses: responses}
}

// SetResponder installs a function consulted once queued responses run out.
func (m *MockClient) SetResponder(fn func(Request) (string, error)) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responder = fn
	return m
}

// SetError makes every call fail with err. Nil clears it.
func (m *MockClient) SetError(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// SetDelay makes every call block for d or until ctx is done.
func (m *MockClient) SetDelay(d time.Duration) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// Calls returns a copy of every request received.
func (m *MockClient) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.calls))
	copy(out, m.calls)
	return out
}

// Generate implements Client.
func (m *MockClient) Generate(ctx context.Context, req Request) (Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	delay, err := m.delay, m.err
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return Response{}, fmt.Errorf("mock generate: %w", ctx.Err())
		case <-time.After(delay):
		}
	}
	if err != nil {
		return Response{}, err
	}

	content, err := m.next(req)
	if err != nil {
		return Response{}, err
	}
	prompt := len(req.UserText()+req.SystemPrompt) / 4
	completion := len(content) / 4
	return Response{
		Content:   content,
		Usage:     Usage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: prompt + completion},
		Model:     m.model,
		Timestamp: time.Now(),
	}, nil
}

func (m *MockClient) next(req Request) (string, error) {
	m.mu.Lock()
	if len(m.responses) > 0 {
		r := m.responses[0]
		m.responses = m.responses[1:]
		m.mu.Unlock()
		return r, nil
	}
	responder := m.responder
	m.mu.Unlock()

	if responder != nil {
		return responder(req)
	}
	return cannedReply(req.Prompt), nil
}

// ModelName implements Client.
func (m *MockClient) ModelName() string {
	return m.model
}

func cannedReply(prompt string) string {
	first := strings.TrimSpace(strings.SplitN(prompt, "\n", 2)[0])
	if len(first) > 120 {
		first = first[:120]
	}
	return "Offline draft generated without a language model.\n\n" + first
}
