// Package llm defines the text-generation contract consumed by agents, the middleware chain
// wrapped around it, and a scripted mock client.
package llm

import (
	"context"
	"time"
)

const (
	// TemperatureDefault is used for analysis and drafting.
	TemperatureDefault = 0.3

	// TemperatureDeterministic is used for structured JSON replies.
	TemperatureDeterministic = 0.1

	// DefaultMaxTokens caps a reply when the caller does not set a limit.
	DefaultMaxTokens = 4096
)

// Request is one text-generation call.
type Request struct {
	Prompt       string
	Context      string // optional reference material, prepended to the prompt
	SystemPrompt string
	Temperature  float32
	MaxTokens    int
}

// Usage reports token consumption for one call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the result of a generation call.
type Response struct {
	Content   string    `json:"content"`
	Usage     Usage     `json:"usage"`
	Model     string    `json:"model"`
	Timestamp time.Time `json:"timestamp"`
}

// Client generates text. Failures surface as *llmerrors.Error.
type Client interface {
	Generate(ctx context.Context, req Request) (Response, error)

	// ModelName returns the model this client talks to.
	ModelName() string
}

// NewRequest returns a request with default temperature and token limit.
func NewRequest(prompt string) Request {
	return Request{
		Prompt:      prompt,
		Temperature: TemperatureDefault,
		MaxTokens:   DefaultMaxTokens,
	}
}

// UserText joins the optional context and the prompt the way every provider sends them.
func (r Request) UserText() string {
	if r.Context == "" {
		return r.Prompt
	}
	return "Context:\n" + r.Context + "\n\n" + r.Prompt
}

type callInfoKey struct{}

// CallInfo identifies who is making a generation call, for metrics labels.
type CallInfo struct {
	WorkflowID string
	AgentID    string
	Step       string
}

// WithCallInfo attaches caller identity to ctx.
func WithCallInfo(ctx context.Context, info CallInfo) context.Context {
	return context.WithValue(ctx, callInfoKey{}, info)
}

// CallInfoFrom returns the caller identity stored in ctx, if any.
func CallInfoFrom(ctx context.Context) CallInfo {
	if info, ok := ctx.Value(callInfoKey{}).(CallInfo); ok {
		return info
	}
	return CallInfo{}
}
