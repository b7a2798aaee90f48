// Package anthropic adapts the Anthropic Messages API to llm.Client.
package anthropic

import (
	"context"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"legalflow/pkg/llm"
	"legalflow/pkg/llm/llmerrors"
)

const provider = "anthropic"

// Client is a raw Anthropic client. Middleware is applied by the factory.
type Client struct {
	client anthropic.Client
	model  anthropic.Model
}

// New returns a client for model. baseURL may be empty.
func New(apiKey, model, baseURL string) *Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Client{
		client: anthropic.NewClient(opts...),
		model:  anthropic.Model(model),
	}
}

// Generate implements llm.Client.
func (c *Client) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return llm.Response{}, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, "empty prompt")
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = llm.DefaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:       c.model,
		MaxTokens:   int64(maxTokens),
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserText()))},
		Temperature: anthropic.Float(float64(req.Temperature)),
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return llm.Response{}, llmerrors.Classify(provider, err, 0)
	}
	if resp == nil || len(resp.Content) == 0 {
		return llm.Response{}, &llmerrors.Error{Type: llmerrors.ErrorTypeEmptyResponse, Provider: provider, Message: "empty response"}
	}

	var text strings.Builder
	for i := range resp.Content {
		if resp.Content[i].Type == "text" {
			text.WriteString(resp.Content[i].AsText().Text)
		}
	}
	if text.Len() == 0 {
		return llm.Response{}, &llmerrors.Error{Type: llmerrors.ErrorTypeEmptyResponse, Provider: provider, Message: "no text blocks in response"}
	}

	prompt, completion := int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens)
	return llm.Response{
		Content:   text.String(),
		Usage:     llm.Usage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: prompt + completion},
		Model:     string(resp.Model),
		Timestamp: time.Now(),
	}, nil
}

// ModelName implements llm.Client.
func (c *Client) ModelName() string {
	return string(c.model)
}
