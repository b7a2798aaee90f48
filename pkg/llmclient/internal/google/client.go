// Package google adapts the Gemini API to llm.Client.
package google

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"legalflow/pkg/llm"
	"legalflow/pkg/llm/llmerrors"
)

const provider = "google"

// Client is a raw Gemini client. The SDK client is created lazily on first use.
type Client struct {
	apiKey string
	model  string

	once    sync.Once
	client  *genai.Client
	initErr error
}

// New returns a client for model.
func New(apiKey, model string) *Client {
	return &Client{apiKey: apiKey, model: model}
}

func (c *Client) sdk(ctx context.Context) (*genai.Client, error) {
	c.once.Do(func() {
		c.client, c.initErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  c.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
	})
	if c.initErr != nil {
		return nil, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeAuth, c.initErr, fmt.Sprintf("failed to create Gemini client: %v", c.initErr))
	}
	return c.client, nil
}

// Generate implements llm.Client.
func (c *Client) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return llm.Response{}, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, "empty prompt")
	}
	client, err := c.sdk(ctx)
	if err != nil {
		return llm.Response{}, err
	}

	temperature := req.Temperature
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = llm.DefaultMaxTokens
	}
	config := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(maxTokens), //nolint:gosec // bounded by config validation
	}
	if req.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.SystemPrompt}}}
	}

	result, err := client.Models.GenerateContent(ctx, c.model, genai.Text(req.UserText()), config)
	if err != nil {
		return llm.Response{}, llmerrors.Classify(provider, err, 0)
	}
	content := result.Text()
	if strings.TrimSpace(content) == "" {
		return llm.Response{}, &llmerrors.Error{Type: llmerrors.ErrorTypeEmptyResponse, Provider: provider, Message: "empty response"}
	}

	var usage llm.Usage
	if md := result.UsageMetadata; md != nil {
		usage = llm.Usage{
			PromptTokens:     int(md.PromptTokenCount),
			CompletionTokens: int(md.CandidatesTokenCount),
			TotalTokens:      int(md.TotalTokenCount),
		}
	}
	return llm.Response{Content: content, Usage: usage, Model: c.model, Timestamp: time.Now()}, nil
}

// ModelName implements llm.Client.
func (c *Client) ModelName() string {
	return c.model
}
