// Package ollama adapts a local Ollama server to llm.Client.
package ollama

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"legalflow/pkg/llm"
	"legalflow/pkg/llm/llmerrors"
)

const provider = "ollama"

// DefaultHost is used when no base URL is configured or it does not parse.
const DefaultHost = "http://localhost:11434"

// Client talks to an Ollama server.
type Client struct {
	client *api.Client
	model  string
}

// NewAPIClient builds the raw Ollama API client for hostURL.
func NewAPIClient(hostURL string) *api.Client {
	parsed, err := url.Parse(hostURL)
	if err != nil || parsed.Host == "" {
		parsed, _ = url.Parse(DefaultHost)
	}
	return api.NewClient(parsed, http.DefaultClient)
}

// New returns a client for model served at hostURL.
func New(hostURL, model string) *Client {
	return &Client{client: NewAPIClient(hostURL), model: model}
}

// Generate implements llm.Client.
func (c *Client) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return llm.Response{}, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, "empty prompt")
	}

	messages := make([]api.Message, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, api.Message{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, api.Message{Role: "user", Content: req.UserText()})

	stream := false
	chatReq := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": req.Temperature,
			"num_predict": req.MaxTokens,
		},
	}

	var response api.ChatResponse
	err := c.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		response = resp
		return nil
	})
	if err != nil {
		status := 0
		var se api.StatusError
		if errors.As(err, &se) {
			status = se.StatusCode
		}
		return llm.Response{}, llmerrors.Classify(provider, err, status)
	}
	if strings.TrimSpace(response.Message.Content) == "" {
		return llm.Response{}, &llmerrors.Error{Type: llmerrors.ErrorTypeEmptyResponse, Provider: provider, Message: "empty response"}
	}

	prompt, completion := response.PromptEvalCount, response.EvalCount
	return llm.Response{
		Content:   response.Message.Content,
		Usage:     llm.Usage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: prompt + completion},
		Model:     c.model,
		Timestamp: time.Now(),
	}, nil
}

// ModelName implements llm.Client.
func (c *Client) ModelName() string {
	return c.model
}
