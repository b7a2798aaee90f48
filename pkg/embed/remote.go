package embed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"google.golang.org/genai"

	"legalflow/pkg/config"
	"legalflow/pkg/llm/llmerrors"
	"legalflow/pkg/llmclient"
)

// dimension tracks a remote backend's vector length, learned from the first reply unless configured.
type dimension struct{ n atomic.Int64 }

func (d *dimension) get() int { return int(d.n.Load()) }

func (d *dimension) observe(n int) { d.n.CompareAndSwap(0, int64(n)) }

type openAIEmbedder struct {
	client openai.Client
	model  string
	dim    dimension
}

func newOpenAI(cfg config.EmbeddingConfig) (*openAIEmbedder, error) {
	key, err := config.APIKey(cfg.APIKeyEnv)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	opts := []option.RequestOption{option.WithAPIKey(key)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &openAIEmbedder{client: openai.NewClient(opts...), model: cfg.Model}, nil
}

func (o *openAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(truncate(text))},
		Model: openai.EmbeddingModel(o.model),
	}
	resp, err := o.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, llmerrors.Classify("openai", err, 0)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, &llmerrors.Error{Type: llmerrors.ErrorTypeEmptyResponse, Provider: "openai", Message: "no embedding returned"}
	}
	src := resp.Data[0].Embedding
	v := make([]float32, len(src))
	for i, x := range src {
		v[i] = float32(x)
	}
	o.dim.observe(len(v))
	return Normalize(v), nil
}

func (o *openAIEmbedder) Dimension() int { return o.dim.get() }
func (o *openAIEmbedder) Name() string   { return "openai:" + o.model }

type ollamaEmbedder struct {
	client *api.Client
	model  string
	dim    dimension
}

func newOllama(cfg config.EmbeddingConfig) *ollamaEmbedder {
	return &ollamaEmbedder{client: llmclient.NewOllamaAPIClient(cfg.BaseURL), model: cfg.Model}
}

func (o *ollamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := o.client.Embed(ctx, &api.EmbedRequest{Model: o.model, Input: truncate(text)})
	if err != nil {
		status := 0
		var se api.StatusError
		if errors.As(err, &se) {
			status = se.StatusCode
		}
		return nil, llmerrors.Classify("ollama", err, status)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		return nil, &llmerrors.Error{Type: llmerrors.ErrorTypeEmptyResponse, Provider: "ollama", Message: "no embedding returned"}
	}
	v := append([]float32(nil), resp.Embeddings[0]...)
	o.dim.observe(len(v))
	return Normalize(v), nil
}

func (o *ollamaEmbedder) Dimension() int { return o.dim.get() }
func (o *ollamaEmbedder) Name() string   { return "ollama:" + o.model }

type googleEmbedder struct {
	apiKey string
	model  string
	dim    dimension

	once    sync.Once
	client  *genai.Client
	initErr error
}

func newGoogle(cfg config.EmbeddingConfig) (*googleEmbedder, error) {
	key, err := config.APIKey(cfg.APIKeyEnv)
	if err != nil {
		return nil, fmt.Errorf("google embeddings: %w", err)
	}
	return &googleEmbedder{apiKey: key, model: cfg.Model}, nil
}

func (g *googleEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	g.once.Do(func() {
		g.client, g.initErr = genai.NewClient(ctx, &genai.ClientConfig{APIKey: g.apiKey, Backend: genai.BackendGeminiAPI})
	})
	if g.initErr != nil {
		return nil, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeAuth, g.initErr, "failed to create Gemini client")
	}
	resp, err := g.client.Models.EmbedContent(ctx, g.model, genai.Text(truncate(text)), nil)
	if err != nil {
		return nil, llmerrors.Classify("google", err, 0)
	}
	if resp == nil || len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, &llmerrors.Error{Type: llmerrors.ErrorTypeEmptyResponse, Provider: "google", Message: "no embedding returned"}
	}
	v := append([]float32(nil), resp.Embeddings[0].Values...)
	g.dim.observe(len(v))
	return Normalize(v), nil
}

func (g *googleEmbedder) Dimension() int { return g.dim.get() }
func (g *googleEmbedder) Name() string   { return "google:" + g.model }
