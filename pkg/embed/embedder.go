// Package embed turns text into fixed-length vectors for the retrieval engine.
//
// The strategy is chosen once at construction from configuration. The hash strategy is a
// deterministic bag-of-words projection with no semantic meaning; it keeps the system usable
// without credentials.
package embed

import (
	"context"
	"fmt"
	"math"
	"time"

	"legalflow/pkg/config"
	"legalflow/pkg/utils"
)

// MaxInputChars is the longest input passed to any embedding backend.
const MaxInputChars = 8000

// Embedder computes embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension is the vector length, or 0 while a remote backend has not reported it yet.
	Dimension() int

	// Name identifies the strategy and model, e.g. "openai:text-embedding-3-small".
	Name() string
}

// New builds the configured strategy.
func New(cfg config.EmbeddingConfig) (Embedder, error) {
	var (
		e   Embedder
		err error
	)
	switch cfg.Provider {
	case config.ProviderHash, "":
		return NewHash(cfg.Dimension), nil
	case config.ProviderOpenAI:
		e, err = newOpenAI(cfg)
	case config.ProviderOllama:
		e = newOllama(cfg)
	case config.ProviderGoogle:
		e, err = newGoogle(cfg)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return withTimeout(e, cfg.RequestTimeout), nil
}

// truncate caps input length in runes.
func truncate(text string) string {
	return utils.TruncateRunes(text, MaxInputChars)
}

// Normalize scales v to unit length in place. Zero vectors are left untouched.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}

type timeoutEmbedder struct {
	Embedder
	d time.Duration
}

func withTimeout(e Embedder, d time.Duration) Embedder {
	if d <= 0 {
		return e
	}
	return &timeoutEmbedder{Embedder: e, d: d}
}

func (t *timeoutEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.Embedder.Embed(ctx, text)
}
