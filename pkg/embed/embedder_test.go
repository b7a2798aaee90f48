package embed

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legalflow/pkg/config"
)

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func TestHashIsDeterministic(t *testing.T) {
	h := NewHash(0)
	assert.Equal(t, DefaultHashDimension, h.Dimension())

	a, err := h.Embed(context.Background(), "Breach of contract damages")
	require.NoError(t, err)
	b, err := h.Embed(context.Background(), "Breach of contract damages")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	var norm float64
	for _, x := range a {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestHashOverlapScoresHigher(t *testing.T) {
	h := NewHash(256)
	ctx := context.Background()
	doc, _ := h.Embed(ctx, "wrongful termination employment retaliation whistleblower")
	near, _ := h.Embed(ctx, "employment retaliation claim")
	far, _ := h.Embed(ctx, "patent infringement licensing royalties")

	assert.Greater(t, cosine(doc, near), cosine(doc, far))
	assert.Greater(t, cosine(doc, near), 0.3)
}

func TestHashEmptyTextIsZero(t *testing.T) {
	v, err := NewHash(8).Embed(context.Background(), "  ")
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 8), v)
}

func TestTokenizeAndTruncate(t *testing.T) {
	assert.Equal(t, []string{"smith", "jones", "2019"}, Tokenize("Smith v. Jones (2019) a"))
	long := strings.Repeat("x", MaxInputChars+50)
	assert.Len(t, truncate(long), MaxInputChars)
}

func TestNewSelectsStrategy(t *testing.T) {
	e, err := New(config.EmbeddingConfig{Provider: config.ProviderHash, Dimension: 64})
	require.NoError(t, err)
	assert.Equal(t, "hash", e.Name())
	assert.Equal(t, 64, e.Dimension())

	e, err = New(config.EmbeddingConfig{Provider: config.ProviderOllama, Model: "nomic-embed-text", BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)
	assert.Equal(t, "ollama:nomic-embed-text", e.Name())
	assert.Equal(t, 0, e.Dimension())

	config.SetSecrets(nil)
	_, err = New(config.EmbeddingConfig{Provider: config.ProviderOpenAI, APIKeyEnv: "LEGALFLOW_TEST_NO_SUCH_KEY"})
	assert.Error(t, err)

	_, err = New(config.EmbeddingConfig{Provider: "word2vec"})
	assert.Error(t, err)
}
