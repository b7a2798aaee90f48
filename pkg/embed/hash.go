package embed

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// DefaultHashDimension is the vector length of the hash strategy.
const DefaultHashDimension = 384

// Hash is the deterministic offline strategy: each lower-cased token is hashed into a signed
// bucket, then the vector is L2-normalised. Identical text always yields an identical vector,
// and texts sharing tokens score above zero.
type Hash struct {
	dim int
}

// NewHash returns a hash embedder of the given dimension.
func NewHash(dim int) *Hash {
	if dim <= 0 {
		dim = DefaultHashDimension
	}
	return &Hash{dim: dim}
}

// Embed implements Embedder.
func (h *Hash) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, h.dim)
	for _, tok := range Tokenize(truncate(text)) {
		f := fnv.New64a()
		_, _ = f.Write([]byte(tok))
		sum := f.Sum64()
		idx := int(sum % uint64(h.dim))
		if sum&(1<<63) != 0 {
			v[idx]--
		} else {
			v[idx]++
		}
	}
	return Normalize(v), nil
}

// Dimension implements Embedder.
func (h *Hash) Dimension() int { return h.dim }

// Name implements Embedder.
func (h *Hash) Name() string { return "hash" }

// Tokenize splits text into lower-cased alphanumeric tokens of two or more runes.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= 2 {
			out = append(out, f)
		}
	}
	return out
}
