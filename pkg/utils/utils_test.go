package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountTokens(t *testing.T) {
	counter, err := NewTokenCounter("gpt-4")
	require.NoError(t, err)

	tests := []struct {
		text      string
		minTokens int
		maxTokens int
	}{
		{"", 0, 0},
		{"Hello world", 2, 3},
		{strings.Repeat("word ", 100), 90, 110},
	}
	for _, tt := range tests {
		n := counter.CountTokens(tt.text)
		assert.GreaterOrEqual(t, n, tt.minTokens)
		assert.LessOrEqual(t, n, tt.maxTokens)
	}
	assert.Equal(t, counter.CountTokens("Hello world"), CountTokensSimple("Hello world"))
}

func TestTruncateToTokenLimit(t *testing.T) {
	counter, err := NewTokenCounter("gpt-4")
	require.NoError(t, err)

	long := strings.Repeat("clause ", 500)
	out := counter.TruncateToTokenLimit(long, 50)
	assert.Less(t, len(out), len(long))
	assert.True(t, strings.HasSuffix(out, "..."))
	assert.Equal(t, "short", counter.TruncateToTokenLimit("short", 50))
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héll", TruncateRunes("héllo", 4))
	assert.Equal(t, "abc", TruncateRunes("abc", 10))
	assert.Equal(t, "", TruncateRunes("abc", 0))
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "documents.json")

	require.NoError(t, WriteFileAtomic(path, []byte("v1"), 0644))
	require.NoError(t, WriteFileAtomic(path, []byte("v2"), 0644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}
