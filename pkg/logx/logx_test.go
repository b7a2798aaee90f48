package logx

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(nil) })
	return &buf
}

func TestLoggerFormatsComponentAndWorkflow(t *testing.T) {
	buf := captureOutput(t)

	l := NewLogger("orchestrator").WithWorkflow("wf-1")
	l.Info("stage %s done", "intake")

	line := buf.String()
	assert.Contains(t, line, "[orchestrator] [wf-1] INFO: stage intake done")
}

func TestDebugRespectsToggle(t *testing.T) {
	buf := captureOutput(t)
	SetDebugConfig(false, false, "")
	t.Cleanup(func() { SetDebugConfig(false, false, "") })

	l := NewLogger("test")
	l.Debug("hidden")
	assert.Empty(t, buf.String())

	SetDebugConfig(true, false, "")
	l.Debug("shown")
	assert.Contains(t, buf.String(), "DEBUG: shown")
}

func TestDebugDomainFiltering(t *testing.T) {
	buf := captureOutput(t)
	SetDebugConfig(true, false, "")
	SetDebugDomains([]string{"research"})
	t.Cleanup(func() {
		SetDebugConfig(false, false, "")
		SetDebugDomains(nil)
	})

	ctx := WithComponent(context.Background(), "research-agent")
	Debug(ctx, "research", "query %d", 1)
	Debug(ctx, "drafting", "filtered")

	out := buf.String()
	assert.Contains(t, out, "[research-agent] DEBUG: [research] query 1")
	assert.NotContains(t, out, "filtered")
	assert.True(t, IsDebugEnabledForDomain("research"))
	assert.False(t, IsDebugEnabledForDomain("drafting"))
}

func TestDebugFileLogging(t *testing.T) {
	captureOutput(t)
	dir := t.TempDir()
	SetDebugConfig(true, true, dir)
	SetDebugDomains(nil)
	t.Cleanup(func() { SetDebugConfig(false, false, "logs") })

	ctx := WithComponent(context.Background(), "intake")
	DebugFlow(ctx, "intake", "validate", "ok", "3 fields")

	data, err := os.ReadFile(filepath.Join(dir, "intake.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Flow validate: ok - 3 fields")
	assert.Contains(t, string(data), "[intake]")
}

func TestEnvironmentConfiguration(t *testing.T) {
	t.Setenv("DEBUG", "true")
	t.Setenv("DEBUG_DOMAINS", "orchestrator, retrieval")
	initDebugFromEnv()
	t.Cleanup(func() {
		os.Unsetenv("DEBUG")
		os.Unsetenv("DEBUG_DOMAINS")
		initDebugFromEnv()
	})

	assert.True(t, IsDebugEnabled())
	assert.True(t, IsDebugEnabledForDomain("retrieval"))
	assert.False(t, IsDebugEnabledForDomain("intake"))
}

func TestRingBufferEviction(t *testing.T) {
	b := &RingBuffer{maxSize: 3}
	for i := 0; i < 5; i++ {
		b.Add(&Entry{Component: "c", Message: string(rune('a' + i)), Timestamp: time.Now().UTC().Format(timestampLayout)})
	}
	got := b.Entries("", time.Time{})
	require.Len(t, got, 3)
	assert.Equal(t, "c", got[0].Message)
	assert.Equal(t, "e", got[2].Message)
	assert.Empty(t, b.Entries("other", time.Time{}))
}

func TestWrapAndErrorf(t *testing.T) {
	buf := captureOutput(t)

	assert.NoError(t, Wrap(nil, "noop"))

	base := errors.New("disk full")
	err := Wrap(base, "persist index")
	require.Error(t, err)
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "persist index: disk full", err.Error())

	err = Errorf("bad %s", "input")
	assert.EqualError(t, err, "bad input")
	assert.True(t, strings.Contains(buf.String(), "ERROR: persist index: disk full"))
}
