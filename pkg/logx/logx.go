// Package logx provides component-scoped structured logging with domain-filtered debug output.
package logx

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const timestampLayout = "2006-01-02T15:04:05.000Z"

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Logger writes levelled lines tagged with a component name and, optionally, a workflow id.
type Logger struct {
	component  string
	workflowID string
	logger     *log.Logger
}

// DebugConfig controls debug logging behavior.
type DebugConfig struct {
	Enabled     bool
	FileLogging bool
	LogDir      string
	Domains     map[string]bool // nil enables every domain
}

// Entry is one captured log line, kept in memory for the ops surface.
type Entry struct {
	Timestamp  string `json:"timestamp"`
	Component  string `json:"component"`
	WorkflowID string `json:"workflow_id,omitempty"`
	Level      string `json:"level"`
	Message    string `json:"message"`
	Domain     string `json:"domain,omitempty"`
}

// RingBuffer keeps the most recent log entries.
type RingBuffer struct {
	entries []Entry
	mu      sync.RWMutex
	maxSize int
}

type ctxKey string

// ComponentKey is the context key used by Debug to find the calling component.
const ComponentKey ctxKey = "component"

//nolint:gochecknoglobals // process-wide logging configuration
var (
	debugConfig = &DebugConfig{LogDir: "logs"}
	debugMu     sync.RWMutex

	output   io.Writer = os.Stderr
	outputMu sync.RWMutex

	buffer = &RingBuffer{maxSize: 1000}
)

func init() { //nolint:gochecknoinits // env driven defaults
	initDebugFromEnv()
}

// initDebugFromEnv reads DEBUG, DEBUG_FILE, DEBUG_LOG_DIR and DEBUG_DOMAINS.
func initDebugFromEnv() {
	debugMu.Lock()
	defer debugMu.Unlock()

	debugConfig.Enabled = envTrue("DEBUG")
	debugConfig.FileLogging = envTrue("DEBUG_FILE")
	if dir := os.Getenv("DEBUG_LOG_DIR"); dir != "" {
		debugConfig.LogDir = dir
	}
	debugConfig.Domains = nil
	if domains := os.Getenv("DEBUG_DOMAINS"); domains != "" {
		debugConfig.Domains = parseDomains(strings.Split(domains, ","))
	}
}

func envTrue(name string) bool {
	v := os.Getenv(name)
	return v == "1" || strings.EqualFold(v, "true")
}

func parseDomains(domains []string) map[string]bool {
	if len(domains) == 0 {
		return nil
	}
	m := make(map[string]bool, len(domains))
	for _, d := range domains {
		if d = strings.TrimSpace(d); d != "" {
			m[d] = true
		}
	}
	return m
}

// NewLogger returns a logger for the named component.
func NewLogger(component string) *Logger {
	return &Logger{
		component: component,
		logger:    log.New(writer{}, "", 0),
	}
}

// writer forwards to the current package output so SetOutput affects existing loggers.
type writer struct{}

func (writer) Write(p []byte) (int, error) {
	outputMu.RLock()
	defer outputMu.RUnlock()
	return output.Write(p) //nolint:wrapcheck // passthrough writer
}

// SetOutput redirects every logger. Tests use it to capture lines.
func SetOutput(w io.Writer) {
	outputMu.Lock()
	defer outputMu.Unlock()
	if w == nil {
		w = os.Stderr
	}
	output = w
}

// SetDebugConfig configures global debug logging settings.
func SetDebugConfig(enabled, fileLogging bool, logDir string) {
	debugMu.Lock()
	defer debugMu.Unlock()

	debugConfig.Enabled = enabled
	debugConfig.FileLogging = fileLogging
	if logDir != "" {
		debugConfig.LogDir = logDir
	}
	if fileLogging {
		if err := os.MkdirAll(debugConfig.LogDir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to create log directory %s: %v\n", debugConfig.LogDir, err)
		}
	}
}

// SetDebugDomains restricts debug output to the given domains. An empty list enables all.
func SetDebugDomains(domains []string) {
	debugMu.Lock()
	defer debugMu.Unlock()
	debugConfig.Domains = parseDomains(domains)
}

// IsDebugEnabled reports whether debug logging is on.
func IsDebugEnabled() bool {
	debugMu.RLock()
	defer debugMu.RUnlock()
	return debugConfig.Enabled
}

// IsDebugEnabledForDomain reports whether debug output for domain is on.
func IsDebugEnabledForDomain(domain string) bool {
	debugMu.RLock()
	defer debugMu.RUnlock()
	if !debugConfig.Enabled {
		return false
	}
	if debugConfig.Domains == nil {
		return true
	}
	return debugConfig.Domains[domain]
}

// Add appends an entry, evicting the oldest once maxSize is reached.
func (b *RingBuffer) Add(e *Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, *e)
	if len(b.entries) > b.maxSize {
		b.entries = b.entries[len(b.entries)-b.maxSize:]
	}
}

// Entries returns a filtered copy. Empty component or zero since disables that filter.
func (b *RingBuffer) Entries(component string, since time.Time) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Entry, 0, len(b.entries))
	for i := range b.entries {
		e := &b.entries[i]
		if component != "" && !strings.EqualFold(e.Component, component) {
			continue
		}
		if !since.IsZero() {
			ts, err := time.Parse(timestampLayout, e.Timestamp)
			if err != nil || ts.Before(since) {
				continue
			}
		}
		out = append(out, *e)
	}
	return out
}

// RecentEntries returns captured entries for a component since the given time.
func RecentEntries(component string, since time.Time) []Entry {
	return buffer.Entries(component, since)
}

func (l *Logger) prefix() string {
	if l.workflowID != "" {
		return fmt.Sprintf("[%s] [%s]", l.component, l.workflowID)
	}
	return fmt.Sprintf("[%s]", l.component)
}

func (l *Logger) log(level Level, domain, format string, args ...any) {
	ts := time.Now().UTC().Format(timestampLayout)
	msg := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] %s %s: %s", ts, l.prefix(), level, msg)

	buffer.Add(&Entry{
		Timestamp:  ts,
		Component:  l.component,
		WorkflowID: l.workflowID,
		Level:      string(level),
		Message:    msg,
		Domain:     domain,
	})
}

func (l *Logger) Debug(format string, args ...any) {
	if !IsDebugEnabled() {
		return
	}
	l.log(LevelDebug, "", format, args...)
}

func (l *Logger) Info(format string, args ...any) {
	l.log(LevelInfo, "", format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.log(LevelWarn, "", format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.log(LevelError, "", format, args...)
}

// Component returns the logger's component name.
func (l *Logger) Component() string {
	return l.component
}

// WithWorkflow derives a logger whose lines carry the workflow id.
func (l *Logger) WithWorkflow(workflowID string) *Logger {
	return &Logger{
		component:  l.component,
		workflowID: workflowID,
		logger:     l.logger,
	}
}

// WithComponent stores the component name in ctx for Debug.
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, ComponentKey, component)
}

// Debug logs a domain-filtered debug message. The component is read from ctx.
//
//	DEBUG=1                              # every domain
//	DEBUG=1 DEBUG_DOMAINS=research       # one domain
//	DEBUG=1 DEBUG_FILE=1 DEBUG_LOG_DIR=x # also append to x/<domain>.log
func Debug(ctx context.Context, domain, format string, args ...any) {
	if !IsDebugEnabledForDomain(domain) {
		return
	}
	component := "unknown"
	if ctx != nil {
		if v, ok := ctx.Value(ComponentKey).(string); ok && v != "" {
			component = v
		}
	}
	l := NewLogger(component)
	l.log(LevelDebug, domain, "[%s] %s", domain, fmt.Sprintf(format, args...))

	debugMu.RLock()
	fileLogging, dir := debugConfig.FileLogging, debugConfig.LogDir
	debugMu.RUnlock()
	if fileLogging {
		appendDebugFile(dir, domain+".log", component, domain, fmt.Sprintf(format, args...))
	}
}

func appendDebugFile(dir, name, component, domain, msg string) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return
	}
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to open debug log %s: %v\n", path, err)
		return
	}
	defer f.Close()
	ts := time.Now().UTC().Format(timestampLayout)
	fmt.Fprintf(f, "[%s] [%s] [%s] DEBUG: %s\n", ts, component, domain, msg)
}

// DebugFlow logs a pipeline step transition.
func DebugFlow(ctx context.Context, domain, step, status string, extra ...string) {
	detail := ""
	if len(extra) > 0 {
		detail = " - " + extra[0]
	}
	Debug(ctx, domain, "Flow %s: %s%s", step, status, detail)
}

//nolint:gochecknoglobals // package default logger
var defaultLogger = NewLogger("legalflow")

func Infof(format string, args ...any) {
	defaultLogger.Info(format, args...)
}

func Warnf(format string, args ...any) {
	defaultLogger.Warn(format, args...)
}

// Errorf logs and returns the formatted error.
func Errorf(format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	defaultLogger.Error("%s", err.Error())
	return err
}

// Wrap logs msg + ": " + err and returns the wrapped error. Nil in, nil out.
//
//	if err != nil { return logx.Wrap(err, "open index") }
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	wrapped := fmt.Errorf("%s: %w", msg, err)
	defaultLogger.Error("%s", wrapped.Error())
	return wrapped
}
