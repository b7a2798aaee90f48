// Package llmerrors classifies failures of external generation and embedding services.
//
// *Error is the ExternalServiceError of the pipeline: AI-augmentation steps swallow it behind
// a fallback, primary content steps propagate it.
package llmerrors

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrorType categorises an external service failure for retry decisions.
type ErrorType int8

const (
	// ErrorTypeRateLimit is a 429 or quota failure.
	ErrorTypeRateLimit ErrorType = iota
	// ErrorTypeTransient is a 5xx, timeout, or connection failure.
	ErrorTypeTransient
	// ErrorTypeEmptyResponse is a successful call that returned no content.
	ErrorTypeEmptyResponse
	// ErrorTypeAuth is a 401/403 or missing credential.
	ErrorTypeAuth
	// ErrorTypeBadPrompt is a malformed or rejected request.
	ErrorTypeBadPrompt
	// ErrorTypeUnknown is anything unclassified.
	ErrorTypeUnknown
	// ErrorTypeServiceUnavailable is emitted once retries are exhausted.
	ErrorTypeServiceUnavailable
)

func (et ErrorType) String() string {
	switch et {
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeEmptyResponse:
		return "empty_response"
	case ErrorTypeAuth:
		return "auth"
	case ErrorTypeBadPrompt:
		return "bad_prompt"
	case ErrorTypeUnknown:
		return "unknown"
	case ErrorTypeServiceUnavailable:
		return "service_unavailable"
	default:
		return "invalid"
	}
}

// RetryConfig is the backoff schedule for one error type.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfigs holds the backoff schedule per error type.
//
//nolint:gochecknoglobals // package defaults
var DefaultRetryConfigs = map[ErrorType]RetryConfig{
	ErrorTypeEmptyResponse:      {MaxRetries: 3, InitialDelay: 2 * time.Second, MaxDelay: 30 * time.Second, BackoffFactor: 2},
	ErrorTypeRateLimit:          {MaxRetries: 6, InitialDelay: time.Second, MaxDelay: 60 * time.Second, BackoffFactor: 2},
	ErrorTypeTransient:          {MaxRetries: 4, InitialDelay: 500 * time.Millisecond, MaxDelay: 10 * time.Second, BackoffFactor: 2},
	ErrorTypeAuth:               {},
	ErrorTypeBadPrompt:          {},
	ErrorTypeUnknown:            {MaxRetries: 1, InitialDelay: time.Second, MaxDelay: 5 * time.Second, BackoffFactor: 2},
	ErrorTypeServiceUnavailable: {},
}

// Error is a classified external service failure.
type Error struct {
	Err        error
	Provider   string
	Message    string
	Type       ErrorType
	StatusCode int
}

func (e *Error) Error() string {
	prefix := "external service error"
	if e.Provider != "" {
		prefix = e.Provider + " error"
	}
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s (%s): %s: %v", prefix, e.Type, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s (%s): %s", prefix, e.Type, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s (%s): %v", prefix, e.Type, e.Err)
	default:
		return fmt.Sprintf("%s (%s): status %d", prefix, e.Type, e.StatusCode)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the error type is worth another attempt.
func (e *Error) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeAuth, ErrorTypeBadPrompt, ErrorTypeServiceUnavailable:
		return false
	default:
		return true
	}
}

// GetRetryConfig returns the backoff schedule for this error.
func (e *Error) GetRetryConfig() RetryConfig {
	if c, ok := DefaultRetryConfigs[e.Type]; ok {
		return c
	}
	return DefaultRetryConfigs[ErrorTypeUnknown]
}

// Is reports whether err is an *Error of the given type.
func Is(err error, errorType ErrorType) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == errorType
	}
	return false
}

// TypeOf returns the classified type of err, or ErrorTypeUnknown.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// NewError creates a classified error.
func NewError(errorType ErrorType, message string) *Error {
	return &Error{Type: errorType, Message: message}
}

// NewErrorWithStatus creates a classified error carrying an HTTP status.
func NewErrorWithStatus(errorType ErrorType, statusCode int, message string) *Error {
	return &Error{Type: errorType, StatusCode: statusCode, Message: message}
}

// NewErrorWithCause creates a classified error wrapping cause.
func NewErrorWithCause(errorType ErrorType, cause error, message string) *Error {
	return &Error{Type: errorType, Err: cause, Message: message}
}

// NewServiceUnavailableError wraps the last error once retries are exhausted.
func NewServiceUnavailableError(cause error, attempts int) *Error {
	e := &Error{
		Type:    ErrorTypeServiceUnavailable,
		Err:     cause,
		Message: fmt.Sprintf("service unavailable after %d attempts", attempts),
	}
	var inner *Error
	if errors.As(cause, &inner) {
		e.Provider = inner.Provider
		e.StatusCode = inner.StatusCode
	}
	return e
}

// IsServiceUnavailable reports whether err signals exhausted retries.
func IsServiceUnavailable(err error) bool {
	return Is(err, ErrorTypeServiceUnavailable)
}

var statusPattern = regexp.MustCompile(`(?i)(?:status(?: code)?:?|http|code)\s*(\d{3})\b`)

// StatusFromMessage pulls an HTTP status out of an SDK error string, or 0.
func StatusFromMessage(msg string) int {
	m := statusPattern.FindStringSubmatch(msg)
	if len(m) < 2 {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// Classify maps an SDK error to an *Error. statusCode may be 0 when the SDK does not expose one,
// in which case the message is scanned. Already classified errors pass through.
func Classify(provider string, err error, statusCode int) *Error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return existing
	}

	wrap := func(t ErrorType, msg string) *Error {
		return &Error{Type: t, Err: err, Message: msg, Provider: provider, StatusCode: statusCode}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return wrap(ErrorTypeTransient, "request timeout")
	}
	if errors.Is(err, context.Canceled) {
		return wrap(ErrorTypeTransient, "request canceled")
	}

	if statusCode == 0 {
		statusCode = StatusFromMessage(err.Error())
	}
	switch {
	case statusCode == 401 || statusCode == 403:
		return wrap(ErrorTypeAuth, "authentication failed")
	case statusCode == 429:
		return wrap(ErrorTypeRateLimit, "rate limit exceeded")
	case statusCode == 400 || statusCode == 404 || statusCode == 413 || statusCode == 422:
		return wrap(ErrorTypeBadPrompt, "request rejected")
	case statusCode >= 500 && statusCode <= 599:
		return wrap(ErrorTypeTransient, "server error")
	}

	lower := strings.ToLower(err.Error())
	switch {
	case containsAny(lower, "timeout", "connection", "network", "temporary", "eof", "reset", "refused"):
		return wrap(ErrorTypeTransient, "network or connection error")
	case containsAny(lower, "rate limit", "quota", "too many requests"):
		return wrap(ErrorTypeRateLimit, "rate limiting detected")
	case containsAny(lower, "unauthorized", "api key", "authentication", "permission denied"):
		return wrap(ErrorTypeAuth, "authentication error")
	case containsAny(lower, "invalid", "malformed", "too large", "context length"):
		return wrap(ErrorTypeBadPrompt, "prompt or request error")
	}
	return wrap(ErrorTypeUnknown, "unclassified error")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
