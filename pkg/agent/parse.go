package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var errNoJSON = errors.New("no JSON value found in reply")

// ExtractJSON returns the JSON payload of a model reply: the body of a ```json fence if there is
// one, otherwise the outermost object or array.
func ExtractJSON(raw string) (string, error) {
	if start := strings.Index(raw, "```json"); start >= 0 {
		body := raw[start+len("```json"):]
		end := strings.Index(body, "```")
		if end < 0 {
			return "", errors.New("unclosed JSON block in reply")
		}
		return strings.TrimSpace(body[:end]), nil
	}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errNoJSON
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return trimmed, nil
	}

	open := strings.IndexAny(trimmed, "{[")
	if open < 0 {
		return "", errNoJSON
	}
	closer := byte('}')
	if trimmed[open] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(trimmed, closer)
	if end <= open {
		return "", errNoJSON
	}
	return trimmed[open : end+1], nil
}

// ParseStrict decodes a model reply into T. The payload must be a single JSON value.
func ParseStrict[T any](raw string) (T, error) {
	var out T
	payload, err := ExtractJSON(raw)
	if err != nil {
		return out, err
	}
	dec := json.NewDecoder(strings.NewReader(payload))
	if err := dec.Decode(&out); err != nil {
		return out, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if dec.More() {
		return out, errors.New("trailing data after JSON value")
	}
	return out, nil
}

// ParseOrDefault decodes raw into T and runs validate on the result. Any failure returns
// fallback instead; the fallback is logged and counted against the agent and step.
func ParseOrDefault[T any](b *Base, step, raw string, fallback T, validate func(T) error) T {
	out, err := ParseStrict[T](raw)
	if err == nil && validate != nil {
		err = validate(out)
	}
	if err == nil {
		return out
	}
	if b != nil {
		b.logger.Warn("Using fallback for %s: %v", step, err)
		b.metrics.AIFallback(b.desc.ID, step)
	}
	return fallback
}

// Fallback logs and counts a step that degraded without a parse, e.g. after a generation error.
func (b *Base) Fallback(step string, cause error) {
	b.logger.Warn("Using fallback for %s: %v", step, cause)
	b.metrics.AIFallback(b.desc.ID, step)
}
