// Package timeout bounds every llm call with a per-request deadline.
package timeout

import (
	"context"
	"time"

	"legalflow/pkg/llm"
)

// Middleware gives each call its own deadline of duration. Non-positive durations disable it.
func Middleware(duration time.Duration) llm.Middleware {
	return func(next llm.Client) llm.Client {
		if duration <= 0 {
			return next
		}
		return llm.WrapClient(
			func(ctx context.Context, req llm.Request) (llm.Response, error) {
				timeoutCtx, cancel := context.WithTimeout(ctx, duration)
				defer cancel()
				return next.Generate(timeoutCtx, req)
			},
			next.ModelName,
		)
	}
}
