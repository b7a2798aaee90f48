package ratelimit

import (
	"context"
	"errors"

	"legalflow/pkg/llm"
	"legalflow/pkg/llm/llmerrors"
)

// Middleware acquires from l before every call. A nil limiter disables it. Requests larger than
// the bucket fail as bad prompts so they are not retried.
func Middleware(l *Limiter) llm.Middleware {
	return func(next llm.Client) llm.Client {
		if l == nil {
			return next
		}
		return llm.WrapClient(
			func(ctx context.Context, req llm.Request) (llm.Response, error) {
				release, err := l.Acquire(ctx, EstimateTokens(req))
				if errors.Is(err, ErrRequestTooLarge) {
					return llm.Response{}, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeBadPrompt, err, "prompt does not fit the rate limit")
				}
				if err != nil {
					return llm.Response{}, err //nolint:wrapcheck // cancellation
				}
				defer release()
				return next.Generate(ctx, req) //nolint:wrapcheck // middleware passes errors through
			},
			next.ModelName,
		)
	}
}
