package circuit

import (
	"context"
	"errors"

	"legalflow/pkg/llm"
	"legalflow/pkg/llm/llmerrors"
	"legalflow/pkg/logx"
)

// Middleware rejects calls while b is open. Rejections are service-unavailable errors, so the
// retry layer does not spend attempts on them. A nil breaker disables it.
func Middleware(b *Breaker, logger *logx.Logger) llm.Middleware {
	return func(next llm.Client) llm.Client {
		if b == nil {
			return next
		}
		return llm.WrapClient(
			func(ctx context.Context, req llm.Request) (llm.Response, error) {
				if !b.Allow() {
					cause := &OpenError{Model: next.ModelName(), State: b.State(), Until: b.ReopensAt()}
					return llm.Response{}, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeServiceUnavailable, cause, "circuit open")
				}

				before := b.State()
				resp, err := next.Generate(ctx, req)
				if counts(err) {
					b.Record(err == nil)
				}
				if after := b.State(); after != before && logger != nil {
					logger.Warn("circuit for %s moved %s -> %s", next.ModelName(), before, after)
				}
				return resp, err //nolint:wrapcheck // middleware passes errors through
			},
			next.ModelName,
		)
	}
}

// counts reports whether an outcome says anything about backend health. Cancellation and
// rejected prompts do not.
func counts(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return !llmerrors.Is(err, llmerrors.ErrorTypeBadPrompt)
}
