package retry

import (
	"context"
	"fmt"
	"time"

	"legalflow/pkg/llm"
	"legalflow/pkg/llm/llmerrors"
	"legalflow/pkg/logx"
)

// Middleware retries failed calls according to policy. When a retryable error survives every
// attempt the caller receives a ServiceUnavailable error wrapping it.
func Middleware(policy *Policy) llm.Middleware {
	logger := logx.NewLogger("llm-retry")
	return func(next llm.Client) llm.Client {
		return llm.WrapClient(
			func(ctx context.Context, req llm.Request) (llm.Response, error) {
				var lastErr error
				for attempt := 1; attempt <= policy.Config.MaxAttempts; attempt++ {
					if delay := policy.CalculateDelay(attempt); delay > 0 {
						select {
						case <-ctx.Done():
							return llm.Response{}, fmt.Errorf("retry cancelled: %w", ctx.Err())
						case <-time.After(delay):
						}
					}

					resp, err := next.Generate(ctx, req)
					if err == nil {
						return resp, nil
					}
					lastErr = err

					if !policy.ShouldRetry(err) {
						return llm.Response{}, err
					}
					if attempt < policy.Config.MaxAttempts {
						logger.Warn("attempt %d/%d for %s failed: %v", attempt, policy.Config.MaxAttempts, next.ModelName(), err)
					}
				}
				return llm.Response{}, llmerrors.NewServiceUnavailableError(lastErr, policy.Config.MaxAttempts)
			},
			next.ModelName,
		)
	}
}
