package metrics

import (
	"context"
	"errors"
	"time"

	"legalflow/pkg/llm"
	"legalflow/pkg/llm/llmerrors"
	"legalflow/pkg/logx"
	"legalflow/pkg/utils"
)

// EstimateUsage fills missing usage figures with tiktoken counts.
func EstimateUsage(req llm.Request, resp llm.Response) llm.Usage {
	u := resp.Usage
	if u.PromptTokens == 0 {
		u.PromptTokens = utils.CountTokensSimple(req.SystemPrompt + "\n" + req.UserText())
	}
	if u.CompletionTokens == 0 {
		u.CompletionTokens = utils.CountTokensSimple(resp.Content)
	}
	u.TotalTokens = u.PromptTokens + u.CompletionTokens
	return u
}

// Middleware records every call on recorder and fills in estimated usage when the provider
// reports none. logger may be nil.
func Middleware(recorder Recorder, logger *logx.Logger) llm.Middleware {
	if recorder == nil {
		recorder = Nop()
	}
	return func(next llm.Client) llm.Client {
		return llm.WrapClient(
			func(ctx context.Context, req llm.Request) (llm.Response, error) {
				start := time.Now()
				resp, err := next.Generate(ctx, req)
				duration := time.Since(start)

				info := llm.CallInfoFrom(ctx)
				model := next.ModelName()
				if err == nil {
					resp.Usage = EstimateUsage(req, resp)
					if resp.Model == "" {
						resp.Model = model
					}
				}

				recorder.ObserveRequest(model, info.WorkflowID, info.AgentID, info.Step,
					resp.Usage.PromptTokens, resp.Usage.CompletionTokens, err == nil, errorType(err), duration)

				if logger != nil {
					status := "success"
					if err != nil {
						status = "error"
					}
					logger.Debug("LLM request: model=%s workflow=%s step=%s tokens=%d+%d status=%s duration=%dms",
						model, info.WorkflowID, info.Step, resp.Usage.PromptTokens, resp.Usage.CompletionTokens, status, duration.Milliseconds())
				}
				return resp, err //nolint:wrapcheck // pass through unchanged
			},
			next.ModelName,
		)
	}
}

func errorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	var e *llmerrors.Error
	if errors.As(err, &e) {
		return e.Type.String()
	}
	return "unknown"
}
