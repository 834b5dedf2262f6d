package anthropicchat

import (
	"context"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
)

func Logger(l *slog.Logger) MiddlewareFunc {
	return func(ctx context.Context, params anthropic.MessageNewParams, next CreateMessageFn) (*anthropic.Message, error) {
		st := time.Now()
		resp, err := next(ctx, params)
		if err != nil {
			l.LogAttrs(ctx, slog.LevelError, "failed executing completion",
				slog.String("model", string(params.Model)),
				slog.String("error", err.Error()))
			return resp, err
		}

		l.LogAttrs(ctx, slog.LevelDebug, "executed completion",
			slog.String("model", string(params.Model)),
			slog.Int("messages", len(params.Messages)),
			slog.Int("tools", len(params.Tools)),
			slog.Duration("elapsed", time.Since(st)),
			slog.Int("input_tokens", int(resp.Usage.InputTokens)),
			slog.Int("output_tokens", int(resp.Usage.OutputTokens)),
			slog.String("stop_reason", string(resp.StopReason)))
		return resp, err
	}
}
