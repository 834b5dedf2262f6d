package agent

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimit holds each completion until l grants a token. A context that ends
// while waiting fails the completion without calling the provider.
func RateLimit(l *rate.Limiter) MiddlewareFunc {
	return func(nextStep CompletionFunc) CompletionFunc {
		return func(ctx context.Context, msgs []*Message, tdfs []ToolDef) (*Message, error) {
			if err := l.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit: %w", err)
			}
			return nextStep(ctx, msgs, tdfs)
		}
	}
}

// PerMinute returns a limiter allowing n completions per minute with bursts
// of up to n.
func PerMinute(n int) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(float64(n)/60), n)
}
