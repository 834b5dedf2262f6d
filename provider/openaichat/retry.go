package openaichat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

var ErrRetryLimit = errors.New("reached retry limit")

func isRetry(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}

	switch {
	case strings.Contains(err.Error(), "rate_limit_exceeded"):
		return true
	case strings.Contains(err.Error(), "error making request"):
		return true
	case strings.Contains(err.Error(), "You can retry your request"):
		return true
	default:
		return false
	}
}

// Retry makes up to attempts calls in total, backing off exponentially
// between retryable failures. The client's own retries stack underneath;
// use WithRetry to replace them.
func Retry(attempts int) MiddlewareFunc {
	return retry(attempts, 100*time.Millisecond)
}

// WithRetry installs Retry and turns off the client's built-in retries, so
// a completion makes at most attempts requests. NewWithClient keeps the
// client's retry setting.
func WithRetry(attempts int) Option {
	return func(p *provider) {
		p.mw = append(p.mw, Retry(attempts))
		p.reqOpts = append(p.reqOpts, option.WithMaxRetries(0))
	}
}

func retry(attempts int, initial time.Duration) MiddlewareFunc {
	return func(ctx context.Context, params openai.ChatCompletionNewParams, next CreateCompletionFn) (*openai.ChatCompletion, error) {
		backoff := initial

		var lastErr error
		for try := 0; try < attempts; try++ {
			resp, err := next(ctx, params)
			if err == nil {
				return resp, nil
			}

			if !isRetry(err) {
				return resp, err
			}
			lastErr = err

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		if lastErr == nil {
			return nil, ErrRetryLimit
		}
		return nil, fmt.Errorf("%w: %w", ErrRetryLimit, lastErr)
	}
}
