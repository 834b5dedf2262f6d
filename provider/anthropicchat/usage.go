package anthropicchat

import (
	"context"
	"fmt"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
)

// Usage accumulates token counts across completions.
type Usage struct {
	mu sync.Mutex

	Completions  int
	InputTokens  int
	OutputTokens int
	Errors       int
}

func (u *Usage) Middleware(
	ctx context.Context, params anthropic.MessageNewParams, next CreateMessageFn,
) (*anthropic.Message, error) {
	resp, err := next(ctx, params)

	u.mu.Lock()
	defer u.mu.Unlock()

	if err != nil {
		u.Errors++
		return resp, err
	}

	u.Completions++
	u.InputTokens += int(resp.Usage.InputTokens)
	u.OutputTokens += int(resp.Usage.OutputTokens)
	return resp, err
}

func (u *Usage) String() string {
	u.mu.Lock()
	defer u.mu.Unlock()

	return fmt.Sprintf("completions=%d input_tokens=%d output_tokens=%d total_tokens=%d errors=%d",
		u.Completions, u.InputTokens, u.OutputTokens, u.InputTokens+u.OutputTokens, u.Errors)
}
