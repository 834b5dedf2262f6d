package openaichat

import (
	"context"
	"fmt"
	"sync"

	"github.com/openai/openai-go/v3"
)

// Usage accumulates token counts across completions.
type Usage struct {
	mu sync.Mutex

	Completions      int
	CompletionTokens int
	PromptTokens     int
	TotalTokens      int
	Errors           int
}

func (u *Usage) Middleware(
	ctx context.Context, params openai.ChatCompletionNewParams, next CreateCompletionFn,
) (*openai.ChatCompletion, error) {
	resp, err := next(ctx, params)

	u.mu.Lock()
	defer u.mu.Unlock()

	if err != nil {
		u.Errors++
		return resp, err
	}

	if resp.Usage.TotalTokens > 0 {
		u.Completions++
	}

	u.CompletionTokens += int(resp.Usage.CompletionTokens)
	u.PromptTokens += int(resp.Usage.PromptTokens)
	u.TotalTokens += int(resp.Usage.TotalTokens)
	return resp, err
}

func (u *Usage) String() string {
	u.mu.Lock()
	defer u.mu.Unlock()

	return fmt.Sprintf("completions=%d prompt_tokens=%d completion_tokens=%d total_tokens=%d errors=%d",
		u.Completions, u.PromptTokens, u.CompletionTokens, u.TotalTokens, u.Errors)
}
