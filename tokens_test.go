package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tiktoken-go/tokenizer"
)

func TestEstimateTokens(t *testing.T) {
	enc, err := tokenizer.Get(tokenizer.Cl100kBase)
	require.NoError(t, err)

	short, err := EstimateTokens(enc, NewContentMessage(RoleUser, "Hi"))
	require.NoError(t, err)

	long, err := EstimateTokens(enc, NewContentMessage(RoleUser, strings.Repeat("availability ", 50)))
	require.NoError(t, err)

	assert.Greater(t, short, 0)
	assert.Greater(t, long, short)

	m := NewContentMessage(RoleAssistant, "")
	m.ToolCalls = []ToolCall{{ID: "1", Name: "check_availability", Arguments: `{"time_start":"2026-02-16T17:00:00"}`}}
	withCall, err := EstimateTokens(enc, m)
	require.NoError(t, err)
	assert.Greater(t, withCall, short)
}

func TestTokenBudgetFilter(t *testing.T) {
	enc, err := tokenizer.Get(tokenizer.Cl100kBase)
	require.NoError(t, err)

	filler := strings.Repeat("lorem ipsum dolor sit amet ", 20)

	call := NewContentMessage(RoleAssistant, "")
	call.ToolCalls = []ToolCall{{ID: "c1", Name: "get_current_datetime", Arguments: "{}"}}

	msgs := []*Message{
		NewContentMessage(RoleSystem, "sys"),
		NewContentMessage(RoleUser, filler),
		call,
		NewToolResultMessage("c1", filler),
		NewContentMessage(RoleUser, "latest"),
	}

	budget := 0
	for _, m := range []*Message{msgs[0], msgs[4]} {
		n, err := EstimateTokens(enc, m)
		require.NoError(t, err)
		budget += n
	}

	filtered, err := TokenBudgetFilter(enc, budget)(context.Background(), msgs)
	require.NoError(t, err)
	assert.Equal(t, []string{"sys", "latest"}, contents(filtered))

	// A generous budget leaves the request alone.
	filtered, err = TokenBudgetFilter(enc, 100000)(context.Background(), msgs)
	require.NoError(t, err)
	assert.Len(t, filtered, 5)
}

func TestTokenBudgetFilter_KeepsToolResultsWithCall(t *testing.T) {
	enc, err := tokenizer.Get(tokenizer.Cl100kBase)
	require.NoError(t, err)

	call := NewContentMessage(RoleAssistant, "")
	call.ToolCalls = []ToolCall{{ID: "c1", Name: "get_current_datetime", Arguments: "{}"}}

	msgs := []*Message{
		NewContentMessage(RoleUser, strings.Repeat("old ", 200)),
		NewContentMessage(RoleUser, "what time is it"),
		call,
		NewToolResultMessage("c1", `{"current_datetime":"2026-02-16T17:00:00+01:00"}`),
	}

	filtered, err := TokenBudgetFilter(enc, 1)(context.Background(), msgs)
	require.NoError(t, err)

	// The newest group is the call with its result; it is never split.
	require.Len(t, filtered, 2)
	assert.Equal(t, RoleAssistant, filtered[0].Role)
	assert.Equal(t, RoleTool, filtered[1].Role)
}
