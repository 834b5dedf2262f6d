package agent

import (
	"context"
	"encoding/json"

	"github.com/tiktoken-go/tokenizer"
)

func EstimateTokens(t tokenizer.Codec, m *Message) (int, error) {
	type functionCall struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	}

	cm := struct {
		Role       string         `json:"role"`
		Content    string         `json:"content"`
		ToolCalls  []functionCall `json:"tool_calls,omitempty"`
		ToolCallID string         `json:"tool_call_id,omitempty"`
	}{
		Role:       string(m.Role),
		Content:    m.Content,
		ToolCallID: m.ToolCallID,
	}

	for _, tc := range m.ToolCalls {
		cm.ToolCalls = append(cm.ToolCalls, functionCall{Name: tc.Name, Arguments: tc.Arguments})
	}

	data, err := json.Marshal(cm)
	if err != nil {
		return 0, err
	}

	tokens, _, err := t.Encode(string(data))
	if err != nil {
		return 0, err
	}

	return len(tokens), nil
}

// TokenBudgetFilter drops the oldest non-system messages from a request until
// its estimated size fits within budget.
//
// An assistant message requesting tools is dropped together with the tool
// results that answer it. System messages and the newest message group are
// always sent, even if they alone exceed the budget.
func TokenBudgetFilter(t tokenizer.Codec, budget int) FilterFunc {
	return func(ctx context.Context, msgs []*Message) ([]*Message, error) {
		var (
			system []*Message
			groups [][]*Message
			sizes  []int
			total  int
		)

		for _, m := range msgs {
			n, err := EstimateTokens(t, m)
			if err != nil {
				return nil, err
			}
			total += n

			switch {
			case m.Role == RoleSystem:
				system = append(system, m)
			case m.Role == RoleTool && len(groups) > 0:
				groups[len(groups)-1] = append(groups[len(groups)-1], m)
				sizes[len(sizes)-1] += n
			default:
				groups = append(groups, []*Message{m})
				sizes = append(sizes, n)
			}
		}

		drop := 0
		for total > budget && drop < len(groups)-1 {
			total -= sizes[drop]
			drop++
		}

		if drop == 0 {
			return msgs, nil
		}

		filtered := make([]*Message, 0, len(msgs))
		filtered = append(filtered, system...)
		for _, g := range groups[drop:] {
			filtered = append(filtered, g...)
		}

		return filtered, nil
	}
}
