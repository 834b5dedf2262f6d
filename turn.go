package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrMaxRounds is returned by Turn when the completion service keeps
	// requesting tools past the configured round limit.
	ErrMaxRounds = errors.New("maximum tool call rounds exceeded")

	ErrNoCompletion = errors.New("no completion returned")
)

type turnState int

const (
	// stateAwaitingModel is about to call the completion service.
	stateAwaitingModel turnState = iota

	// stateHandlingToolCalls has tool calls pending dispatch.
	stateHandlingToolCalls

	// stateTerminal has the final answer.
	stateTerminal
)

func (s turnState) String() string {
	switch s {
	case stateAwaitingModel:
		return "awaiting_model"
	case stateHandlingToolCalls:
		return "handling_tool_calls"
	case stateTerminal:
		return "terminal"
	}
	return "unknown"
}

// Turn answers a single user utterance.
//
// The utterance is appended to a working copy of memory and the completion
// service is called until it answers without requesting tools. Requested
// tools run one at a time, in the order given, and their results are added
// to the working copy before the next call. Only the utterance and the final
// answer are committed to memory, and only when the turn succeeds.
func (a *Agent) Turn(ctx context.Context, utterance string) (string, error) {
	l := a.logger.With(slog.String("turn_id", uuid.NewString()))

	working := a.memory.Messages()
	working = append(working, NewContentMessage(RoleUser, utterance))

	var defs []ToolDef
	if a.dispatcher != nil {
		defs = a.dispatcher.ToolDefs()
	}

	var (
		state   = stateAwaitingModel
		pending []ToolCall
		answer  string
		rounds  int
	)

	for state != stateTerminal {
		switch state {
		case stateAwaitingModel:
			resp, err := a.completionFunc(ctx, working, defs)
			if err != nil {
				return "", fmt.Errorf("completion failed: %w", err)
			}
			if resp == nil {
				return "", ErrNoCompletion
			}

			if !resp.HasToolCalls() {
				answer = resp.Content
				state = stateTerminal
				continue
			}

			if a.maxRounds > 0 && rounds >= a.maxRounds {
				l.LogAttrs(ctx, slog.LevelWarn, "tool call round limit reached",
					slog.Int("max_rounds", a.maxRounds))
				return "", fmt.Errorf("%w: limit is %d", ErrMaxRounds, a.maxRounds)
			}
			rounds++

			msg := NewMessageFromMessage(resp)
			msg.Role = RoleAssistant
			for i := range msg.ToolCalls {
				if msg.ToolCalls[i].ID == "" {
					msg.ToolCalls[i].ID = "call_" + uuid.NewString()
				}
			}

			working = append(working, msg)
			pending = msg.ToolCalls
			state = stateHandlingToolCalls

			l.LogAttrs(ctx, slog.LevelDebug, "tool calls requested",
				slog.Int("round", rounds),
				slog.Int("tool_calls", len(pending)))

		case stateHandlingToolCalls:
			for _, tc := range pending {
				working = append(working, a.dispatch(ctx, l, tc))
			}
			pending = nil
			state = stateAwaitingModel
		}
	}

	a.memory.Add(RoleUser, utterance)
	a.memory.Add(RoleAssistant, answer)

	l.LogAttrs(ctx, slog.LevelDebug, "turn complete", slog.Int("rounds", rounds))

	return answer, nil
}

func (a *Agent) dispatch(ctx context.Context, l *slog.Logger, tc ToolCall) *Message {
	st := time.Now()

	var m *Message
	if a.dispatcher != nil {
		m = a.dispatcher.Dispatch(ctx, tc)
	}

	if m == nil {
		m = NewToolResultMessage(tc.ID, notFoundPayload(tc.Name))
	}

	// The result must answer this call no matter what the dispatcher set.
	m.Role = RoleTool
	m.ToolCallID = tc.ID

	l.LogAttrs(ctx, slog.LevelDebug, "dispatched tool",
		slog.String("tool", tc.Name),
		slog.String("tool_call_id", tc.ID),
		slog.Duration("elapsed", time.Since(st)))

	return m
}

func notFoundPayload(name string) string {
	data, _ := json.Marshal(map[string]string{"error": "tool not found: " + name})
	return string(data)
}
