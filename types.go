package agent

import (
	"context"
)

type Role string

const (
	RoleSystem    = Role("system")
	RoleUser      = Role("user")
	RoleAssistant = Role("assistant")
	RoleTool      = Role("tool")
)

type CompletionFunc func(context.Context, []*Message, []ToolDef) (*Message, error)
type MiddlewareFunc func(nextStep CompletionFunc) CompletionFunc

type ToolDef struct {
	Name        string
	Description string

	Parameters any
}

// ToolCall is a request from the completion service to run a named tool.
// Arguments holds the raw JSON payload as produced by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Dispatcher executes tool calls on behalf of the turn loop.
//
// Dispatch must always return a tool message answering call, even when the
// tool is unknown or fails. Failures are reported inside the message content.
type Dispatcher interface {
	ToolDefs() []ToolDef
	Dispatch(ctx context.Context, call ToolCall) *Message
}
