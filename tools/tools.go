package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	agent "github.com/tuxsy/my-ai-agents"
)

// Handler implements a tool. The returned payload is serialized as JSON and
// handed back to the completion service.
type Handler func(ctx context.Context, args Args) (any, error)

type Tool struct {
	Name        string
	Description string
	Params      []Param
	Handler     Handler
}

func (t Tool) Def() agent.ToolDef {
	return agent.ToolDef{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  Schema(t.Params),
	}
}

// Tools is a registry of tools keyed by name. It is the agent's dispatcher.
type Tools struct {
	fns    map[string]Tool
	defs   []agent.ToolDef
	logger *slog.Logger
}

type Option func(ts *Tools)

func WithLogger(l *slog.Logger) Option {
	return func(ts *Tools) {
		ts.logger = l
	}
}

func New(opts ...Option) *Tools {
	ts := &Tools{
		fns:    make(map[string]Tool),
		defs:   make([]agent.ToolDef, 0),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, o := range opts {
		o(ts)
	}

	return ts
}

// Add registers t. Registering a name twice replaces the earlier tool and
// keeps its position in the catalog.
func (ts *Tools) Add(t Tool) {
	def := t.Def()

	if _, ok := ts.fns[t.Name]; ok {
		for i := range ts.defs {
			if ts.defs[i].Name == t.Name {
				ts.defs[i] = def
			}
		}
	} else {
		ts.defs = append(ts.defs, def)
	}

	ts.fns[t.Name] = t
}

func (ts *Tools) AddTools(other *Tools) {
	for _, def := range other.defs {
		ts.Add(other.fns[def.Name])
	}
}

// ToolDefs returns the catalog in registration order.
func (ts *Tools) ToolDefs() []agent.ToolDef {
	defs := make([]agent.ToolDef, len(ts.defs))
	copy(defs, ts.defs)
	return defs
}

// Execute runs the named tool with raw JSON arguments.
//
// It never fails: an unknown tool, bad arguments, an error or a panic in the
// tool all come back as an error payload.
func (ts *Tools) Execute(ctx context.Context, name, arguments string) any {
	t, ok := ts.fns[name]
	if !ok {
		return ErrorPayload("tool not found: " + name)
	}

	args, err := parseArgs(arguments)
	if err != nil {
		return ErrorPayload(fmt.Sprintf("invalid arguments for %s: %v", name, err))
	}

	if err := validate(t.Params, args); err != nil {
		return ErrorPayload(err.Error())
	}

	payload, err := run(ctx, t, args)
	if err != nil {
		return ErrorPayload(err.Error())
	}

	return payload
}

// Dispatch executes call and wraps the serialized result in a tool message.
func (ts *Tools) Dispatch(ctx context.Context, call agent.ToolCall) *agent.Message {
	st := time.Now()
	payload := ts.Execute(ctx, call.Name, call.Arguments)

	attrs := []slog.Attr{
		slog.String("tool", call.Name),
		slog.String("tool_call_id", call.ID),
		slog.Duration("elapsed", time.Since(st)),
	}

	if msg, failed := IsError(payload); failed {
		attrs = append(attrs, slog.String("error", msg))
		ts.logger.LogAttrs(ctx, slog.LevelWarn, "tool failed", attrs...)
	} else {
		ts.logger.LogAttrs(ctx, slog.LevelDebug, "tool executed", attrs...)
	}

	return agent.NewToolResultMessage(call.ID, Encode(payload))
}

func WithTools(ts *Tools) agent.Option {
	return agent.WithDispatcher(ts)
}

func run(ctx context.Context, t Tool, args Args) (payload any, err error) {
	defer func() {
		if r := recover(); r != nil {
			payload = nil
			err = fmt.Errorf("tool %s panicked: %v", t.Name, r)
		}
	}()

	return t.Handler(ctx, args)
}

func parseArgs(arguments string) (Args, error) {
	args := Args{}
	if strings.TrimSpace(arguments) == "" {
		return args, nil
	}

	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return nil, err
	}

	// A literal null decodes into a nil map.
	if args == nil {
		args = Args{}
	}

	return args, nil
}

// ErrorPayload is the structured result reported for any dispatch failure.
func ErrorPayload(msg string) map[string]any {
	return map[string]any{"error": msg}
}

// IsError reports whether payload is an error payload and returns its message.
func IsError(payload any) (string, bool) {
	m, ok := payload.(map[string]any)
	if !ok {
		return "", false
	}
	msg, ok := m["error"].(string)
	return msg, ok
}

// Encode serializes a payload for a tool message.
func Encode(payload any) string {
	data, err := json.Marshal(payload)
	if err != nil {
		data, _ = json.Marshal(ErrorPayload(fmt.Sprintf("failed to encode result: %v", err)))
	}
	return string(data)
}
