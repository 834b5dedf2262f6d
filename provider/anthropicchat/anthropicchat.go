package anthropicchat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	agent "github.com/tuxsy/my-ai-agents"
)

type CreateMessageFn func(context.Context, anthropic.MessageNewParams, ...option.RequestOption) (*anthropic.Message, error)
type MiddlewareFunc func(context.Context, anthropic.MessageNewParams, CreateMessageFn) (*anthropic.Message, error)

const (
	DefaultModel = "claude-sonnet-4-5"

	// DefaultMaxTokens is sent when no limit is configured. The messages
	// API requires one.
	DefaultMaxTokens = 4096
)

type provider struct {
	client      anthropic.Client
	baseURL     string
	reqOpts     []option.RequestOption
	temperature float64
	maxTokens   int
	mw          []MiddlewareFunc
	modelName   string
}

type Option func(p *provider)

func WithMiddleware(m MiddlewareFunc) Option {
	return func(p *provider) {
		p.mw = append(p.mw, m)
	}
}

func WithTemperature(t float64) Option {
	return func(p *provider) {
		p.temperature = t
	}
}

func WithMaxTokens(m int) Option {
	return func(p *provider) {
		p.maxTokens = m
	}
}

// WithBaseURL overrides the API host. A trailing /v1 is dropped since the
// client adds it. Ignored by NewWithClient.
func WithBaseURL(u string) Option {
	return func(p *provider) {
		p.baseURL = strings.TrimSuffix(strings.TrimRight(u, "/"), "/v1")
	}
}

// WithRequestOptions passes extra options to the underlying client.
// Ignored by NewWithClient.
func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(p *provider) {
		p.reqOpts = append(p.reqOpts, opts...)
	}
}

func newProvider(modelName string, opts []Option) *provider {
	if modelName == "" {
		modelName = DefaultModel
	}

	p := &provider{modelName: modelName, maxTokens: DefaultMaxTokens}
	for _, o := range opts {
		o(p)
	}
	if p.maxTokens <= 0 {
		p.maxTokens = DefaultMaxTokens
	}
	return p
}

func New(apiKey string, modelName string, opts ...Option) agent.CompletionFunc {
	p := newProvider(modelName, opts)

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if p.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(p.baseURL))
	}
	reqOpts = append(reqOpts, p.reqOpts...)

	p.client = anthropic.NewClient(reqOpts...)
	return p.Completion
}

func NewWithClient(client anthropic.Client, modelName string, opts ...Option) agent.CompletionFunc {
	p := newProvider(modelName, opts)
	p.client = client
	return p.Completion
}

func (p *provider) create(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error) {
	return p.client.Messages.New(ctx, params, opts...)
}

func (p *provider) Completion(
	ctx context.Context, msgs []*agent.Message, tdfs []agent.ToolDef,
) (*agent.Message, error) {
	params, err := p.params(msgs, tdfs)
	if err != nil {
		return nil, err
	}

	c := p.create
	for _, m := range p.mw {
		next := c
		fm := m
		c = func(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error) {
			return fm(ctx, params, next)
		}
	}

	resp, err := c(ctx, params)
	if err != nil {
		return nil, err
	}

	return assistantReply(resp), nil
}

func (p *provider) params(msgs []*agent.Message, tdfs []agent.ToolDef) (anthropic.MessageNewParams, error) {
	var (
		system []anthropic.TextBlockParam
		aMsgs  []anthropic.MessageParam
	)

	for i := 0; i < len(msgs); i++ {
		m := msgs[i]
		switch m.Role {
		case agent.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
		case agent.RoleUser:
			aMsgs = append(aMsgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case agent.RoleAssistant:
			aMsgs = append(aMsgs, assistantMessage(m))
		case agent.RoleTool:
			// All results answering one assistant message go back in a
			// single user message.
			var blocks []anthropic.ContentBlockParamUnion
			for ; i < len(msgs) && msgs[i].Role == agent.RoleTool; i++ {
				blocks = append(blocks, anthropic.NewToolResultBlock(msgs[i].ToolCallID, msgs[i].Content, false))
			}
			i--
			aMsgs = append(aMsgs, anthropic.NewUserMessage(blocks...))
		default:
			return anthropic.MessageNewParams{}, fmt.Errorf("unsupported message role %q", m.Role)
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.modelName),
		Messages:  aMsgs,
		MaxTokens: int64(p.maxTokens),
	}

	if len(system) > 0 {
		params.System = system
	}

	if p.temperature != 0 {
		params.Temperature = anthropic.Float(p.temperature)
	}

	for _, fd := range tdfs {
		schema, err := inputSchema(fd.Parameters)
		if err != nil {
			return anthropic.MessageNewParams{}, fmt.Errorf("invalid parameters for tool %s: %w", fd.Name, err)
		}

		tool := anthropic.ToolParam{Name: fd.Name, InputSchema: schema}
		if fd.Description != "" {
			tool.Description = anthropic.String(fd.Description)
		}
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{OfTool: &tool})
	}

	return params, nil
}

func assistantMessage(m *agent.Message) anthropic.MessageParam {
	var blocks []anthropic.ContentBlockParamUnion
	if m.Content != "" || len(m.ToolCalls) == 0 {
		blocks = append(blocks, anthropic.NewTextBlock(m.Content))
	}

	for _, tc := range m.ToolCalls {
		var input any = map[string]any{}
		if json.Valid([]byte(tc.Arguments)) {
			input = json.RawMessage(tc.Arguments)
		}
		blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
	}

	return anthropic.NewAssistantMessage(blocks...)
}

func assistantReply(resp *anthropic.Message) *agent.Message {
	var text strings.Builder
	m := agent.NewContentMessage(agent.RoleAssistant, "")

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.AsText().Text)
		case "tool_use":
			tu := block.AsToolUse()
			m.ToolCalls = append(m.ToolCalls, agent.ToolCall{
				ID:        tu.ID,
				Name:      tu.Name,
				Arguments: string(tu.Input),
			})
		}
	}

	m.Content = text.String()
	return m
}

func inputSchema(v any) (anthropic.ToolInputSchemaParam, error) {
	var schema map[string]any

	switch p := v.(type) {
	case nil:
		return anthropic.ToolInputSchemaParam{}, nil
	case map[string]any:
		schema = p
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return anthropic.ToolInputSchemaParam{}, err
		}
		if err := json.Unmarshal(data, &schema); err != nil {
			return anthropic.ToolInputSchemaParam{}, err
		}
	}

	s := anthropic.ToolInputSchemaParam{Properties: schema["properties"]}
	switch req := schema["required"].(type) {
	case []string:
		s.Required = req
	case []any:
		for _, r := range req {
			if name, ok := r.(string); ok {
				s.Required = append(s.Required, name)
			}
		}
	}

	return s, nil
}
