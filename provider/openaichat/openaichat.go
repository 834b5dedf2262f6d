package openaichat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	agent "github.com/tuxsy/my-ai-agents"
)

type CreateCompletionFn func(context.Context, openai.ChatCompletionNewParams, ...option.RequestOption) (*openai.ChatCompletion, error)
type MiddlewareFunc func(context.Context, openai.ChatCompletionNewParams, CreateCompletionFn) (*openai.ChatCompletion, error)

const (
	// GroqBaseURL is Groq's OpenAI compatible endpoint.
	GroqBaseURL = "https://api.groq.com/openai/v1"

	DefaultGroqModel = "qwen/qwen3-32b"
)

type provider struct {
	client      openai.Client
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

// WithTemperature sets the sampling temperature. Zero leaves it to the
// service default.
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

// WithBaseURL points the client at an OpenAI compatible endpoint.
// Ignored by NewWithClient.
func WithBaseURL(u string) Option {
	return func(p *provider) {
		p.baseURL = u
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
	p := &provider{modelName: modelName}
	for _, o := range opts {
		o(p)
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

	p.client = openai.NewClient(reqOpts...)
	return p.Completion
}

// NewGroq is New against Groq's endpoint.
func NewGroq(apiKey string, modelName string, opts ...Option) agent.CompletionFunc {
	if modelName == "" {
		modelName = DefaultGroqModel
	}
	return New(apiKey, modelName, append([]Option{WithBaseURL(GroqBaseURL)}, opts...)...)
}

func NewWithClient(client openai.Client, modelName string, opts ...Option) agent.CompletionFunc {
	p := newProvider(modelName, opts)
	p.client = client
	return p.Completion
}

func (p *provider) create(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	return p.client.Chat.Completions.New(ctx, params, opts...)
}

func (p *provider) Completion(
	ctx context.Context, msgs []*agent.Message, tdfs []agent.ToolDef,
) (*agent.Message, error) {
	pMsgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case agent.RoleSystem:
			pMsgs = append(pMsgs, openai.SystemMessage(m.Content))
		case agent.RoleUser:
			pMsgs = append(pMsgs, openai.UserMessage(m.Content))
		case agent.RoleAssistant:
			pMsgs = append(pMsgs, assistantMessage(m))
		case agent.RoleTool:
			pMsgs = append(pMsgs, openai.ToolMessage(m.Content, m.ToolCallID))
		default:
			return nil, fmt.Errorf("unsupported message role %q", m.Role)
		}
	}

	tools := make([]openai.ChatCompletionToolUnionParam, 0, len(tdfs))
	for _, fd := range tdfs {
		fp, err := functionParameters(fd.Parameters)
		if err != nil {
			return nil, fmt.Errorf("invalid parameters for tool %s: %w", fd.Name, err)
		}

		tools = append(tools, openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        fd.Name,
			Description: openai.String(fd.Description),
			Parameters:  fp,
		}))
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.modelName),
		Messages: pMsgs,
	}

	if len(tools) > 0 {
		params.Tools = tools
	}

	if p.maxTokens != 0 {
		params.MaxCompletionTokens = openai.Int(int64(p.maxTokens))
	}

	if p.temperature != 0 {
		params.Temperature = openai.Float(p.temperature)
	}

	// Assemble the middleware chain
	c := p.create
	for _, m := range p.mw {
		next := c
		fm := m
		c = func(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
			return fm(ctx, params, next)
		}
	}

	resp, err := c(ctx, params)
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no completion returned")
	}

	rMsg := resp.Choices[0].Message
	m := agent.NewContentMessage(agent.RoleAssistant, rMsg.Content)

	for _, tc := range rMsg.ToolCalls {
		fn, ok := tc.AsAny().(openai.ChatCompletionMessageFunctionToolCall)
		if !ok {
			continue
		}
		m.ToolCalls = append(m.ToolCalls, agent.ToolCall{
			ID:        fn.ID,
			Name:      fn.Function.Name,
			Arguments: fn.Function.Arguments,
		})
	}

	return m, nil
}

func assistantMessage(m *agent.Message) openai.ChatCompletionMessageParamUnion {
	aMsg := openai.ChatCompletionAssistantMessageParam{}
	if m.Content != "" {
		aMsg.Content.OfString = openai.String(m.Content)
	}

	if len(m.ToolCalls) > 0 {
		aMsg.ToolCalls = make([]openai.ChatCompletionMessageToolCallUnionParam, len(m.ToolCalls))
		for i, tc := range m.ToolCalls {
			aMsg.ToolCalls[i] = openai.ChatCompletionMessageToolCallUnionParam{
				OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
					ID: tc.ID,
					Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				},
			}
		}
	}

	return openai.ChatCompletionMessageParamUnion{OfAssistant: &aMsg}
}

func functionParameters(v any) (shared.FunctionParameters, error) {
	switch p := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return shared.FunctionParameters(p), nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var fp shared.FunctionParameters
	if err := json.Unmarshal(data, &fp); err != nil {
		return nil, err
	}
	return fp, nil
}
