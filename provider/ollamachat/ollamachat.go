package ollamachat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmorganca/ollama/api"
	agent "github.com/tuxsy/my-ai-agents"
)

type GenerateFunc func(context.Context, *api.GenerateRequest) (api.GenerateResponse, error)
type MiddlewareFunc func(context.Context, *api.GenerateRequest, GenerateFunc) (api.GenerateResponse, error)

var ErrUnsupportedModel = errors.New("unsupported model name")

func newGenerateFunc(c *api.Client) GenerateFunc {
	return func(ctx context.Context, req *api.GenerateRequest) (api.GenerateResponse, error) {
		r := make(chan api.GenerateResponse, 1)

		handleResponse := func(resp api.GenerateResponse) error {
			if !resp.Done {
				return errors.New("streaming response not supported")
			}

			r <- resp
			close(r)
			return nil
		}

		err := c.Generate(ctx, req, handleResponse)
		if err != nil {
			return api.GenerateResponse{}, err
		}

		resp, ok := <-r
		if !ok {
			return api.GenerateResponse{}, errors.New("no response from model")
		}

		return resp, nil
	}
}

type provider struct {
	client      *api.Client
	modelName   string
	temperature float64

	mw []MiddlewareFunc
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

// New returns a completion func backed by a local Ollama server. The model
// is prompted in raw mode, so only model families with a known prompt format
// are supported. Tool definitions are not forwarded.
func New(c *api.Client, modelName string, opts ...Option) agent.CompletionFunc {
	p := &provider{
		client:    c,
		modelName: modelName,
	}

	for _, o := range opts {
		o(p)
	}

	return p.Completion
}

// NewFromEnvironment connects to the server named by OLLAMA_HOST.
func NewFromEnvironment(modelName string, opts ...Option) (agent.CompletionFunc, error) {
	c, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	return New(c, modelName, opts...), nil
}

type formatDialogFn func([]*agent.Message) (string, error)

func dialogFormat(modelName string) (formatDialogFn, error) {
	family, _, _ := strings.Cut(modelName, ":")
	switch {
	case strings.HasPrefix(family, "mistral"):
		return formatDialogMistral, nil
	case strings.HasPrefix(family, "llama"):
		return formatDialogLlama, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedModel, modelName)
}

// turns pairs each user message with the assistant reply that follows it.
// Tool traffic is folded in as plain text since raw prompts have no tool
// syntax. A reply whose question was already evicted from memory is skipped.
func turns(msgs []*agent.Message) (system string, pairs [][2]string, err error) {
	for _, m := range msgs {
		switch m.Role {
		case agent.RoleSystem:
			system = m.Content
		case agent.RoleUser:
			pairs = append(pairs, [2]string{strings.TrimSpace(m.Content), ""})
		case agent.RoleAssistant:
			if len(pairs) == 0 {
				continue
			}
			if m.Content != "" {
				pairs[len(pairs)-1][1] = strings.TrimSpace(m.Content)
			}
		case agent.RoleTool:
			pairs = append(pairs, [2]string{"Tool result: " + strings.TrimSpace(m.Content), ""})
		default:
			return "", nil, fmt.Errorf("unsupported role %q", m.Role)
		}
	}
	return system, pairs, nil
}

// formatDialogLlama formats the conversation into a document that an LLM will understand
//
// This is based on the llama2 python code in https://github.com/facebookresearch/llama/blob/ef351e9cd9496c579bf9f2bb036ef11bdc5ca3d2/llama/generation.py#L284-L395
func formatDialogLlama(msgs []*agent.Message) (string, error) {
	system, pairs, err := turns(msgs)
	if err != nil {
		return "", err
	}

	content := strings.Builder{}
	for ndx, p := range pairs {
		if ndx > 0 {
			content.WriteString(" ")
		}

		content.WriteString("[INST] ")
		if ndx == 0 && system != "" {
			content.WriteString("<<SYS>>\n")
			content.WriteString(strings.TrimSpace(system))
			content.WriteString("\n<</SYS>>\n\n")
		}
		content.WriteString(p[0])
		content.WriteString(" [/INST]")

		if p[1] != "" {
			content.WriteString(" ")
			content.WriteString(p[1])
		}
	}

	return content.String(), nil
}

// formatDialogMistral formats the conversation into a document that an LLM will understand
//
// Format follows https://docs.mistral.ai/llm/mistral-instruct-v0.1
func formatDialogMistral(msgs []*agent.Message) (string, error) {
	system, pairs, err := turns(msgs)
	if err != nil {
		return "", err
	}

	content := strings.Builder{}
	for ndx, p := range pairs {
		content.WriteString("[INST] ")
		if ndx == 0 && system != "" {
			content.WriteString(strings.TrimSpace(system))
			content.WriteString("\n\n")
		}
		content.WriteString(p[0])
		content.WriteString(" [/INST]")

		if p[1] != "" {
			content.WriteString(" ")
			content.WriteString(p[1])
			content.WriteString("</s>")
		}
	}

	return content.String(), nil
}

func (p *provider) Completion(
	ctx context.Context, msgs []*agent.Message, tdfs []agent.ToolDef,
) (*agent.Message, error) {
	formatDialog, err := dialogFormat(p.modelName)
	if err != nil {
		return nil, err
	}

	content, err := formatDialog(msgs)
	if err != nil {
		return nil, err
	}

	stream := false
	req := &api.GenerateRequest{
		Prompt: content,
		Model:  p.modelName,
		Stream: &stream,
		Raw:    true,
	}

	if p.temperature != 0 {
		req.Options = map[string]interface{}{"temperature": p.temperature}
	}

	// Assemble the middleware chain
	gc := newGenerateFunc(p.client)
	for _, m := range p.mw {
		next := gc
		fm := m
		gc = func(ctx context.Context, req *api.GenerateRequest) (api.GenerateResponse, error) {
			return fm(ctx, req, next)
		}
	}

	resp, err := gc(ctx, req)
	if err != nil {
		return nil, err
	}

	cleanResp := strings.TrimSpace(resp.Response)
	// Sometimes we see a EOS token to begin the response, remove that just in case
	cleanResp = strings.TrimPrefix(cleanResp, "</s>")
	cleanResp = strings.TrimSuffix(cleanResp, "</s>")

	return agent.NewContentMessage(agent.RoleAssistant, strings.TrimSpace(cleanResp)), nil
}
