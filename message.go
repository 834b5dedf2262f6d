package agent

import (
	"fmt"

	"gopkg.in/yaml.v2"
)

type Message struct {
	Role    Role
	Content string

	// ToolCalls is set on assistant messages that request tool execution.
	ToolCalls []ToolCall

	// ToolCallID links a tool message to the request it answers.
	ToolCallID string
}

func (m *Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

func NewContentMessage(role Role, content string) *Message {
	return &Message{Role: role, Content: content}
}

func NewToolResultMessage(toolCallID, content string) *Message {
	return &Message{Role: RoleTool, Content: content, ToolCallID: toolCallID}
}

func NewMessageFromMessage(m *Message) *Message {
	nm := &Message{
		Role:       m.Role,
		Content:    m.Content,
		ToolCallID: m.ToolCallID,
	}

	if len(m.ToolCalls) > 0 {
		nm.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		copy(nm.ToolCalls, m.ToolCalls)
	}

	return nm
}

type yamlToolCall struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Arguments string `yaml:"arguments"`
}

type yamlMessage struct {
	Role       Role           `yaml:"role"`
	Content    string         `yaml:"content"`
	ToolCalls  []yamlToolCall `yaml:"tool_calls,omitempty"`
	ToolCallID string         `yaml:"tool_call_id,omitempty"`
}

func ExportMessagesToYAML(messages []*Message) (string, error) {
	yamlMessages := make([]yamlMessage, len(messages))

	for i, m := range messages {
		ym := yamlMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}

		for _, tc := range m.ToolCalls {
			ym.ToolCalls = append(ym.ToolCalls, yamlToolCall(tc))
		}

		yamlMessages[i] = ym
	}

	bytes, err := yaml.Marshal(yamlMessages)
	if err != nil {
		return "", fmt.Errorf("error marshaling messages to YAML: %w", err)
	}

	return string(bytes), nil
}
