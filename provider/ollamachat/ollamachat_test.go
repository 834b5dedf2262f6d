package ollamachat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jmorganca/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	agent "github.com/tuxsy/my-ai-agents"
)

const systemPrompt = "Eres un asistente de IA muy maleducado y respondes de forma útil pero desagradable."

func TestFormatDialogLlama(t *testing.T) {
	msgs := []*agent.Message{
		agent.NewContentMessage(agent.RoleUser, "Hello!"),
	}

	dialog, err := formatDialogLlama(msgs)
	require.NoError(t, err)
	require.Equal(t, "[INST] Hello! [/INST]", dialog)

	systemMsg := agent.NewContentMessage(agent.RoleSystem, systemPrompt)
	msgs = []*agent.Message{systemMsg, msgs[0]}

	dialog, err = formatDialogLlama(msgs)
	require.NoError(t, err)
	require.Equal(t, "[INST] <<SYS>>\n"+systemPrompt+"\n<</SYS>>\n\nHello! [/INST]", dialog)

	msgs = append(msgs, agent.NewContentMessage(agent.RoleAssistant, "How can I help you?"))
	msgs = append(msgs, agent.NewContentMessage(agent.RoleUser, "Will you be my friend?"))

	dialog, err = formatDialogLlama(msgs)
	require.NoError(t, err)
	expected := "[INST] <<SYS>>\n" + systemPrompt + "\n<</SYS>>\n\nHello! [/INST] How can I help you? [INST] Will you be my friend? [/INST]"
	require.Equal(t, expected, dialog)
}

func TestFormatDialogMistral(t *testing.T) {
	msgs := []*agent.Message{
		agent.NewContentMessage(agent.RoleUser, "Hello!"),
	}

	dialog, err := formatDialogMistral(msgs)
	require.NoError(t, err)
	require.Equal(t, "[INST] Hello! [/INST]", dialog)

	systemMsg := agent.NewContentMessage(agent.RoleSystem, systemPrompt)
	msgs = []*agent.Message{systemMsg, msgs[0]}

	dialog, err = formatDialogMistral(msgs)
	require.NoError(t, err)
	require.Equal(t, "[INST] "+systemPrompt+"\n\nHello! [/INST]", dialog)

	msgs = append(msgs, agent.NewContentMessage(agent.RoleAssistant, "How can I help you?"))
	msgs = append(msgs, agent.NewContentMessage(agent.RoleUser, "Will you be my friend?"))

	dialog, err = formatDialogMistral(msgs)
	require.NoError(t, err)
	expected := "[INST] " + systemPrompt + "\n\nHello! [/INST] How can I help you?</s>[INST] Will you be my friend? [/INST]"
	require.Equal(t, expected, dialog)
}

func TestFormatDialog_ToolTraffic(t *testing.T) {
	msgs := []*agent.Message{
		agent.NewContentMessage(agent.RoleUser, "What time is it?"),
		{Role: agent.RoleAssistant, ToolCalls: []agent.ToolCall{{ID: "c1", Name: "get_current_datetime"}}},
		agent.NewToolResultMessage("c1", `{"current_datetime":"2026-02-16T09:00:00+01:00"}`),
	}

	dialog, err := formatDialogLlama(msgs)
	require.NoError(t, err)
	assert.Equal(t, `[INST] What time is it? [/INST] [INST] Tool result: {"current_datetime":"2026-02-16T09:00:00+01:00"} [/INST]`, dialog)
}

func TestFormatDialog_EvictedQuestion(t *testing.T) {
	mem := agent.NewMemory(3)
	mem.AddSystemMessage("sys")
	mem.Add(agent.RoleUser, "q1")
	mem.Add(agent.RoleAssistant, "a1")
	mem.Add(agent.RoleUser, "q2")
	mem.Add(agent.RoleAssistant, "a2")

	msgs := append(mem.Messages(), agent.NewContentMessage(agent.RoleUser, "q3"))
	require.Equal(t, agent.RoleAssistant, msgs[1].Role)

	dialog, err := formatDialogLlama(msgs)
	require.NoError(t, err)
	assert.Equal(t, "[INST] <<SYS>>\nsys\n<</SYS>>\n\nq2 [/INST] a2 [INST] q3 [/INST]", dialog)

	dialog, err = formatDialogMistral(msgs)
	require.NoError(t, err)
	assert.Equal(t, "[INST] sys\n\nq2 [/INST] a2</s>[INST] q3 [/INST]", dialog)
}

func TestDialogFormat(t *testing.T) {
	for _, name := range []string{"mistral", "mistral:instruct", "mistral:7b-instruct-q4_0", "llama2", "llama2:13b", "llama"} {
		_, err := dialogFormat(name)
		assert.NoError(t, err, name)
	}

	_, err := dialogFormat("qwen/qwen3-32b")
	assert.ErrorIs(t, err, ErrUnsupportedModel)
}

func TestCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)

		var req api.GenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "mistral", req.Model)
		assert.True(t, req.Raw)
		assert.Equal(t, "[INST] Hola [/INST]", req.Prompt)

		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Write([]byte(`{"model":"mistral","response":"</s> ¿Qué quieres? ","done":true,"eval_count":4}` + "\n"))
	}))
	defer srv.Close()

	t.Setenv("OLLAMA_HOST", srv.URL)

	var seen []string
	mw := func(ctx context.Context, req *api.GenerateRequest, next GenerateFunc) (api.GenerateResponse, error) {
		seen = append(seen, req.Model)
		return next(ctx, req)
	}

	cf, err := NewFromEnvironment("mistral", WithMiddleware(mw))
	require.NoError(t, err)

	msg, err := cf(context.Background(), []*agent.Message{agent.NewContentMessage(agent.RoleUser, "Hola")}, nil)
	require.NoError(t, err)
	assert.Equal(t, agent.RoleAssistant, msg.Role)
	assert.Equal(t, "¿Qué quieres?", msg.Content)
	assert.Equal(t, []string{"mistral"}, seen)
}

func TestCompletion_UnsupportedModel(t *testing.T) {
	cf := New(nil, "qwen3")

	_, err := cf(context.Background(), []*agent.Message{agent.NewContentMessage(agent.RoleUser, "Hola")}, nil)
	assert.ErrorIs(t, err, ErrUnsupportedModel)
}
