package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/impromptu/core"
	"github.com/hupe1980/impromptu/model"
)

const messageJSON = `{
  "id": "msg_1",
  "type": "message",
  "role": "assistant",
  "model": "claude-sonnet-4-20250514",
  "content": [
    {"type": "text", "text": "Let me check the time."},
    {"type": "tool_use", "id": "toolu_1", "name": "askTimeAndTimeZone", "input": {}}
  ],
  "stop_reason": "tool_use",
  "stop_sequence": null,
  "usage": {"input_tokens": 12, "output_tokens": 7}
}`

func TestModel_Generate(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"))
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, messageJSON)
	}))
	defer srv.Close()

	m := NewModel(func(o *Options) {
		o.APIKey = "test"
		o.BaseURL = srv.URL
		o.MaxRetries = 0
	})

	req := model.Request{
		Messages: []core.Message{
			core.NewSystemMessage("policy"),
			core.NewUserMessage("book lunch"),
			core.NewAssistantMessage("",
				core.FunctionCall{ID: "a", Name: "askTimeAndTimeZone", Arguments: "{}"},
				core.FunctionCall{ID: "b", Name: "askForDetails", Arguments: `{"question":"where?"}`},
			),
			core.NewToolResultMessage(core.FunctionResponse{ID: "a", Name: "askTimeAndTimeZone", Response: "now"}),
			core.NewToolResultMessage(core.FunctionResponse{ID: "b", Name: "askForDetails", Error: "nope"}),
		},
		Tools: []model.ToolDefinition{{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        "askForDetails",
				Description: "ask",
				Parameters: map[string]any{
					"type":       "object",
					"properties": map[string]any{"question": map[string]any{"type": "string"}},
					"required":   []string{"question"},
				},
			},
		}},
	}

	respCh, errCh := m.Generate(context.Background(), req)
	var last model.Response
	for r := range respCh {
		last = r
	}
	require.NoError(t, <-errCh)

	assert.Equal(t, "Let me check the time.", last.Message.Text())
	calls := last.Message.FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "toolu_1", calls[0].ID)
	assert.Equal(t, "{}", calls[0].Arguments)
	assert.Equal(t, "tool_use", last.FinishReason)
	assert.Equal(t, 19, last.Usage.TotalTokens)

	system := body["system"].([]any)
	assert.Equal(t, "policy", system[0].(map[string]any)["text"])

	msgs := body["messages"].([]any)
	require.Len(t, msgs, 3)
	results := msgs[2].(map[string]any)
	assert.Equal(t, "user", results["role"])
	blocks := results["content"].([]any)
	require.Len(t, blocks, 2)
	assert.Equal(t, "tool_result", blocks[0].(map[string]any)["type"])
	assert.Equal(t, "b", blocks[1].(map[string]any)["tool_use_id"])
	assert.Equal(t, true, blocks[1].(map[string]any)["is_error"])

	tools := body["tools"].([]any)
	assert.Equal(t, "ask", tools[0].(map[string]any)["description"])
}

func TestModel_Info(t *testing.T) {
	m := NewModel(func(o *Options) { o.APIKey = "x" })
	info := m.Info()
	assert.Equal(t, "anthropic", info.Provider)
	assert.True(t, info.SupportsTools)
}
