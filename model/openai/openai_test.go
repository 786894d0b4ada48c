package openai

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

const completionJSON = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1749114000,
  "model": "gpt-4o-mini",
  "choices": [{
    "index": 0,
    "finish_reason": "tool_calls",
    "logprobs": null,
    "message": {
      "role": "assistant",
      "content": null,
      "refusal": null,
      "tool_calls": [
        {"id": "call_1", "type": "function", "function": {"name": "askTimeAndTimeZone", "arguments": "{}"}},
        {"id": "call_2", "type": "function", "function": {"name": "askForDetails", "arguments": "{\"question\":\"where?\"}"}}
      ]
    }
  }],
  "usage": {"prompt_tokens": 10, "completion_tokens": 4, "total_tokens": 14}
}`

func TestModel_GenerateNonStreaming(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionJSON)
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
			core.NewAssistantMessage("", core.FunctionCall{ID: "prev", Name: "askTimeAndTimeZone"}),
			core.NewToolResultMessage(core.FunctionResponse{ID: "prev", Name: "askTimeAndTimeZone", Response: "Current date: x"}),
		},
		Tools: []model.ToolDefinition{{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        "askTimeAndTimeZone",
				Description: "time",
				Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
			},
		}},
	}

	respCh, errCh := m.Generate(context.Background(), req)
	var last model.Response
	for r := range respCh {
		last = r
	}
	require.NoError(t, <-errCh)

	calls := last.Message.FunctionCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "call_1", calls[0].ID)
	assert.Equal(t, "askForDetails", calls[1].Name)
	assert.Equal(t, "tool_calls", last.FinishReason)
	assert.Equal(t, 14, last.Usage.TotalTokens)

	msgs := body["messages"].([]any)
	require.Len(t, msgs, 4)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	toolMsg := msgs[3].(map[string]any)
	assert.Equal(t, "tool", toolMsg["role"])
	assert.Equal(t, "prev", toolMsg["tool_call_id"])
	assert.Len(t, body["tools"], 1)
}

func TestModel_GenerateAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	m := NewModel(func(o *Options) {
		o.APIKey = "bad"
		o.BaseURL = srv.URL
		o.MaxRetries = 0
	})

	respCh, errCh := m.Generate(context.Background(), model.Request{Messages: []core.Message{core.NewUserMessage("hi")}})
	for range respCh {
	}
	err := <-errCh
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai api error")
}

func TestOrderedCalls(t *testing.T) {
	calls := orderedCalls(map[int64]*aggCall{
		2: {id: "c", name: "z"},
		0: {id: "a", name: "x"},
		1: {id: "b", name: "y"},
	})
	require.Len(t, calls, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{calls[0].ID, calls[1].ID, calls[2].ID})
}

func TestModel_Info(t *testing.T) {
	m := NewModel(func(o *Options) { o.APIKey = "x"; o.Model = "gpt-4.1" })
	assert.Equal(t, model.Info{Name: "gpt-4.1", Provider: "openai", SupportsTools: true}, m.Info())
}
