package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/bqagent/core"
	"github.com/hupe1980/bqagent/model"
)

const toolUseMessage = `{
  "id": "msg_1",
  "type": "message",
  "role": "assistant",
  "model": "claude-3-5-haiku-latest",
  "content": [
    {"type": "text", "text": "checking the schema"},
    {"type": "tool_use", "id": "toolu_1", "name": "describe_schema", "input": {"table_name": "events"}}
  ],
  "stop_reason": "tool_use",
  "stop_sequence": null,
  "usage": {"input_tokens": 10, "output_tokens": 5}
}`

func TestModel_GenerateToolUse(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, toolUseMessage)
	}))
	defer srv.Close()

	m := NewModel(func(o *Options) {
		o.APIKey = "test"
		o.BaseURL = srv.URL + "/"
		o.RequestOptions = []option.RequestOption{option.WithMaxRetries(0)}
	})

	req := model.Request{
		Instructions: "count the rows",
		Contents: []core.Content{
			core.NewUserContent("how many rows?"),
			core.NewFunctionCallContent(core.FunctionCall{ID: "toolu_0", Name: "list_sources", Arguments: "{}"}),
			core.NewFunctionResponseContent(core.FunctionResponse{ID: "toolu_0", Name: "list_sources", Response: `{"result":"[]"}`}),
		},
		Tools: []model.ToolDefinition{{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        "describe_schema",
				Description: "Describes a table.",
				Parameters: map[string]any{
					"type":       "object",
					"properties": map[string]any{"table_name": map[string]any{"type": "string"}},
					"required":   []string{},
				},
			},
		}},
		ToolChoice: model.ToolChoiceRequired,
	}

	resp, err := model.Collect(context.Background(), m, req)
	require.NoError(t, err)

	calls := resp.Content.FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "toolu_1", calls[0].ID)
	assert.Equal(t, "describe_schema", calls[0].Name)
	assert.JSONEq(t, `{"table_name":"events"}`, calls[0].Arguments)
	assert.Equal(t, "checking the schema", resp.Content.Text())
	assert.Equal(t, "tool_use", resp.FinishReason)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 15, resp.Usage.TotalTokens)

	assert.Equal(t, map[string]any{"type": "any"}, body["tool_choice"])

	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 3)
	assert.Equal(t, "user", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "assistant", msgs[1].(map[string]any)["role"])

	last := msgs[2].(map[string]any)
	assert.Equal(t, "user", last["role"])
	blocks := last["content"].([]any)
	require.Len(t, blocks, 1)
	assert.Equal(t, "tool_result", blocks[0].(map[string]any)["type"])
	assert.Equal(t, "toolu_0", blocks[0].(map[string]any)["tool_use_id"])
}

func TestBuildMessages_FailedToolResultIsError(t *testing.T) {
	msgs := buildMessages([]core.Content{
		core.NewFunctionCallContent(core.FunctionCall{ID: "a", Name: "test_query", Arguments: `{"sql":"x"}`}),
		core.NewFunctionResponseContent(core.FunctionResponse{ID: "a", Name: "test_query", Error: "syntax error"}),
	})
	require.Len(t, msgs, 2)

	raw, err := json.Marshal(msgs[1])
	require.NoError(t, err)

	var decoded struct {
		Role    string `json:"role"`
		Content []struct {
			Type    string `json:"type"`
			IsError bool   `json:"is_error"`
		} `json:"content"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "user", decoded.Role)
	require.Len(t, decoded.Content, 1)
	assert.Equal(t, "tool_result", decoded.Content[0].Type)
	assert.True(t, decoded.Content[0].IsError)
}

func TestBuildTools_KeepsAdditionalProperties(t *testing.T) {
	tools := buildTools([]model.ToolDefinition{{
		Type: "function",
		Function: model.FunctionDefinition{
			Name: "test_query",
			Parameters: map[string]any{
				"type":                 "object",
				"properties":           map[string]any{"sql": map[string]any{"type": "string"}},
				"required":             []string{"sql"},
				"additionalProperties": false,
			},
		},
	}})
	require.Len(t, tools, 1)

	raw, err := json.Marshal(tools[0])
	require.NoError(t, err)

	var decoded struct {
		Name        string         `json:"name"`
		InputSchema map[string]any `json:"input_schema"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "test_query", decoded.Name)
	assert.Equal(t, "object", decoded.InputSchema["type"])
	assert.Equal(t, []any{"sql"}, decoded.InputSchema["required"])
	assert.Equal(t, false, decoded.InputSchema["additionalProperties"])
}

func TestModel_Info(t *testing.T) {
	m := NewModel(func(o *Options) { o.APIKey = "test" })
	info := m.Info()
	assert.Equal(t, DefaultModel, info.Name)
	assert.Equal(t, "anthropic", info.Provider)
}
