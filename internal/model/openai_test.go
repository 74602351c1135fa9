// internal/model/openai_test.go
package model

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/franz-cli/internal/config"
	"github.com/xkilldash9x/franz-cli/internal/engine"
)

func openAITestConfig(endpoint string) config.ModelConfig {
	return config.ModelConfig{
		Provider:    config.ProviderOpenAI,
		Model:       "qwen3-vl-2b-instruct",
		Endpoint:    endpoint,
		APITimeout:  5 * time.Second,
		Temperature: 1.0,
		MaxTokens:   300,
	}
}

func chatCompletionWithToolCall(name, arguments string) string {
	resp := map[string]any{
		"id":     "chatcmpl-test",
		"object": "chat.completion",
		"choices": []map[string]any{{
			"index": 0,
			"message": map[string]any{
				"role": "assistant",
				"tool_calls": []map[string]any{{
					"id":   "call-1",
					"type": "function",
					"function": map[string]any{
						"name":      name,
						"arguments": arguments,
					},
				}},
			},
			"finish_reason": "tool_calls",
		}},
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

func testRequest() engine.Request {
	return engine.Request{
		Instructions: "standing orders",
		Story:        "the story so far",
		Frame:        engine.Frame{PNG: []byte{0x89, 0x50, 0x4e, 0x47}, Width: 512, Height: 288},
	}
}

func TestOpenAIDecideReturnsToolCall(t *testing.T) {
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, chatCompletionWithToolCall("click", `{"x": 500, "y": 250, "story": "he clicks"}`))
	}))
	defer server.Close()

	client, err := NewOpenAIClient(openAITestConfig(server.URL+"/v1"), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	inv, err := client.Decide(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, "click", inv.Name)
	require.NotNil(t, inv.Args.X)
	require.NotNil(t, inv.Args.Y)
	require.NotNil(t, inv.Args.Story)
	assert.Equal(t, 500.0, *inv.Args.X)
	assert.Equal(t, 250.0, *inv.Args.Y)
	assert.Equal(t, "he clicks", *inv.Args.Story)

	// The wire request carries the frame, the forced tool choice, and the
	// full tool set.
	var wire map[string]any
	require.NoError(t, json.Unmarshal(gotBody, &wire))
	assert.Equal(t, "required", wire["tool_choice"])
	tools, ok := wire["tools"].([]any)
	require.True(t, ok)
	assert.Len(t, tools, 5)
	assert.Contains(t, string(gotBody), "data:image/png;base64,")
}

func TestOpenAIDecideWithholdsObserve(t *testing.T) {
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, chatCompletionWithToolCall("scroll", `{"dy": 120, "story": "he scrolls"}`))
	}))
	defer server.Close()

	client, err := NewOpenAIClient(openAITestConfig(server.URL+"/v1"), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	req := testRequest()
	req.DisallowObserve = true
	inv, err := client.Decide(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "scroll", inv.Name)

	var wire struct {
		Tools []struct {
			Function struct {
				Name string `json:"name"`
			} `json:"function"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(gotBody, &wire))
	require.Len(t, wire.Tools, 4)
	for _, tool := range wire.Tools {
		assert.NotEqual(t, "observe", tool.Function.Name)
	}
}

func TestOpenAIDecideNoToolCallIsNotTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-test",
			"object": "chat.completion",
			"choices": [{
				"index": 0,
				"message": {"role": "assistant", "content": "I think I should click somewhere."},
				"finish_reason": "stop"
			}]
		}`)
	}))
	defer server.Close()

	client, err := NewOpenAIClient(openAITestConfig(server.URL+"/v1"), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	inv, err := client.Decide(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Empty(t, inv.Name)
}

func TestOpenAIDecideUndecodableArgumentsIsNotTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, chatCompletionWithToolCall("click", `this is not json`))
	}))
	defer server.Close()

	client, err := NewOpenAIClient(openAITestConfig(server.URL+"/v1"), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	inv, err := client.Decide(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Empty(t, inv.Name)
}

func TestOpenAIDecideServerErrorIsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream on fire", http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := NewOpenAIClient(openAITestConfig(server.URL+"/v1"), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	_, err = client.Decide(context.Background(), testRequest())
	assert.Error(t, err)
}
