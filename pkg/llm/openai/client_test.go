package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/powermem-mcp/pkg/llm"
	"github.com/oceanbase/powermem-mcp/pkg/llm/openai"
)

func newServer(t *testing.T, content string, seen *map[string]interface{}) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(seen))

		w.Header().Set("Content-Type", "application/json")
		choices := []map[string]interface{}{}
		if content != "" {
			choices = append(choices, map[string]interface{}{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"model":   "gpt-4o-mini",
			"choices": choices,
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestGenerateWithMessages(t *testing.T) {
	var seen map[string]interface{}
	server := newServer(t, "generalized", &seen)

	client, err := openai.NewClient(&openai.Config{APIKey: "test", BaseURL: server.URL + "/v1"})
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	out, err := client.GenerateWithMessages(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "be terse"},
		{Role: llm.RoleUser, Content: "hello"},
	}, llm.WithMaxTokens(50))
	require.NoError(t, err)
	assert.Equal(t, "generalized", out)

	assert.Equal(t, openai.DefaultModel, seen["model"])
	assert.EqualValues(t, 50, seen["max_tokens"])
	messages, ok := seen["messages"].([]interface{})
	require.True(t, ok)
	assert.Len(t, messages, 2)
}

func TestGenerateEmptyResponse(t *testing.T) {
	var seen map[string]interface{}
	server := newServer(t, "", &seen)

	client, err := openai.NewClient(&openai.Config{APIKey: "test", BaseURL: server.URL + "/v1", Model: "deepseek-chat"})
	require.NoError(t, err)

	_, err = client.GenerateWithMessages(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hello"}})
	assert.ErrorIs(t, err, llm.ErrEmptyResponse)
	assert.Equal(t, "deepseek-chat", seen["model"])
}

func TestNewClientRequiresConfig(t *testing.T) {
	_, err := openai.NewClient(nil)
	assert.Error(t, err)
}
