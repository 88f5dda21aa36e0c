package tool

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKnowledgeBaseTool_Retrieve(t *testing.T) {
	var gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")

		var payload struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
			Stream bool `json:"stream"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Len(t, payload.Messages, 1)
		assert.Equal(t, "user", payload.Messages[0].Role)
		assert.False(t, payload.Stream)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "Refunds take 5 business days."}},
			},
		})
	}))
	defer server.Close()

	kb := NewKnowledgeBaseTool(func(o *KnowledgeBaseOptions) {
		o.BaseURL = server.URL + "/"
		o.APIKey = "secret"
		o.ChatID = "chat-42"
	})

	result, err := kb.Call(testRunContext(), map[string]any{"query": "refund policy"})
	require.NoError(t, err)
	assert.Equal(t, "Refunds take 5 business days.", result)
	assert.Equal(t, "/chats_openai/chat-42/chat/completions", gotPath)
	assert.Equal(t, "Bearer secret", gotAuth)
}

func TestKnowledgeBaseTool_ErrorsDegradeToStrings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	kb := NewKnowledgeBaseTool(func(o *KnowledgeBaseOptions) {
		o.BaseURL = server.URL
		o.APIKey = "secret"
		o.ChatID = "chat-42"
	})

	result, err := kb.Call(testRunContext(), map[string]any{"query": "anything"})
	require.NoError(t, err)
	assert.Contains(t, result.(string), "unexpected status 502")
}

func TestKnowledgeBaseTool_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer server.Close()

	kb := NewKnowledgeBaseTool(func(o *KnowledgeBaseOptions) {
		o.BaseURL = server.URL
		o.APIKey = "secret"
		o.ChatID = "chat-42"
	})

	result, err := kb.Call(testRunContext(), map[string]any{"query": "anything"})
	require.NoError(t, err)
	assert.Equal(t, "No response from the knowledge base.", result)
}
