package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChatServer(t *testing.T, reply string, status int) (*httptest.Server, *map[string]any) {
	t.Helper()
	var lastBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&lastBody))
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   lastBody["model"],
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &lastBody
}

func TestOpenAILLM_Complete(t *testing.T) {
	srv, body := newChatServer(t, "SELECT 1", http.StatusOK)

	m := NewGroqLLM(WithBaseURL(srv.URL), WithAPIKey("test"), WithModel(GroqMixtral8x7B), WithMaxTokens(256), WithLogger(quietLogger()))
	out, err := m.Complete(context.Background(), "generate sql")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", out)
	assert.Equal(t, GroqMixtral8x7B, (*body)["model"])
	assert.EqualValues(t, 256, (*body)["max_tokens"])
	assert.Equal(t, LLMMetadata{ModelName: GroqMixtral8x7B, Provider: ProviderGroq}, m.Metadata())
}

func TestOpenAILLM_Chat(t *testing.T) {
	srv, body := newChatServer(t, "unstructured", http.StatusOK)

	m := NewGeminiLLM(WithBaseURL(srv.URL), WithAPIKey("test"), WithLogger(quietLogger()))
	out, err := m.Chat(context.Background(), []ChatMessage{
		NewSystemMessage("classify"),
		NewUserMessage("find me a Go developer"),
	})
	require.NoError(t, err)
	assert.Equal(t, "unstructured", out)

	msgs := (*body)["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, GeminiFlash, (*body)["model"])
}

func TestOpenAILLM_ProviderError(t *testing.T) {
	srv, _ := newChatServer(t, "", http.StatusServiceUnavailable)

	m := NewOpenAILLM(WithBaseURL(srv.URL), WithAPIKey("test"), WithLogger(quietLogger()))
	_, err := m.Complete(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai completion failed")
}

func TestNewFromConfig(t *testing.T) {
	srv, _ := newChatServer(t, "ok", http.StatusOK)

	t.Run("builds a retrying client", func(t *testing.T) {
		m, err := NewFromConfig(ModelConfig{
			Provider:   ProviderGroq,
			Model:      GroqLlama3_70B,
			BaseURL:    srv.URL,
			APIKey:     "test",
			MaxRetries: 2,
		}, quietLogger(), nil)
		require.NoError(t, err)
		assert.Equal(t, 2, m.MaxRetries)
		assert.Equal(t, GroqLlama3_70B, m.Metadata().ModelName)

		out, err := m.Complete(context.Background(), "q")
		require.NoError(t, err)
		assert.Equal(t, "ok", out)
	})

	t.Run("rejects unknown providers", func(t *testing.T) {
		_, err := NewFromConfig(ModelConfig{Provider: "bedrock"}, quietLogger(), nil)
		assert.Error(t, err)
	})
}
