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

func TestOpenAI_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "ping", req.Messages[1].Content)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  pong \n"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()
	t.Setenv("DOCRAG_LLM_KEY", "sk-test")

	c, err := NewOpenAI(Config{BaseURL: srv.URL + "/v1", APIKeyEnv: "DOCRAG_LLM_KEY"})
	require.NoError(t, err)
	assert.Equal(t, "openai/gpt-4o-mini", c.Name())

	out, err := c.Complete(context.Background(), "be brief", "ping")
	require.NoError(t, err)
	assert.Equal(t, "pong", out)
}

func TestOpenAI_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()
	t.Setenv("DOCRAG_LLM_KEY", "sk-test")

	c, err := NewOpenAI(Config{BaseURL: srv.URL, APIKeyEnv: "DOCRAG_LLM_KEY"})
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), "", "ping")
	assert.ErrorContains(t, err, "no choices")
}

func TestNewOpenAI_MissingKey(t *testing.T) {
	t.Setenv("DOCRAG_LLM_KEY", "")
	_, err := NewOpenAI(Config{APIKeyEnv: "DOCRAG_LLM_KEY"})
	assert.Error(t, err)
}
