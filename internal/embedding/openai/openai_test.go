package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/embedding"
)

func newTestClient(t *testing.T, h http.HandlerFunc, dim int) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	t.Setenv("DOCRAG_TEST_KEY", "sk-test")
	c, err := NewClient(Config{BaseURL: srv.URL + "/v1", APIKeyEnv: "DOCRAG_TEST_KEY", Dimension: dim})
	require.NoError(t, err)
	return c
}

func TestNewClient_MissingKey(t *testing.T) {
	t.Setenv("DOCRAG_MISSING_KEY", "")
	_, err := NewClient(Config{APIKeyEnv: "DOCRAG_MISSING_KEY"})
	assert.ErrorContains(t, err, "DOCRAG_MISSING_KEY")
}

func TestNewClient_DefaultDimension(t *testing.T) {
	t.Setenv("DOCRAG_TEST_KEY", "sk-test")
	c, err := NewClient(Config{APIKeyEnv: "DOCRAG_TEST_KEY"})
	require.NoError(t, err)
	assert.Equal(t, 1536, c.Dimension())
	assert.Equal(t, "openai/text-embedding-3-small", c.Name())
}

func TestEmbedTexts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req struct {
			Input      []string `json:"input"`
			Dimensions int      `json:"dimensions"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 4, req.Dimensions)

		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			// reversed, to check that Index decides placement
			j := len(req.Input) - 1 - i
			data[i] = map[string]any{"object": "embedding", "index": j, "embedding": []float32{float32(j), 0, 0, 0}}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data})
	}, 4)

	vecs, err := c.EmbedTexts(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for i, v := range vecs {
		assert.Equal(t, float32(i), v[0])
	}
}

func TestEmbedTexts_ClassifiesErrors(t *testing.T) {
	for _, tt := range []struct {
		status    int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
	} {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"test"}}`))
			}, 0)

			_, err := c.EmbedTexts(context.Background(), []string{"x"})
			require.Error(t, err)
			var re *embedding.RetryableError
			assert.Equal(t, tt.retryable, errors.As(err, &re))
		})
	}
}
