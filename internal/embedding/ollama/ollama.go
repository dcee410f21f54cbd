package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"docrag/internal/embedding"
)

// Client is an Ollama embeddings client implementing embedding.Provider.
// It talks to the batch /api/embed endpoint.
type Client struct {
	baseURL   string
	model     string
	dimension atomic.Int64
	client    *http.Client
}

// Config configures the Ollama embeddings client.
type Config struct {
	BaseURL string
	Model   string
	// HTTPClient overrides the default client; per-call deadlines come from ctx.
	HTTPClient *http.Client
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "all-minilm"
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		client:  hc,
	}
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "ollama/" + c.model }

// Dimension returns the dimensionality learned from the first response, or 0.
func (c *Client) Dimension() int { return int(c.dimension.Load()) }

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// EmbedTexts returns one vector per text. Rate limiting, server errors and
// transport failures come back as *embedding.RetryableError.
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	data, err := json.Marshal(embedRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embed", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &embedding.RetryableError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, &embedding.RetryableError{
			Err:   fmt.Errorf("ollama embeddings failed: %s", resp.Status),
			After: retryAfter(resp.Header.Get("Retry-After")),
		}
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ollama embeddings failed: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &embedding.RetryableError{Err: err}
	}
	vecs, err := decode(payload)
	if err != nil {
		return nil, err
	}
	if len(vecs) > 0 {
		c.dimension.CompareAndSwap(0, int64(len(vecs[0])))
	}
	return vecs, nil
}

// decode accepts the native {"embeddings": [...]} shape and the
// OpenAI-compatible {"data": [{"embedding": [...]}]} shape.
func decode(payload []byte) ([][]float32, error) {
	var native struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.Unmarshal(payload, &native); err == nil && len(native.Embeddings) > 0 {
		return native.Embeddings, nil
	}
	var compat struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &compat); err != nil {
		return nil, fmt.Errorf("decode embeddings: %w", err)
	}
	if len(compat.Data) == 0 {
		return nil, errors.New("no embedding returned")
	}
	out := make([][]float32, len(compat.Data))
	for _, d := range compat.Data {
		if d.Index < 0 || d.Index >= len(out) || out[d.Index] != nil {
			return nil, fmt.Errorf("embedding index %d out of range or repeated", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date.
func retryAfter(h string) time.Duration {
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(h); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
