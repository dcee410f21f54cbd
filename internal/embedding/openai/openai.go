package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"docrag/internal/embedding"
)

// Client embeds text through an OpenAI-compatible embeddings API.
type Client struct {
	client    *openai.Client
	model     string
	dimension int
}

// Config configures the OpenAI embeddings client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	// Dimension requests shortened vectors from models that support it; 0
	// keeps the model default (1536 for text-embedding-3-small).
	Dimension  int
	HTTPClient *http.Client
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.SmallEmbedding3)
	}
	oc := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}

	dim := cfg.Dimension
	if dim == 0 {
		switch openai.EmbeddingModel(cfg.Model) {
		case openai.SmallEmbedding3, openai.AdaEmbeddingV2:
			dim = 1536
		case openai.LargeEmbedding3:
			dim = 3072
		}
	}
	return &Client{
		client:    openai.NewClientWithConfig(oc),
		model:     cfg.Model,
		dimension: dim,
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai/" + c.model }

// Dimension returns the configured vector size, or 0 for unknown models.
func (c *Client) Dimension() int { return c.dimension }

// EmbedTexts sends texts as a single embeddings request.
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	req := openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.model),
	}
	if c.dimension > 0 && openai.EmbeddingModel(c.model) != openai.AdaEmbeddingV2 {
		req.Dimensions = c.dimension
	}
	resp, err := c.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding data returned from API")
	}
	out := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) || out[d.Index] != nil {
			return nil, fmt.Errorf("embedding index %d out of range or repeated", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// classify marks throttling and server-side failures as retryable.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && transient(apiErr.HTTPStatusCode) {
		return &embedding.RetryableError{Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && transient(reqErr.HTTPStatusCode) {
		return &embedding.RetryableError{Err: err}
	}
	return err
}

func transient(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}
