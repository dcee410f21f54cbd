package summarizer

import (
	"context"
	"fmt"

	"docrag/internal/llm"
)

const summarizeSystem = "You are a precise summarization assistant. Reply with the summary only."

// LLMSummarizer is an abstractive summarizer backed by a chat model.
type LLMSummarizer struct {
	client llm.Client
}

func NewLLMSummarizer(client llm.Client) *LLMSummarizer {
	return &LLMSummarizer{client: client}
}

func (s *LLMSummarizer) Name() string { return "llm/" + s.client.Name() }

func (s *LLMSummarizer) Summarize(ctx context.Context, text string, maxLength, minLength int) (string, error) {
	prompt := fmt.Sprintf("Summarize the following text in no more than %d and no fewer than %d words.\n\n%s",
		maxLength, minLength, text)
	return s.client.Complete(ctx, summarizeSystem, prompt)
}
