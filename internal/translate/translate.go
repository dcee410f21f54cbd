package translate

import (
	"context"
	"fmt"
	"strings"

	"docrag/internal/domain"
	"docrag/internal/llm"
)

// Auto lets the model detect the source language.
const Auto = "auto"

const translateSystem = "You are a professional translator. Reply with the translation only, preserving meaning and tone."

// Translator translates text with a chat model.
type Translator struct {
	client llm.Client
}

// New returns a translator. A nil client makes every translation that
// needs a model fail with domain.ErrLLMUnavailable.
func New(client llm.Client) *Translator {
	return &Translator{client: client}
}

// Translate converts text from src to target. Languages are ISO 639-1 codes;
// src may be Auto. Text already in the target language is returned as is.
func (t *Translator) Translate(ctx context.Context, text, src, target string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty text", domain.ErrInvalidInput)
	}
	if target == "" || target == Auto {
		return "", fmt.Errorf("%w: target language %q", domain.ErrInvalidInput, target)
	}
	if src == "" {
		src = Auto
	}
	if strings.EqualFold(src, target) {
		return text, nil
	}
	if t.client == nil {
		return "", domain.ErrLLMUnavailable
	}

	from := "the source language"
	if src != Auto {
		from = fmt.Sprintf("language %q", src)
	}
	prompt := fmt.Sprintf("Translate the following text from %s to language %q.\n\n%s", from, target, text)
	out, err := t.client.Complete(ctx, translateSystem, prompt)
	if err != nil {
		return "", fmt.Errorf("translate %s->%s: %w", src, target, err)
	}
	return out, nil
}
