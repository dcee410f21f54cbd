package summarizer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"docrag/internal/domain"
	"docrag/internal/logger"
)

// Kind says how a part of a summary was produced.
type Kind int

const (
	// Summarized parts come from the model, or are input short enough to
	// need no summarizing.
	Summarized Kind = iota
	// Fallback parts are original text kept because the model failed.
	Fallback
)

func (k Kind) String() string {
	if k == Fallback {
		return "fallback"
	}
	return "summarized"
}

// Part is one contiguous piece of a summary.
type Part struct {
	Kind  Kind
	Text  string
	Cause error // set for Fallback parts
}

// Summary is the result of summarizing a text, possibly piecewise.
type Summary struct {
	Parts []Part
}

// Text joins the parts with single spaces.
func (s Summary) Text() string {
	texts := make([]string, len(s.Parts))
	for i, p := range s.Parts {
		texts[i] = p.Text
	}
	return strings.Join(texts, " ")
}

// Degraded reports whether any part fell back to the original text.
func (s Summary) Degraded() bool {
	for _, p := range s.Parts {
		if p.Kind == Fallback {
			return true
		}
	}
	return false
}

// Summarizer applies a model to texts of any length. Texts longer than
// ChunkWords words are summarized piecewise.
type Summarizer struct {
	model      domain.Summarizer
	chunkWords int
	log        *zap.SugaredLogger
}

// New wraps model. chunkWords <= 0 means 1000.
func New(model domain.Summarizer, chunkWords int, log *zap.SugaredLogger) *Summarizer {
	if chunkWords <= 0 {
		chunkWords = 1000
	}
	if log == nil {
		log = logger.L()
	}
	return &Summarizer{model: model, chunkWords: chunkWords, log: log}
}

// Summarize shortens text. Model failures never fail the call: the affected
// text is kept as a Fallback part. Only invalid lengths or a done context
// return an error.
func (s *Summarizer) Summarize(ctx context.Context, text string, maxLength, minLength int) (Summary, error) {
	if maxLength <= 0 || minLength < 0 || minLength > maxLength {
		return Summary{}, fmt.Errorf("%w: max_length %d, min_length %d", domain.ErrInvalidInput, maxLength, minLength)
	}
	words := strings.Fields(text)
	if len(words) <= minLength {
		return Summary{Parts: []Part{{Kind: Summarized, Text: text}}}, nil
	}

	defer logger.Timed(s.log, "summarization", "words", len(words))()
	if len(words) <= s.chunkWords {
		part, err := s.summarizeOne(ctx, text, maxLength, minLength)
		if err != nil {
			return Summary{}, err
		}
		return Summary{Parts: []Part{part}}, nil
	}

	var sum Summary
	for start := 0; start < len(words); start += s.chunkWords {
		chunk := words[start:min(start+s.chunkWords, len(words))]
		chunkText := strings.Join(chunk, " ")
		if len(chunk) < minLength {
			sum.Parts = append(sum.Parts, Part{Kind: Summarized, Text: chunkText})
			continue
		}
		part, err := s.summarizeOne(ctx, chunkText, maxLength, minLength)
		if err != nil {
			return Summary{}, err
		}
		sum.Parts = append(sum.Parts, part)
	}
	return sum, nil
}

func (s *Summarizer) summarizeOne(ctx context.Context, text string, maxLength, minLength int) (Part, error) {
	out, err := s.model.Summarize(ctx, text, maxLength, minLength)
	if err == nil {
		return Part{Kind: Summarized, Text: out}, nil
	}
	if ctx.Err() != nil {
		return Part{}, ctx.Err()
	}
	s.log.Warnw("summarization failed, keeping original text", "words", len(strings.Fields(text)), "error", err)
	return Part{Kind: Fallback, Text: text, Cause: err}, nil
}
