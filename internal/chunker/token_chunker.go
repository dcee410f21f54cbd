package chunker

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"docrag/internal/domain"
	"docrag/internal/tokenizer"
)

// TokenChunker splits document text into consecutive, non-overlapping
// windows of at most maxTokens tokens.
type TokenChunker struct {
	tok     tokenizer.Tokenizer
	workers int
}

var _ domain.Chunker = (*TokenChunker)(nil)

// NewTokenChunker returns a chunker over tok that chunks up to workers
// documents concurrently.
func NewTokenChunker(tok tokenizer.Tokenizer, workers int) *TokenChunker {
	if workers <= 0 {
		workers = 1
	}
	return &TokenChunker{tok: tok, workers: workers}
}

// Chunk splits every document. Output keeps document order, then sequence
// order. A document that fails is reported and contributes no chunks; the
// others are unaffected.
func (c *TokenChunker) Chunk(ctx context.Context, docs []domain.Document, maxTokens int) ([]domain.Chunk, []domain.DocumentError) {
	perDoc := make([][]domain.Chunk, len(docs))
	errs := make([]error, len(docs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i := range docs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			perDoc[i], errs[i] = c.chunkOne(docs[i], maxTokens)
			return nil
		})
	}
	_ = g.Wait()

	var (
		chunks   []domain.Chunk
		failures []domain.DocumentError
	)
	for i := range docs {
		if errs[i] != nil {
			failures = append(failures, domain.DocumentError{DocumentID: docs[i].ID, Err: errs[i]})
			continue
		}
		chunks = append(chunks, perDoc[i]...)
	}
	return chunks, failures
}

func (c *TokenChunker) chunkOne(doc domain.Document, maxTokens int) (chunks []domain.Chunk, err error) {
	if maxTokens <= 0 {
		return nil, fmt.Errorf("%w: max tokens must be positive, got %d", domain.ErrInvalidInput, maxTokens)
	}
	if doc.Text == "" {
		return nil, nil
	}
	if !utf8.ValidString(doc.Text) {
		return nil, fmt.Errorf("%w: text is not valid UTF-8", domain.ErrCorruptDocument)
	}
	defer func() {
		if r := recover(); r != nil {
			chunks, err = nil, fmt.Errorf("%w: tokenizer: %v", domain.ErrCorruptDocument, r)
		}
	}()

	tokens := c.tok.Encode(doc.Text)
	chunks = make([]domain.Chunk, 0, (len(tokens)+maxTokens-1)/maxTokens)
	for start, seq := 0, 1; start < len(tokens); start, seq = start+maxTokens, seq+1 {
		end := min(start+maxTokens, len(tokens))
		chunks = append(chunks, domain.Chunk{
			SourceID: doc.ID,
			Page:     doc.Page,
			Sequence: seq,
			Text:     windowText(c.tok.Decode(tokens[start:end])),
		})
	}
	return chunks, nil
}

// windowText makes a decoded window valid UTF-8. Byte-level encodings such
// as cl100k_base can end a window inside a multibyte character; the partial
// bytes become U+FFFD so the stored text is exactly what gets embedded.
func windowText(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "\uFFFD")
}
