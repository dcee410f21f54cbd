package domain

import (
	"context"
	"fmt"
	"strconv"
)

// Unknown is the sentinel stored for metadata fields the source could not provide.
const Unknown = "unknown"

// Document is the text of one extracted unit (a file, a PDF page, a sheet).
type Document struct {
	ID   string
	Text string
	// Page is the 1-based page or sheet position inside the source file, 0 if unknown.
	Page int
}

// Chunk is a bounded-token slice of a document, tagged with its source and order.
type Chunk struct {
	SourceID string
	Page     int
	Sequence int
	Text     string
}

// DocumentError reports a document that could not be chunked.
type DocumentError struct {
	DocumentID string
	Err        error
}

func (e DocumentError) Error() string {
	return fmt.Sprintf("document %s: %v", e.DocumentID, e.Err)
}

func (e DocumentError) Unwrap() error { return e.Err }

// Metadata is the provenance stored next to every indexed vector.
type Metadata struct {
	SourceID string `json:"source_id"`
	Page     string `json:"page"`
	Sequence int    `json:"sequence"`
}

// NewMetadata builds the metadata for a chunk. An empty source id or a zero
// page become Unknown; a sequence below 1 is rejected.
func NewMetadata(c Chunk) (Metadata, error) {
	if c.Sequence < 1 {
		return Metadata{}, fmt.Errorf("%w: chunk sequence %d < 1", ErrInvalidInput, c.Sequence)
	}
	m := Metadata{SourceID: c.SourceID, Page: Unknown, Sequence: c.Sequence}
	if m.SourceID == "" {
		m.SourceID = Unknown
	}
	if c.Page > 0 {
		m.Page = strconv.Itoa(c.Page)
	}
	return m, nil
}

// EmbeddedChunk is a chunk together with its vector.
type EmbeddedChunk struct {
	Vector   []float32
	Metadata Metadata
	Text     string
}

// Record is what the index keeps for every row.
type Record struct {
	Metadata Metadata `json:"metadata"`
	Text     string   `json:"text"`
}

// Hit is one search result.
type Hit struct {
	RowID    int
	Distance float64
	Record   Record
}

// Chunker splits documents into token-bounded chunks.
type Chunker interface {
	Chunk(ctx context.Context, docs []Document, maxTokens int) ([]Chunk, []DocumentError)
}

// Embedder converts chunks and queries into vectors.
type Embedder interface {
	Embed(ctx context.Context, chunks []Chunk) ([]EmbeddedChunk, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Summarizer is a text-to-text model that shortens its input.
type Summarizer interface {
	Summarize(ctx context.Context, text string, maxLength, minLength int) (string, error)
}
