package domain

import "errors"

// Sentinel errors shared across the pipeline. Callers wrap them with %w and
// test with errors.Is.
var (
	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrCorruptDocument indicates a document whose text cannot be tokenized.
	ErrCorruptDocument = errors.New("corrupt document")

	// ErrExtractionFailed indicates a file could not be converted to text.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrUnsupportedFormat indicates a file type the extractor cannot read.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrEmbeddingFailed indicates the embedding batch failed as a whole.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrIndexNotFound indicates no persisted index exists, or one of its
	// two artifacts is missing.
	ErrIndexNotFound = errors.New("index not found")

	// ErrIndexCorrupt indicates the vector and metadata artifacts disagree.
	ErrIndexCorrupt = errors.New("index corrupt")

	// ErrDimensionMismatch indicates vectors of different sizes were mixed.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrNoDocuments indicates an ingestion run found nothing to index.
	ErrNoDocuments = errors.New("no documents")

	// ErrLLMUnavailable indicates no language model is configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")
)
