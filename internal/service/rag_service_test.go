package service

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"docrag/internal/chunker"
	"docrag/internal/domain"
	"docrag/internal/embedding"
	"docrag/internal/embedding/hashing"
	"docrag/internal/extract"
	"docrag/internal/tokenizer"
	"docrag/internal/vectorstore"
	"docrag/internal/vectorstore/file"
	"docrag/internal/vectorstore/memory"
)

func words(prefix string, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return strings.Join(parts, " ")
}

func newService(t *testing.T, store vectorstore.Store, opts Options) *RAGService {
	t.Helper()
	log := zap.NewNop().Sugar()
	opts.Logger = log
	emb := embedding.New(hashing.NewEmbedder(256), embedding.Options{Logger: log})
	return NewRAGService(
		extract.New(log),
		chunker.NewTokenChunker(tokenizer.NewWord(), 2),
		emb,
		vectorstore.NewManager(store, log),
		opts,
	)
}

func TestIngestAndQuery_EndToEnd(t *testing.T) {
	tok := tokenizer.NewWord()
	s := newService(t, memory.NewStorage(), Options{MaxTokens: 500})
	doc1 := domain.Document{ID: "doc-1", Text: words("alpha", 1200)}
	doc2 := domain.Document{ID: "doc-2", Text: words("beta", 300)}

	chunks, failures := chunker.NewTokenChunker(tok, 1).Chunk(context.Background(), []domain.Document{doc1, doc2}, 500)
	require.Empty(t, failures)
	require.Len(t, chunks, 4)
	var lens, seqs []int
	for _, c := range chunks {
		lens = append(lens, len(tok.Encode(c.Text)))
		seqs = append(seqs, c.Sequence)
	}
	assert.Equal(t, []int{500, 500, 200, 300}, lens)
	assert.Equal(t, []int{1, 2, 3, 1}, seqs)

	report, err := s.Ingest(context.Background(), []domain.Document{doc1, doc2})
	require.NoError(t, err)
	assert.Equal(t, 4, report.Chunks)
	assert.Equal(t, 4, report.Rows)
	assert.Equal(t, s.Index().Current().BuildID(), report.BuildID)

	hits, err := s.Query(context.Background(), chunks[3].Text, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "doc-2", hits[0].Record.Metadata.SourceID)
	assert.Equal(t, 3, hits[0].RowID)
	assert.InDelta(t, 0, hits[0].Distance, 1e-6)

	hits, err = s.Query(context.Background(), chunks[1].Text, 10)
	require.NoError(t, err)
	require.Len(t, hits, 4)
	assert.Equal(t, "doc-1", hits[0].Record.Metadata.SourceID)
	assert.Equal(t, 2, hits[0].Record.Metadata.Sequence)
}

func TestIngest_NoDocuments(t *testing.T) {
	s := newService(t, memory.NewStorage(), Options{})
	_, err := s.Ingest(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrNoDocuments)
}

func TestIngest_ReportsChunkFailures(t *testing.T) {
	s := newService(t, memory.NewStorage(), Options{MaxTokens: 10})
	report, err := s.Ingest(context.Background(), []domain.Document{
		{ID: "ok", Text: "vector search over passages"},
		{ID: "bad", Text: "broken \xff bytes"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Rows)
	require.Len(t, report.ChunkFailures, 1)
	assert.Equal(t, "bad", report.ChunkFailures[0].DocumentID)
}

func TestQuery_BeforeIngest(t *testing.T) {
	s := newService(t, memory.NewStorage(), Options{})
	_, err := s.Query(context.Background(), "anything", 3)
	assert.ErrorIs(t, err, domain.ErrIndexNotFound)

	_, err = s.Query(context.Background(), "anything", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIngestFolder_PersistsAndReloads(t *testing.T) {
	data := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(data, "cities.csv"),
		[]byte("city,country\nParis,France\nLima,Peru\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(data, "legacy.xls"), []byte{1, 2, 3}, 0o644))

	indexDir := filepath.Join(t.TempDir(), "vector_db")
	s := newService(t, file.NewStorage(indexDir, zap.NewNop().Sugar()), Options{MaxTokens: 50})

	report, err := s.IngestFolder(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Documents)
	require.Len(t, report.Files, 2)
	assert.ErrorIs(t, report.Files[1].Err, domain.ErrUnsupportedFormat)

	// a fresh process sees the persisted index
	fresh := newService(t, file.NewStorage(indexDir, zap.NewNop().Sugar()), Options{})
	hits, err := fresh.Query(context.Background(), "Paris | France\nLima | Peru", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "cities.csv", hits[0].Record.Metadata.SourceID)
	assert.Equal(t, "1", hits[0].Record.Metadata.Page)
}

func TestIngestFolder_Empty(t *testing.T) {
	s := newService(t, memory.NewStorage(), Options{})
	_, err := s.IngestFolder(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, domain.ErrNoDocuments)
}

func TestQuery_LexicalFallback(t *testing.T) {
	s := newService(t, memory.NewStorage(), Options{MaxTokens: 100, LexicalFallback: true})
	_, err := s.Ingest(context.Background(), []domain.Document{
		{ID: "a", Text: "cats sleep all day"},
		{ID: "b", Text: "the dogs and the cats and the birds"},
	})
	require.NoError(t, err)

	// only stopwords, so the hashing embedder yields the zero vector
	hits, err := s.Query(context.Background(), "the and", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "b", hits[0].Record.Metadata.SourceID)
	assert.Less(t, hits[0].Distance, hits[1].Distance)
}

func TestAsk_Extractive(t *testing.T) {
	s := newService(t, memory.NewStorage(), Options{MaxTokens: 100})
	_, err := s.Ingest(context.Background(), []domain.Document{
		{ID: "cv", Text: "Dr. X researches cross-lingual language models"},
		{ID: "menu", Text: "Soup of the day is tomato"},
	})
	require.NoError(t, err)

	ans, err := s.Ask(context.Background(), "cross-lingual language models", 1)
	require.NoError(t, err)
	assert.True(t, ans.Extractive)
	assert.Equal(t, "cv", ans.Sources[0].Record.Metadata.SourceID)
}

func TestOverlapOchiai(t *testing.T) {
	q := toTokenSet("red apple")
	assert.InDelta(t, 1.0, overlapOchiai(q, "Apple red"), 1e-9)
	assert.InDelta(t, 1/math.Sqrt(8), overlapOchiai(q, "a red fox runs"), 1e-9)
	assert.Zero(t, overlapOchiai(q, ""))
}
