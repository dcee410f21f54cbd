package service

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docrag/internal/answer"
	"docrag/internal/domain"
	"docrag/internal/extract"
	"docrag/internal/llm"
	"docrag/internal/logger"
	"docrag/internal/vectorstore"
)

// Options tunes a RAGService.
type Options struct {
	// MaxTokens is the chunk token budget.
	MaxTokens int
	// LexicalFallback ranks passages by word overlap when the query embeds
	// to the zero vector, which carries no direction to search by.
	LexicalFallback bool
	// LLM, when set, writes answers; otherwise answers are extractive.
	LLM    llm.Client
	Logger *zap.SugaredLogger
}

// IngestReport summarizes one ingestion run.
type IngestReport struct {
	Files         []extract.FileResult
	Documents     int
	Chunks        int
	Rows          int
	BuildID       uuid.UUID
	ChunkFailures []domain.DocumentError
}

// RAGService runs ingestion and retrieval against one index.
type RAGService struct {
	extractor *extract.Extractor
	chunker   domain.Chunker
	embedder  domain.Embedder
	index     *vectorstore.Manager
	answerer  *answer.Answerer
	opts      Options
	log       *zap.SugaredLogger
}

func NewRAGService(extractor *extract.Extractor, chunker domain.Chunker, embedder domain.Embedder, index *vectorstore.Manager, opts Options) *RAGService {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 500
	}
	if opts.Logger == nil {
		opts.Logger = logger.L()
	}
	s := &RAGService{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		opts:      opts,
		log:       opts.Logger,
	}
	s.answerer = answer.New(s, opts.LLM, opts.Logger)
	return s
}

// Index returns the index handle the service reads and writes.
func (s *RAGService) Index() *vectorstore.Manager { return s.index }

// Ingest chunks, embeds and indexes docs, replacing the active index.
// Documents that fail to chunk are reported and skipped.
func (s *RAGService) Ingest(ctx context.Context, docs []domain.Document) (IngestReport, error) {
	if len(docs) == 0 {
		return IngestReport{}, domain.ErrNoDocuments
	}
	defer logger.Timed(s.log, "ingest", "documents", len(docs))()

	chunks, failures := s.chunker.Chunk(ctx, docs, s.opts.MaxTokens)
	for _, f := range failures {
		s.log.Warnw("document skipped", "document", f.DocumentID, "error", f.Err)
	}
	if err := ctx.Err(); err != nil {
		return IngestReport{}, err
	}
	embedded, err := s.embedder.Embed(ctx, chunks)
	if err != nil {
		return IngestReport{}, err
	}
	ix, err := s.index.Build(ctx, embedded)
	if err != nil {
		return IngestReport{}, err
	}
	return IngestReport{
		Documents:     len(docs),
		Chunks:        len(chunks),
		Rows:          ix.Len(),
		BuildID:       ix.BuildID(),
		ChunkFailures: failures,
	}, nil
}

// IngestFolder extracts the supported files in dir and ingests them.
// Files that fail to extract are reported, not fatal.
func (s *RAGService) IngestFolder(ctx context.Context, dir string) (IngestReport, error) {
	docs, files, err := s.extractor.ExtractAll(ctx, dir)
	if err != nil {
		return IngestReport{Files: files}, err
	}
	if len(docs) == 0 {
		return IngestReport{Files: files}, fmt.Errorf("%w in %s", domain.ErrNoDocuments, dir)
	}
	report, err := s.Ingest(ctx, docs)
	report.Files = files
	return report, err
}

// Query returns the topK passages nearest to question.
func (s *RAGService) Query(ctx context.Context, question string, topK int) ([]domain.Hit, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", domain.ErrInvalidInput, topK)
	}
	vec, err := s.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, err
	}
	if s.opts.LexicalFallback && isZero(vec) {
		ix, err := s.index.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		s.log.Debugw("query has no embedding signal, using lexical ranking", "query", question)
		return lexicalSearch(ix, question, topK), nil
	}
	return s.index.Search(ctx, vec, topK)
}

// Ask answers question from the topK nearest passages.
func (s *RAGService) Ask(ctx context.Context, question string, topK int) (answer.Answer, error) {
	return s.answerer.Ask(ctx, question, topK)
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

var unicodeWordRe = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`)

// lexicalSearch ranks rows by Ochiai word overlap with query. Distance is
// 1 - overlap, so hits keep the closest-first order of vector search.
func lexicalSearch(ix *vectorstore.Index, query string, topK int) []domain.Hit {
	qset := toTokenSet(query)
	hits := make([]domain.Hit, 0, ix.Len())
	for row, rec := range ix.Records() {
		hits = append(hits, domain.Hit{RowID: row, Distance: 1 - overlapOchiai(qset, rec.Text), Record: rec})
	}
	slices.SortStableFunc(hits, func(a, b domain.Hit) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return 0
	})
	return hits[:min(topK, len(hits))]
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func overlapOchiai(qset map[string]struct{}, text string) float64 {
	seen := toTokenSet(text)
	if len(qset) == 0 || len(seen) == 0 {
		return 0
	}
	inter := 0
	for t := range seen {
		if _, ok := qset[t]; ok {
			inter++
		}
	}
	// Ochiai coefficient: |A∩B| / sqrt(|A||B|)
	return float64(inter) / math.Sqrt(float64(len(qset))*float64(len(seen)))
}
