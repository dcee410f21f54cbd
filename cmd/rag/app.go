package main

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"docrag/internal/chunker"
	"docrag/internal/config"
	"docrag/internal/domain"
	"docrag/internal/embedding"
	"docrag/internal/embedding/hashing"
	"docrag/internal/embedding/ollama"
	"docrag/internal/embedding/openai"
	"docrag/internal/extract"
	"docrag/internal/llm"
	"docrag/internal/service"
	"docrag/internal/summarizer"
	"docrag/internal/tokenizer"
	"docrag/internal/translate"
	"docrag/internal/vectorstore"
	"docrag/internal/vectorstore/file"
	"docrag/internal/vectorstore/memory"
)

// app holds the components assembled from one config.
type app struct {
	cfg        *config.AppConfig
	log        *zap.SugaredLogger
	svc        *service.RAGService
	llm        llm.Client // nil when no model is configured
	summarizer *summarizer.Summarizer
	translator *translate.Translator
}

func newApp(cfg *config.AppConfig, log *zap.SugaredLogger) (*app, error) {
	tok, err := tokenizer.New(cfg.Chunker.Tokenizer, cfg.Chunker.Encoding)
	if err != nil {
		return nil, fmt.Errorf("tokenizer init failed: %w", err)
	}

	provider, err := newProvider(cfg.Embedder)
	if err != nil {
		return nil, fmt.Errorf("embedder init failed: %w", err)
	}
	emb := embedding.New(provider, embedding.Options{
		BatchSize:         cfg.Embedder.BatchSize,
		Timeout:           time.Duration(cfg.Embedder.TimeoutSecs) * time.Second,
		MaxRetries:        cfg.Embedder.MaxRetries,
		RequestsPerSecond: cfg.Embedder.RequestsPerSecond,
		Logger:            log.Named("embedder"),
	})

	var store vectorstore.Store
	switch cfg.Index.Type {
	case "file":
		fs := file.NewStorage(cfg.Index.Dir, log.Named("index"))
		log.Debugw("using file index", "dir", fs.Dir())
		store = fs
	case "memory":
		store = memory.NewStorage()
	default:
		return nil, fmt.Errorf("unknown index type: %s", cfg.Index.Type)
	}

	a := &app{cfg: cfg, log: log}
	if cfg.LLM.Type == "openai" {
		client, err := llm.NewOpenAI(llm.Config{
			BaseURL:   cfg.LLM.BaseURL,
			APIKeyEnv: cfg.LLM.APIKeyEnv,
			Model:     cfg.LLM.Model,
			Timeout:   time.Duration(cfg.LLM.TimeoutSecs) * time.Second,
			Logger:    log.Named("llm"),
		})
		if err != nil {
			return nil, fmt.Errorf("llm init failed: %w", err)
		}
		a.llm = client
	}

	var model domain.Summarizer
	switch cfg.Summarizer.Type {
	case "frequency":
		model = summarizer.NewFrequencySummarizer()
	case "llm":
		if a.llm == nil {
			return nil, fmt.Errorf("summarizer.type llm requires an llm section")
		}
		model = summarizer.NewLLMSummarizer(a.llm)
	default:
		return nil, fmt.Errorf("unknown summarizer: %s", cfg.Summarizer.Type)
	}
	a.summarizer = summarizer.New(model, cfg.Summarizer.ChunkWords, log.Named("summarizer"))
	a.translator = translate.New(a.llm)

	a.svc = service.NewRAGService(
		extract.New(log.Named("extract")),
		chunker.NewTokenChunker(tok, cfg.Chunker.Workers),
		emb,
		vectorstore.NewManager(store, log.Named("index")),
		service.Options{
			MaxTokens:       cfg.Chunker.MaxTokens,
			LexicalFallback: cfg.Embedder.Type == "hashing",
			LLM:             a.llm,
			Logger:          log,
		},
	)
	return a, nil
}

func newProvider(cfg config.EmbedderConfig) (embedding.Provider, error) {
	switch cfg.Type {
	case "hashing":
		return hashing.NewEmbedder(cfg.Hashing.Dimension), nil
	case "openai":
		client, err := openai.NewClient(openai.Config{
			BaseURL:   cfg.OpenAI.BaseURL,
			APIKeyEnv: cfg.OpenAI.APIKeyEnv,
			Model:     cfg.OpenAI.Model,
			Dimension: cfg.OpenAI.Dimension,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	case "ollama":
		return ollama.NewClient(ollama.Config{
			BaseURL: cfg.Ollama.BaseURL,
			Model:   cfg.Ollama.Model,
		}), nil
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
}
