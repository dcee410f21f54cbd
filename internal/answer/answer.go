package answer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"docrag/internal/domain"
	"docrag/internal/llm"
	"docrag/internal/logger"
)

const answerSystem = "You answer questions using only the numbered context passages provided. " +
	"Cite passages by their number in square brackets. " +
	"If the context does not contain the answer, say that you do not know."

// Retriever finds the passages nearest to a question.
type Retriever interface {
	Query(ctx context.Context, question string, topK int) ([]domain.Hit, error)
}

// Answer is a reply to a question together with the passages it used.
type Answer struct {
	Text    string
	Sources []domain.Hit
	// Extractive is set when the text is the top passage rather than a
	// model-written answer.
	Extractive bool
}

// Answerer answers questions over the indexed corpus.
type Answerer struct {
	retriever Retriever
	client    llm.Client
	log       *zap.SugaredLogger
}

// New returns an answerer. With a nil client answers are extractive.
func New(retriever Retriever, client llm.Client, log *zap.SugaredLogger) *Answerer {
	if log == nil {
		log = logger.L()
	}
	return &Answerer{retriever: retriever, client: client, log: log}
}

// Ask retrieves topK passages and answers question from them.
func (a *Answerer) Ask(ctx context.Context, question string, topK int) (Answer, error) {
	if strings.TrimSpace(question) == "" {
		return Answer{}, fmt.Errorf("%w: empty question", domain.ErrInvalidInput)
	}
	hits, err := a.retriever.Query(ctx, question, topK)
	if err != nil {
		return Answer{}, err
	}
	if len(hits) == 0 {
		return Answer{Text: "The index holds no passages to answer from."}, nil
	}
	if a.client == nil {
		return Answer{Text: hits[0].Record.Text, Sources: hits, Extractive: true}, nil
	}

	out, err := a.client.Complete(ctx, answerSystem, Prompt(question, hits))
	if err != nil {
		return Answer{}, fmt.Errorf("answer: %w", err)
	}
	a.log.Debugw("answered", "question", question, "passages", len(hits))
	return Answer{Text: out, Sources: hits}, nil
}

// Prompt renders the question and its context passages.
func Prompt(question string, hits []domain.Hit) string {
	var sb strings.Builder
	sb.WriteString("Context:\n")
	for i, h := range hits {
		m := h.Record.Metadata
		fmt.Fprintf(&sb, "[%d] (source: %s, page: %s, chunk: %d)\n%s\n\n", i+1, m.SourceID, m.Page, m.Sequence, h.Record.Text)
	}
	sb.WriteString("Question: ")
	sb.WriteString(question)
	return sb.String()
}
