package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/domain"
)

// fakeProvider embeds text as [len(text), index-in-batch] and can fail on demand.
type fakeProvider struct {
	mu      sync.Mutex
	dim     int
	calls   [][]string
	failFor int
	failErr error
	short   bool
}

func (f *fakeProvider) Name() string   { return "fake" }
func (f *fakeProvider) Dimension() int { return f.dim }

func (f *fakeProvider) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string(nil), texts...))
	if f.failFor > 0 {
		f.failFor--
		return nil, f.failErr
	}
	n := len(texts)
	if f.short {
		n--
	}
	out := make([][]float32, n)
	for i := 0; i < n; i++ {
		out[i] = []float32{float32(len(texts[i])), float32(i)}
	}
	return out, nil
}

func chunksOf(n int) []domain.Chunk {
	out := make([]domain.Chunk, n)
	for i := range out {
		out[i] = domain.Chunk{SourceID: "doc", Sequence: i + 1, Text: fmt.Sprintf("chunk %d %s", i, strings.Repeat("x", i))}
	}
	return out
}

func TestEmbed_PreservesOrderAndMetadata(t *testing.T) {
	p := &fakeProvider{dim: 2}
	e := New(p, Options{BatchSize: 3})

	in := chunksOf(8)
	in[2].Page = 4
	out, err := e.Embed(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, out, len(in))

	for i := range in {
		assert.Equal(t, in[i].Text, out[i].Text)
		assert.Equal(t, float32(len(in[i].Text)), out[i].Vector[0])
		assert.Equal(t, in[i].Sequence, out[i].Metadata.Sequence)
	}
	assert.Equal(t, "4", out[2].Metadata.Page)
	assert.Equal(t, domain.Unknown, out[0].Metadata.Page)

	require.Len(t, p.calls, 3)
	assert.Len(t, p.calls[0], 3)
	assert.Len(t, p.calls[2], 2)
}

func TestEmbed_Empty(t *testing.T) {
	p := &fakeProvider{dim: 2}
	out, err := New(p, Options{}).Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Empty(t, p.calls)
}

func TestEmbed_WholeBatchFailure(t *testing.T) {
	boom := errors.New("capacity exceeded")
	p := &fakeProvider{dim: 2, failFor: 1, failErr: boom}
	out, err := New(p, Options{BatchSize: 100, MaxRetries: 3}).Embed(context.Background(), chunksOf(4))

	assert.Nil(t, out)
	assert.ErrorIs(t, err, domain.ErrEmbeddingFailed)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, p.calls, 1, "permanent errors are not retried")
}

func TestEmbed_RetriesTransientFailure(t *testing.T) {
	p := &fakeProvider{dim: 2, failFor: 2, failErr: &RetryableError{Err: errors.New("429"), After: time.Millisecond}}
	out, err := New(p, Options{MaxRetries: 2}).Embed(context.Background(), chunksOf(2))

	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Len(t, p.calls, 3)
}

func TestEmbed_RetryBudgetExhausted(t *testing.T) {
	p := &fakeProvider{dim: 2, failFor: 5, failErr: &RetryableError{Err: errors.New("503"), After: time.Millisecond}}
	_, err := New(p, Options{MaxRetries: 1}).Embed(context.Background(), chunksOf(2))

	assert.ErrorIs(t, err, domain.ErrEmbeddingFailed)
	assert.Len(t, p.calls, 2)
}

func TestEmbed_NegativeRetriesMeansSingleAttempt(t *testing.T) {
	p := &fakeProvider{dim: 2, failFor: 5, failErr: &RetryableError{Err: errors.New("503"), After: time.Millisecond}}
	_, err := New(p, Options{MaxRetries: -1}).Embed(context.Background(), chunksOf(2))

	assert.ErrorIs(t, err, domain.ErrEmbeddingFailed)
	assert.Len(t, p.calls, 1)
}

func TestEmbed_ShortResponseFails(t *testing.T) {
	p := &fakeProvider{dim: 2, short: true}
	_, err := New(p, Options{}).Embed(context.Background(), chunksOf(3))
	assert.ErrorIs(t, err, domain.ErrEmbeddingFailed)
}

func TestEmbed_DimensionMismatch(t *testing.T) {
	p := &fakeProvider{dim: 3}
	_, err := New(p, Options{}).Embed(context.Background(), chunksOf(2))
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestEmbed_RejectsInvalidSequence(t *testing.T) {
	p := &fakeProvider{dim: 2}
	_, err := New(p, Options{}).Embed(context.Background(), []domain.Chunk{{SourceID: "a", Text: "x"}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Empty(t, p.calls)
}

func TestEmbedQuery(t *testing.T) {
	p := &fakeProvider{dim: 2}
	e := New(p, Options{})

	v, err := e.EmbedQuery(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 0}, v)

	_, err = e.EmbedQuery(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestEmbed_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &fakeProvider{dim: 2, failFor: 1, failErr: context.Canceled}
	_, err := New(p, Options{MaxRetries: 5}).Embed(ctx, chunksOf(1))
	assert.ErrorIs(t, err, domain.ErrEmbeddingFailed)
	assert.LessOrEqual(t, len(p.calls), 1)
}
