package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"docrag/internal/domain"
	"docrag/internal/logger"
)

// Provider is a batch text embedding model. EmbedTexts returns one vector per
// input text, in input order.
type Provider interface {
	Name() string
	// Dimension is the vector size, or 0 if only known after the first call.
	Dimension() int
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// RetryableError marks a provider failure as transient. After, when set, is
// the delay the server asked for.
type RetryableError struct {
	Err   error
	After time.Duration
}

func (e *RetryableError) Error() string { return e.Err.Error() }

func (e *RetryableError) Unwrap() error { return e.Err }

// Options bounds the provider calls made by an Embedder.
type Options struct {
	// BatchSize caps the number of texts sent per provider call.
	BatchSize int
	// Timeout applies to each provider call.
	Timeout time.Duration
	// MaxRetries is the number of extra attempts for transient failures.
	// Zero or negative means a single attempt.
	MaxRetries int
	// RequestsPerSecond paces provider calls; 0 disables pacing.
	RequestsPerSecond float64
	Logger            *zap.SugaredLogger
}

// Embedder turns chunks into embedded chunks using a Provider.
type Embedder struct {
	provider Provider
	opts     Options
	limiter  *rate.Limiter
	log      *zap.SugaredLogger
}

var _ domain.Embedder = (*Embedder)(nil)

// New wraps provider with batching, pacing and bounded retry.
func New(provider Provider, opts Options) *Embedder {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 256
	}
	e := &Embedder{provider: provider, opts: opts, log: opts.Logger}
	if e.log == nil {
		e.log = logger.L()
	}
	if opts.RequestsPerSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return e
}

// Name returns the provider name.
func (e *Embedder) Name() string { return e.provider.Name() }

// Embed embeds every chunk. Output i corresponds to input i. If any batch
// fails the whole call fails with ErrEmbeddingFailed and no output.
func (e *Embedder) Embed(ctx context.Context, chunks []domain.Chunk) ([]domain.EmbeddedChunk, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	out := make([]domain.EmbeddedChunk, len(chunks))
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		meta, err := domain.NewMetadata(c)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		out[i] = domain.EmbeddedChunk{Metadata: meta, Text: c.Text}
		texts[i] = c.Text
	}

	defer logger.Timed(e.log, "embedding", "provider", e.provider.Name(), "chunks", len(chunks))()

	dim := e.provider.Dimension()
	for start := 0; start < len(texts); start += e.opts.BatchSize {
		end := min(start+e.opts.BatchSize, len(texts))
		vecs, err := e.call(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("%w: batch %d-%d: %w", domain.ErrEmbeddingFailed, start, end, err)
		}
		for j, v := range vecs {
			if dim == 0 {
				dim = len(v)
			}
			if len(v) != dim {
				return nil, fmt.Errorf("%w: %w: chunk %d has %d values, want %d",
					domain.ErrEmbeddingFailed, domain.ErrDimensionMismatch, start+j, len(v), dim)
			}
			out[start+j].Vector = v
		}
	}
	return out, nil
}

// EmbedQuery embeds a single query string with the same provider.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	vecs, err := e.call(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("%w: query: %w", domain.ErrEmbeddingFailed, err)
	}
	if dim := e.provider.Dimension(); dim > 0 && len(vecs[0]) != dim {
		return nil, fmt.Errorf("%w: query vector has %d values, want %d", domain.ErrDimensionMismatch, len(vecs[0]), dim)
	}
	return vecs[0], nil
}

// call runs one provider request under the timeout, pacing and retry policy
// and checks that it returned one vector per text.
func (e *Embedder) call(ctx context.Context, texts []string) ([][]float32, error) {
	b := &hintedBackOff{BackOff: e.newBackOff()}
	var vecs [][]float32
	attempt := 0
	op := func() error {
		attempt++
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}
		callCtx, cancel := e.withTimeout(ctx)
		defer cancel()
		out, err := e.provider.EmbedTexts(callCtx, texts)
		if err != nil {
			var re *RetryableError
			switch {
			case ctx.Err() != nil:
				return backoff.Permanent(ctx.Err())
			case errors.As(err, &re):
				b.hint = re.After
				return err
			case errors.Is(err, context.DeadlineExceeded):
				return err
			default:
				return backoff.Permanent(err)
			}
		}
		if len(out) != len(texts) {
			return backoff.Permanent(fmt.Errorf("provider returned %d vectors for %d texts", len(out), len(texts)))
		}
		vecs = out
		return nil
	}
	notify := func(err error, wait time.Duration) {
		e.log.Warnw("embedding call failed, retrying", "provider", e.provider.Name(), "attempt", attempt, "wait", wait, "error", err)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, err
	}
	return vecs, nil
}

func (e *Embedder) newBackOff() backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 200 * time.Millisecond
	exp.MaxInterval = 5 * time.Second
	exp.MaxElapsedTime = 0
	return backoff.WithMaxRetries(exp, uint64(max(e.opts.MaxRetries, 0)))
}

func (e *Embedder) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.opts.Timeout)
}

// hintedBackOff prefers a server-provided delay over the wrapped policy's
// delay for the next attempt, while still counting it as a retry.
type hintedBackOff struct {
	backoff.BackOff
	hint time.Duration
}

func (h *hintedBackOff) NextBackOff() time.Duration {
	next := h.BackOff.NextBackOff()
	if next == backoff.Stop || h.hint <= 0 {
		return next
	}
	next, h.hint = h.hint, 0
	return next
}
