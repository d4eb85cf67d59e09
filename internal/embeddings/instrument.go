package embeddings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// instrumented wraps a Provider with tracing, metrics and output checks.
// Every vector it returns is unit length and has the provider's dimension.
type instrumented struct {
	inner   Provider
	logger  *zap.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// Instrument wraps p. Wrapping an already instrumented provider is a no-op.
func Instrument(p Provider, logger *zap.Logger) Provider {
	if _, ok := p.(*instrumented); ok {
		return p
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &instrumented{
		inner:   p,
		logger:  logger.Named("embeddings"),
		metrics: NewMetrics(logger),
		tracer:  otel.Tracer(instrumentationName),
	}
}

func (p *instrumented) EmbedDocuments(ctx context.Context, texts []string) (_ [][]float32, err error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}

	ctx, span := p.tracer.Start(ctx, "embeddings.EmbedDocuments", trace.WithAttributes(
		attribute.String("embedding.model", p.inner.Model()),
		attribute.Int("embedding.batch_size", len(texts)),
	))
	start := time.Now()
	defer func() { p.finish(ctx, span, "embed_documents", start, len(texts), err) }()

	vectors, err := p.inner.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, p.wrap(ctx, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d vectors, got %d", ErrEmbeddingFailed, len(texts), len(vectors))
	}
	for i, v := range vectors {
		if err := p.check(v); err != nil {
			return nil, fmt.Errorf("vector %d: %w", i, err)
		}
		Normalize(v)
	}
	return vectors, nil
}

func (p *instrumented) EmbedQuery(ctx context.Context, text string) (_ []float32, err error) {
	ctx, span := p.tracer.Start(ctx, "embeddings.EmbedQuery", trace.WithAttributes(
		attribute.String("embedding.model", p.inner.Model()),
	))
	start := time.Now()
	defer func() { p.finish(ctx, span, "embed_query", start, 1, err) }()

	v, err := p.inner.EmbedQuery(ctx, text)
	if err != nil {
		return nil, p.wrap(ctx, err)
	}
	if err := p.check(v); err != nil {
		return nil, err
	}
	return Normalize(v), nil
}

func (p *instrumented) Dimension() int { return p.inner.Dimension() }

func (p *instrumented) Model() string { return p.inner.Model() }

func (p *instrumented) Close() error { return p.inner.Close() }

func (p *instrumented) check(v []float32) error {
	if want := p.inner.Dimension(); len(v) != want {
		return fmt.Errorf("%w: expected dimension %d, got %d", ErrEmbeddingFailed, want, len(v))
	}
	return nil
}

// wrap marks provider failures as ErrEmbeddingFailed. Context errors pass
// through so callers can tell cancellation from failure.
func (p *instrumented) wrap(ctx context.Context, err error) error {
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, ErrEmbeddingFailed), errors.Is(err, ErrEmptyInput):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
}

func (p *instrumented) finish(ctx context.Context, span trace.Span, op string, start time.Time, n int, err error) {
	elapsed := time.Since(start)
	p.metrics.RecordGeneration(ctx, p.inner.Model(), op, elapsed, n, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Warn("embedding failed",
			zap.String("operation", op),
			zap.Int("texts", n),
			zap.Error(err))
	} else {
		p.logger.Debug("embedded",
			zap.String("operation", op),
			zap.Int("texts", n),
			zap.Duration("duration", elapsed))
	}
	span.End()
}
