// Package retrieval embeds questions, finds the nearest success criteria in
// the live index and decides whether the best match is close enough to
// answer from.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specrag/internal/chunk"
	"github.com/fyrsmithlabs/specrag/internal/logging"
	"github.com/fyrsmithlabs/specrag/internal/vectorstore"
)

var tracer = otel.Tracer("github.com/fyrsmithlabs/specrag/internal/retrieval")

var (
	// ErrInvalidTopK is returned for k < 1.
	ErrInvalidTopK = errors.New("top k must be positive")

	// ErrNoIndex is returned when no index has been loaded.
	ErrNoIndex = errors.New("no index loaded")
)

// Result is one ranked match. Distance is cosine distance; lower is closer.
type Result struct {
	ID       string            `json:"id"`
	Distance float64           `json:"distance"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// Chunk rebuilds the chunk the result was indexed from.
func (r Result) Chunk() chunk.Chunk {
	return chunk.FromMetadata(r.ID, r.Text, r.Metadata)
}

// Retriever answers k-nearest-neighbor queries against the index held by a
// Handle.
type Retriever struct {
	handle   *vectorstore.Handle
	embedder vectorstore.Embedder
	logger   *logging.Logger
}

// NewRetriever creates a Retriever. If the handle already holds an index it
// must have been built with embedder's model.
func NewRetriever(handle *vectorstore.Handle, embedder vectorstore.Embedder, logger *zap.Logger) (*Retriever, error) {
	if handle == nil {
		return nil, errors.New("index handle is required")
	}
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if ix := handle.Load(); ix != nil {
		if err := ix.Manifest().Check(embedder); err != nil {
			return nil, err
		}
	}
	return &Retriever{handle: handle, embedder: embedder, logger: logging.FromZap(logger.Named("retrieval"))}, nil
}

// Retrieve returns at most k results ordered by ascending distance. A blank
// query or an empty index yields an empty slice and no error.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) (_ []Result, err error) {
	ctx, span := tracer.Start(ctx, "retrieval.Retrieve")
	defer span.End()
	span.SetAttributes(attribute.Int("k", k))

	var results []Result
	defer func() {
		outcome := outcomeOK
		switch {
		case err != nil:
			outcome = outcomeError
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case len(results) == 0:
			outcome = outcomeEmpty
		default:
			TopDistance.Observe(results[0].Distance)
			span.SetAttributes(attribute.Float64("top_distance", results[0].Distance))
		}
		RequestsTotal.WithLabelValues(outcome).Inc()
		span.SetAttributes(attribute.Int("results_count", len(results)))
	}()

	if k <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTopK, k)
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return []Result{}, nil
	}

	ix := r.handle.Load()
	if ix == nil {
		return nil, ErrNoIndex
	}
	if ix.Count() == 0 {
		return []Result{}, nil
	}
	if err := ix.Manifest().Check(r.embedder); err != nil {
		return nil, err
	}

	vec, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	hits, err := ix.Query(ctx, vec, k)
	if err != nil {
		return nil, err
	}

	results = make([]Result, len(hits))
	for i, h := range hits {
		results[i] = Result{ID: h.ID, Distance: h.Distance, Text: h.Text, Metadata: h.Metadata}
	}

	r.logger.Debug(ctx, "retrieved",
		zap.Int("k", k),
		zap.Int("results", len(results)),
		zap.String("generation", ix.Manifest().Generation),
	)
	return results, nil
}
