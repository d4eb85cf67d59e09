package embeddings

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
)

// Normalize scales v to unit length in place and returns it. A zero vector
// is returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}

// EmbedBatched splits texts into batches of batchSize and embeds up to
// concurrency batches at once. Output order matches input order.
func EmbedBatched(ctx context.Context, e Embedder, texts []string, batchSize, concurrency int) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	if batchSize <= 0 {
		batchSize = len(texts)
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		g.Go(func() error {
			vectors, err := e.EmbedDocuments(gctx, texts[start:end])
			if err != nil {
				return err
			}
			if len(vectors) != end-start {
				return fmt.Errorf("%w: batch [%d:%d] returned %d vectors", ErrEmbeddingFailed, start, end, len(vectors))
			}
			copy(out[start:end], vectors)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
