package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/fyrsmithlabs/specrag/internal/vectorstore")

// KeyOrdinal is the metadata key holding an entry's zero-padded insertion
// position. It breaks ties between equal distances.
const KeyOrdinal = "ordinal"

// Hit is one nearest-neighbor match.
type Hit struct {
	ID       string
	Distance float64
	Text     string
	Metadata map[string]string
	Ordinal  int
}

// Index is one opened, immutable generation. It is safe for concurrent
// queries.
type Index struct {
	collection *chromem.Collection
	manifest   Manifest
	dir        string
}

// Open loads the live generation under cfg.Path and checks it was built
// with fp's model.
func Open(cfg Config, fp Fingerprint, logger *zap.Logger) (*Index, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	root, err := expandPath(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}

	gen, err := currentGeneration(root)
	if err != nil {
		return nil, err
	}
	genDir := filepath.Join(root, gen)

	manifest, err := readManifest(genDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: generation %s has no manifest", ErrCorruptIndex, gen)
	}
	if err != nil {
		return nil, err
	}
	if manifest.Collection != cfg.Collection {
		return nil, fmt.Errorf("%w: generation %s holds %q, want %q", ErrCollectionNotFound, gen, manifest.Collection, cfg.Collection)
	}
	if err := manifest.Check(fp); err != nil {
		return nil, err
	}

	db, err := chromem.NewPersistentDB(filepath.Join(genDir, dbDir), cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("opening chromem DB: %w", err)
	}
	// A nil embedding func makes chromem fall back to OpenAI, so pass one
	// that refuses.
	collection := db.GetCollection(cfg.Collection, refuseEmbedding)
	if collection == nil {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, cfg.Collection)
	}
	if n := collection.Count(); n != manifest.Count {
		return nil, fmt.Errorf("%w: manifest lists %d entries, collection has %d", ErrCorruptIndex, manifest.Count, n)
	}

	IndexEntries.Set(float64(manifest.Count))
	logger.Info("index opened",
		zap.String("generation", gen),
		zap.String("collection", manifest.Collection),
		zap.String("model", manifest.Model),
		zap.Int("count", manifest.Count),
	)

	return &Index{collection: collection, manifest: manifest, dir: genDir}, nil
}

func refuseEmbedding(context.Context, string) ([]float32, error) {
	return nil, errPrecomputed
}

// Manifest returns the generation's manifest.
func (ix *Index) Manifest() Manifest { return ix.manifest }

// Count returns the number of entries.
func (ix *Index) Count() int { return ix.collection.Count() }

// Dir returns the generation directory.
func (ix *Index) Dir() string { return ix.dir }

// Query returns up to k entries nearest to vec, ordered by ascending cosine
// distance with insertion order breaking ties. k is capped at the entry
// count, and an empty index yields no hits.
func (ix *Index) Query(ctx context.Context, vec []float32, k int) ([]Hit, error) {
	ctx, span := tracer.Start(ctx, "vectorstore.Query")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", ix.manifest.Collection),
		attribute.Int("k", k),
	)

	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if len(vec) != ix.manifest.Dimension {
		return nil, fmt.Errorf("%w: query dimension %d, index dimension %d", ErrModelMismatch, len(vec), ix.manifest.Dimension)
	}

	count := ix.collection.Count()
	if count == 0 {
		span.SetAttributes(attribute.Int("results_count", 0))
		return []Hit{}, nil
	}
	// chromem requires nResults <= doc count.
	if k > count {
		k = count
	}

	start := time.Now()
	results, err := ix.collection.QueryEmbedding(ctx, vec, k, nil, nil)
	QueryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", ix.manifest.Collection, err)
	}

	hits := make([]Hit, len(results))
	for i, r := range results {
		ordinal, _ := strconv.Atoi(r.Metadata[KeyOrdinal])
		hits[i] = Hit{
			ID:       r.ID,
			Distance: 1 - float64(r.Similarity),
			Text:     r.Content,
			Metadata: r.Metadata,
			Ordinal:  ordinal,
		}
	}
	sortHits(hits)

	span.SetAttributes(attribute.Int("results_count", len(hits)))
	return hits, nil
}

// sortHits orders by distance, then ordinal.
func sortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].Ordinal < hits[j].Ordinal
	})
}

func formatOrdinal(i int) string {
	return fmt.Sprintf("%06d", i)
}
