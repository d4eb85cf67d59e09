package vectorstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specrag/internal/chunk"
	"github.com/fyrsmithlabs/specrag/internal/embeddings"
)

// BuildOptions tunes embedding throughput during a build.
type BuildOptions struct {
	// BatchSize is the number of chunk texts per embedding call. Default: 64.
	BatchSize int
	// Concurrency is the number of batches embedded at once. Default: 4.
	Concurrency int
}

// Builder writes index generations. Builds through one Builder are
// serialized.
type Builder struct {
	cfg      Config
	embedder Embedder
	opts     BuildOptions
	logger   *zap.Logger

	mu  sync.Mutex
	now func() time.Time
}

// NewBuilder creates a Builder.
func NewBuilder(cfg Config, embedder Embedder, opts BuildOptions, logger *zap.Logger) (*Builder, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 64
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Builder{cfg: cfg, embedder: embedder, opts: opts, logger: logger, now: time.Now}, nil
}

// Build embeds every chunk and writes a new generation, then makes it live.
// On failure the staging generation is removed and the previous one stays
// live. The returned Index serves the new generation.
func (b *Builder) Build(ctx context.Context, chunks []chunk.Chunk) (_ *Index, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ctx, span := tracer.Start(ctx, "vectorstore.Build")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", b.cfg.Collection),
		attribute.Int("chunk_count", len(chunks)),
	)
	start := b.now()
	defer func() {
		result := "success"
		if err != nil {
			result = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		BuildsTotal.WithLabelValues(result).Inc()
		BuildDuration.Observe(time.Since(start).Seconds())
	}()

	if err := chunk.Validate(chunks); err != nil {
		return nil, err
	}

	root, err := expandPath(b.cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", root, err)
	}

	gen := newGenerationName(b.now())
	genDir := filepath.Join(root, gen)
	if err := os.Mkdir(genDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating generation %s: %w", gen, err)
	}
	defer func() {
		if err != nil {
			if rmErr := os.RemoveAll(genDir); rmErr != nil {
				b.logger.Warn("failed to remove staging generation", zap.String("generation", gen), zap.Error(rmErr))
			}
		}
	}()

	var vectors [][]float32
	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		vectors, err = embeddings.EmbedBatched(ctx, b.embedder, texts, b.opts.BatchSize, b.opts.Concurrency)
		if err != nil {
			return nil, fmt.Errorf("embedding chunks: %w", err)
		}
	}
	dim := b.embedder.Dimension()
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: chunk %s has dimension %d, embedder reports %d", ErrModelMismatch, chunks[i].ID, len(v), dim)
		}
	}

	db, err := chromem.NewPersistentDB(filepath.Join(genDir, dbDir), b.cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("creating chromem DB: %w", err)
	}
	collection, err := db.CreateCollection(b.cfg.Collection, map[string]string{"model": b.embedder.Model()}, refuseEmbedding)
	if err != nil {
		return nil, fmt.Errorf("creating collection %s: %w", b.cfg.Collection, err)
	}

	if len(chunks) > 0 {
		docs := make([]chromem.Document, len(chunks))
		for i, c := range chunks {
			meta := c.Metadata()
			meta[KeyOrdinal] = formatOrdinal(i)
			docs[i] = chromem.Document{
				ID:        c.ID,
				Content:   c.Text,
				Metadata:  meta,
				Embedding: vectors[i],
			}
		}
		if err := collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
			return nil, fmt.Errorf("adding documents: %w", err)
		}
	}

	manifest := Manifest{
		Collection:    b.cfg.Collection,
		Model:         b.embedder.Model(),
		Dimension:     dim,
		Count:         collection.Count(),
		BuiltAt:       b.now().UTC(),
		FormatVersion: FormatVersion,
		Generation:    gen,
	}
	if err := writeManifest(genDir, manifest); err != nil {
		return nil, fmt.Errorf("writing manifest: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := setCurrentGeneration(root, gen); err != nil {
		return nil, fmt.Errorf("activating generation %s: %w", gen, err)
	}

	IndexEntries.Set(float64(manifest.Count))
	b.logger.Info("index built",
		zap.String("generation", gen),
		zap.String("collection", manifest.Collection),
		zap.String("model", manifest.Model),
		zap.Int("count", manifest.Count),
		zap.Duration("duration", time.Since(start)),
	)

	if _, err := Prune(root, b.cfg.KeepGenerations, b.logger); err != nil {
		b.logger.Warn("failed to prune generations", zap.Error(err))
	}

	return &Index{collection: collection, manifest: manifest, dir: genDir}, nil
}
