package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specrag/internal/answer"
	"github.com/fyrsmithlabs/specrag/internal/chunk"
	"github.com/fyrsmithlabs/specrag/internal/config"
	"github.com/fyrsmithlabs/specrag/internal/embeddings"
	"github.com/fyrsmithlabs/specrag/internal/retrieval"
	"github.com/fyrsmithlabs/specrag/internal/vectorstore"
)

// Registry provides access to the wired pipeline.
type Registry interface {
	Provider() embeddings.Provider
	Index() *vectorstore.Handle
	Retriever() *retrieval.Retriever
	Gate() retrieval.Gate
	Composer() answer.Composer
	Answers() *answer.Service

	// Build embeds chunks into a new generation and serves it.
	Build(ctx context.Context, chunks []chunk.Chunk) (*vectorstore.Index, error)
	// Reload opens the current generation from disk and serves it.
	Reload() (*vectorstore.Index, error)
	Close() error
}

// registry is the concrete implementation of Registry.
type registry struct {
	cfg       *config.Config
	indexCfg  vectorstore.Config
	provider  embeddings.Provider
	handle    *vectorstore.Handle
	retriever *retrieval.Retriever
	gate      retrieval.Gate
	composer  answer.Composer
	answers   *answer.Service
	logger    *zap.Logger
}

// Option configures New.
type Option func(*options)

type options struct {
	skipIndex bool
}

// WithoutIndex starts the registry with an empty handle instead of opening
// the current generation. A build replaces whatever is on disk, so it must
// not fail on an index from another model or a damaged one.
func WithoutIndex() Option {
	return func(o *options) { o.skipIndex = true }
}

// New creates a Registry from cfg. A missing index is not an error: the
// handle starts empty and queries fail with retrieval.ErrNoIndex until a
// build or reload fills it.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (Registry, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	provider, err := embeddings.NewProvider(ctx, embeddings.ProviderConfig{
		Provider:  cfg.Embeddings.Provider,
		Model:     cfg.Embeddings.Model,
		BaseURL:   cfg.Embeddings.BaseURL,
		APIKey:    cfg.Embeddings.APIKey.Value(),
		CacheDir:  cfg.Embeddings.CacheDir,
		Dimension: cfg.Embeddings.Dimension,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}

	r := &registry{
		cfg: cfg,
		indexCfg: vectorstore.Config{
			Path:            cfg.Index.Path,
			Collection:      cfg.Index.Collection,
			Compress:        cfg.Index.Compress,
			KeepGenerations: cfg.Index.KeepGenerations,
		},
		provider: provider,
		gate:     retrieval.NewGate(cfg.Retrieval.RefusalThreshold),
		logger:   logger,
	}

	var ix *vectorstore.Index
	if !o.skipIndex {
		ix, err = vectorstore.Open(r.indexCfg, provider, logger)
	}
	switch {
	case o.skipIndex:
	case errors.Is(err, vectorstore.ErrIndexNotFound):
		logger.Warn("no index built yet", zap.String("path", r.indexCfg.Path))
	case err != nil:
		_ = provider.Close()
		return nil, fmt.Errorf("opening index: %w", err)
	}
	r.handle = vectorstore.NewHandle(ix)

	r.retriever, err = retrieval.NewRetriever(r.handle, provider, logger)
	if err != nil {
		_ = provider.Close()
		return nil, fmt.Errorf("creating retriever: %w", err)
	}

	r.composer, err = newComposer(cfg, logger)
	if err != nil {
		_ = provider.Close()
		return nil, err
	}
	r.answers = answer.NewService(r.retriever, r.gate, r.composer, answer.Config{
		TopK:      cfg.Retrieval.TopK,
		Citations: cfg.Answer.Citations,
	}, logger)

	logger.Info("services initialized",
		zap.String("provider", cfg.Embeddings.Provider),
		zap.String("model", provider.Model()),
		zap.Bool("index_loaded", ix != nil),
		zap.String("composer", r.composer.Name()),
		zap.Float64("refusal_threshold", r.gate.Threshold),
	)
	return r, nil
}

func newComposer(cfg *config.Config, logger *zap.Logger) (answer.Composer, error) {
	if !cfg.LLM.Enabled {
		return answer.Extractive{ExcerptChars: cfg.Answer.ExcerptChars}, nil
	}
	llm, err := answer.NewLLM(answer.LLMConfig{
		Model:             cfg.LLM.Model,
		BaseURL:           cfg.LLM.BaseURL,
		APIKey:            cfg.LLM.APIKey.Value(),
		Timeout:           cfg.LLM.Timeout,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating llm composer: %w", err)
	}
	return llm, nil
}

func (r *registry) Provider() embeddings.Provider   { return r.provider }
func (r *registry) Index() *vectorstore.Handle      { return r.handle }
func (r *registry) Retriever() *retrieval.Retriever { return r.retriever }
func (r *registry) Gate() retrieval.Gate            { return r.gate }
func (r *registry) Composer() answer.Composer       { return r.composer }
func (r *registry) Answers() *answer.Service        { return r.answers }

func (r *registry) Build(ctx context.Context, chunks []chunk.Chunk) (*vectorstore.Index, error) {
	b, err := vectorstore.NewBuilder(r.indexCfg, r.provider, vectorstore.BuildOptions{
		BatchSize:   r.cfg.Embeddings.BatchSize,
		Concurrency: r.cfg.Embeddings.Concurrency,
	}, r.logger)
	if err != nil {
		return nil, err
	}
	ix, err := b.Build(ctx, chunks)
	if err != nil {
		return nil, err
	}
	r.handle.Swap(ix)
	return ix, nil
}

func (r *registry) Reload() (*vectorstore.Index, error) {
	ix, err := vectorstore.Open(r.indexCfg, r.provider, r.logger)
	if err != nil {
		return nil, err
	}
	prev := r.handle.Swap(ix)
	if prev == nil || prev.Manifest().Generation != ix.Manifest().Generation {
		r.logger.Info("index reloaded",
			zap.String("generation", ix.Manifest().Generation),
			zap.Int("count", ix.Count()),
		)
	}
	return ix, nil
}

func (r *registry) Close() error {
	return r.provider.Close()
}
