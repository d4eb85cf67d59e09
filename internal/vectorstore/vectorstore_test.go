package vectorstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specrag/internal/chunk"
	"github.com/fyrsmithlabs/specrag/internal/embeddings"
)

func testChunks() []chunk.Chunk {
	prov := chunk.Provenance{DocSet: "wcag22", Source: "wcag_spec", Normativity: "normative", Version: "2.2"}
	return []chunk.Chunk{
		{ID: "1.1.1", Title: "Non-text Content", Level: "A", URL: "https://www.w3.org/TR/WCAG22/#non-text-content",
			Text: "Success Criterion 1.1.1 Non-text Content (Level A) All non-text content that is presented to the user has a text alternative", Provenance: prov},
		{ID: "1.2.2", Title: "Captions (Prerecorded)", Level: "A", URL: "https://www.w3.org/TR/WCAG22/#captions-prerecorded",
			Text: "Success Criterion 1.2.2 Captions (Prerecorded) (Level A) Captions are provided for all prerecorded audio content in synchronized media", Provenance: prov},
		{ID: "2.4.11", Title: "Focus Not Obscured (Minimum)", Level: "AA", URL: "https://www.w3.org/TR/WCAG22/#focus-not-obscured-minimum",
			Text: "Success Criterion 2.4.11 Focus Not Obscured (Minimum) (Level AA) When a user interface component receives keyboard focus the component is not entirely hidden", Provenance: prov},
	}
}

func newTestEmbedder(t *testing.T, dim int) embeddings.Provider {
	t.Helper()
	p, err := embeddings.NewHashProvider(dim)
	require.NoError(t, err)
	return embeddings.Instrument(p, zap.NewNop())
}

func newTestBuilder(t *testing.T, cfg Config, e Embedder) *Builder {
	t.Helper()
	b, err := NewBuilder(cfg, e, BuildOptions{BatchSize: 2, Concurrency: 2}, zap.NewNop())
	require.NoError(t, err)
	return b
}

func TestBuildAndQuery(t *testing.T) {
	ctx := context.Background()
	cfg := Config{Path: t.TempDir(), Collection: "wcag22_spec"}
	emb := newTestEmbedder(t, 128)

	ix, err := newTestBuilder(t, cfg, emb).Build(ctx, testChunks())
	require.NoError(t, err)
	assert.Equal(t, 3, ix.Count())

	m := ix.Manifest()
	assert.Equal(t, "wcag22_spec", m.Collection)
	assert.Equal(t, emb.Model(), m.Model)
	assert.Equal(t, 128, m.Dimension)
	assert.Equal(t, 3, m.Count)
	assert.Equal(t, FormatVersion, m.FormatVersion)

	vec, err := emb.EmbedQuery(ctx, testChunks()[1].Text)
	require.NoError(t, err)

	t.Run("k capped at entry count", func(t *testing.T) {
		hits, err := ix.Query(ctx, vec, 5)
		require.NoError(t, err)
		require.Len(t, hits, 3)
		assert.Equal(t, "1.2.2", hits[0].ID)
		assert.InDelta(t, 0, hits[0].Distance, 1e-5)
		for i := 1; i < len(hits); i++ {
			assert.LessOrEqual(t, hits[i-1].Distance, hits[i].Distance)
		}
	})

	t.Run("metadata round trip", func(t *testing.T) {
		hits, err := ix.Query(ctx, vec, 1)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		got := chunk.FromMetadata(hits[0].ID, hits[0].Text, hits[0].Metadata)
		assert.Equal(t, testChunks()[1], got)
		assert.Equal(t, 1, hits[0].Ordinal)
		assert.Equal(t, "000001", hits[0].Metadata[KeyOrdinal])
	})

	t.Run("reopen from disk", func(t *testing.T) {
		opened, err := Open(cfg, emb, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, 3, opened.Count())
		assert.Equal(t, m.Model, opened.Manifest().Model)

		hits, err := opened.Query(ctx, vec, 2)
		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Equal(t, "1.2.2", hits[0].ID)
	})

	t.Run("invalid k", func(t *testing.T) {
		_, err := ix.Query(ctx, vec, 0)
		assert.Error(t, err)
	})

	t.Run("wrong query dimension", func(t *testing.T) {
		_, err := ix.Query(ctx, make([]float32, 64), 1)
		assert.ErrorIs(t, err, ErrModelMismatch)
	})
}

func TestBuild_Empty(t *testing.T) {
	ctx := context.Background()
	cfg := Config{Path: t.TempDir()}
	emb := newTestEmbedder(t, 32)

	ix, err := newTestBuilder(t, cfg, emb).Build(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, ix.Count())

	opened, err := Open(cfg, emb, nil)
	require.NoError(t, err)

	vec, err := emb.EmbedQuery(ctx, "anything")
	require.NoError(t, err)
	hits, err := opened.Query(ctx, vec, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestBuild_TieBreakByInsertionOrder(t *testing.T) {
	ctx := context.Background()
	emb := newTestEmbedder(t, 64)
	chunks := []chunk.Chunk{
		{ID: "3.1.1", Text: "identical body"},
		{ID: "1.1.1", Text: "identical body"},
		{ID: "2.1.1", Text: "identical body"},
	}

	ix, err := newTestBuilder(t, Config{Path: t.TempDir()}, emb).Build(ctx, chunks)
	require.NoError(t, err)

	vec, err := emb.EmbedQuery(ctx, "identical body")
	require.NoError(t, err)
	hits, err := ix.Query(ctx, vec, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, []string{"3.1.1", "1.1.1", "2.1.1"}, []string{hits[0].ID, hits[1].ID, hits[2].ID})
}

func TestBuild_RejectsInvalidChunks(t *testing.T) {
	b := newTestBuilder(t, Config{Path: t.TempDir()}, newTestEmbedder(t, 16))
	_, err := b.Build(context.Background(), []chunk.Chunk{{ID: "1.1.1", Text: "a"}, {ID: "1.1.1", Text: "b"}})
	assert.ErrorIs(t, err, chunk.ErrInvalidChunk)
}

func TestRebuild_SwapsAndPrunes(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	cfg := Config{Path: root, KeepGenerations: 2}
	emb := newTestEmbedder(t, 64)
	b := newTestBuilder(t, cfg, emb)

	first, err := b.Build(ctx, testChunks()[:1])
	require.NoError(t, err)
	second, err := b.Build(ctx, testChunks()[:2])
	require.NoError(t, err)
	third, err := b.Build(ctx, testChunks())
	require.NoError(t, err)

	current, err := ReadManifest(root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(third.Dir()), current.Generation)
	assert.Equal(t, 3, current.Count)

	_, err = os.Stat(first.Dir())
	assert.True(t, os.IsNotExist(err), "oldest generation pruned")
	_, err = os.Stat(second.Dir())
	assert.NoError(t, err, "previous generation kept")

	// An index opened before the swap keeps serving its own generation.
	vec, err := emb.EmbedQuery(ctx, "text alternative")
	require.NoError(t, err)
	hits, err := first.Query(ctx, vec, 5)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

type failingEmbedder struct {
	embeddings.Provider
}

func (failingEmbedder) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return nil, embeddings.ErrEmbeddingFailed
}

func TestBuild_FailureKeepsPreviousGeneration(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	cfg := Config{Path: root}
	emb := newTestEmbedder(t, 64)

	good, err := newTestBuilder(t, cfg, emb).Build(ctx, testChunks())
	require.NoError(t, err)

	_, err = newTestBuilder(t, cfg, failingEmbedder{emb}).Build(ctx, testChunks())
	require.ErrorIs(t, err, embeddings.ErrEmbeddingFailed)

	current, err := ReadManifest(root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(good.Dir()), current.Generation)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	var gens []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), genPrefix) {
			gens = append(gens, e.Name())
		}
	}
	assert.Equal(t, []string{current.Generation}, gens, "staging generation removed")
}

func TestOpen_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("no index", func(t *testing.T) {
		_, err := Open(Config{Path: t.TempDir()}, newTestEmbedder(t, 16), nil)
		assert.ErrorIs(t, err, ErrIndexNotFound)
	})

	t.Run("model mismatch", func(t *testing.T) {
		cfg := Config{Path: t.TempDir()}
		_, err := newTestBuilder(t, cfg, newTestEmbedder(t, 64)).Build(ctx, testChunks())
		require.NoError(t, err)

		_, err = Open(cfg, newTestEmbedder(t, 32), nil)
		assert.ErrorIs(t, err, ErrModelMismatch)
	})

	t.Run("other collection", func(t *testing.T) {
		root := t.TempDir()
		emb := newTestEmbedder(t, 16)
		_, err := newTestBuilder(t, Config{Path: root, Collection: "first"}, emb).Build(ctx, testChunks())
		require.NoError(t, err)

		_, err = Open(Config{Path: root, Collection: "second"}, emb, nil)
		assert.ErrorIs(t, err, ErrCollectionNotFound)
	})

	t.Run("corrupt pointer", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(root, CurrentFile), []byte("../etc\n"), 0o644))
		_, err := Open(Config{Path: root}, newTestEmbedder(t, 16), nil)
		assert.ErrorIs(t, err, ErrCorruptIndex)
	})

	t.Run("bad collection name", func(t *testing.T) {
		_, err := Open(Config{Path: t.TempDir(), Collection: "../x"}, newTestEmbedder(t, 16), nil)
		assert.ErrorIs(t, err, ErrInvalidCollectionName)
	})
}

func TestHandle(t *testing.T) {
	h := NewHandle(nil)
	assert.Nil(t, h.Load())

	a, b := &Index{}, &Index{}
	assert.Nil(t, h.Swap(a))
	assert.Same(t, a, h.Load())
	assert.Same(t, a, h.Swap(b))
	assert.Same(t, b, h.Load())
}

func TestManifestCheck(t *testing.T) {
	m := Manifest{Model: "hash-v1-16", Dimension: 16}
	assert.NoError(t, m.Check(newTestEmbedder(t, 16)))

	err := m.Check(newTestEmbedder(t, 8))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrModelMismatch))
}
