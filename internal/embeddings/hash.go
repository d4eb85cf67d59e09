package embeddings

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"
)

// HashProvider embeds text by feature hashing lowercase word unigrams and
// bigrams into a fixed number of buckets. It needs no model, is fully
// deterministic and keeps lexical overlap meaningful under cosine distance.
type HashProvider struct {
	dimension int
}

// NewHashProvider creates a HashProvider. A zero dimension means 384.
func NewHashProvider(dimension int) (*HashProvider, error) {
	if dimension == 0 {
		dimension = 384
	}
	if dimension < 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", ErrInvalidConfig, dimension)
	}
	return &HashProvider{dimension: dimension}, nil
}

func (p *HashProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = p.embed(t)
	}
	return out, nil
}

func (p *HashProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.embed(text), nil
}

func (p *HashProvider) Dimension() int { return p.dimension }

// Model identifies the hashing scheme and width.
func (p *HashProvider) Model() string {
	return fmt.Sprintf("hash-v1-%d", p.dimension)
}

func (p *HashProvider) Close() error { return nil }

func (p *HashProvider) embed(text string) []float32 {
	vec := make([]float32, p.dimension)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.'
	})
	for i, tok := range tokens {
		tok = strings.Trim(tok, ".")
		if tok == "" {
			continue
		}
		p.add(vec, tok, 1)
		if i > 0 {
			p.add(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}
	return Normalize(vec)
}

func (p *HashProvider) add(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(p.dimension))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}
