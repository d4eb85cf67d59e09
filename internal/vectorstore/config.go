package vectorstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config locates an index.
type Config struct {
	// Path is the index directory. Default: "data/vectorstore/chroma_wcag22".
	Path string

	// Collection is the chromem collection name. Default: "wcag22_spec".
	Collection string

	// Compress enables gzip compression of stored documents.
	Compress bool

	// KeepGenerations is how many generations, including the live one,
	// survive a build. Zero means 1.
	KeepGenerations int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Path == "" {
		c.Path = filepath.Join("data", "vectorstore", "chroma_wcag22")
	}
	if c.Collection == "" {
		c.Collection = "wcag22_spec"
	}
	if c.KeepGenerations <= 0 {
		c.KeepGenerations = 1
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("%w: path is required", ErrInvalidConfig)
	}
	return ValidateCollectionName(c.Collection)
}

var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName checks that name is 1-64 characters of [a-z0-9_].
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match pattern ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// Root returns Path with a leading ~ expanded.
func (c Config) Root() (string, error) {
	return expandPath(c.Path)
}

// expandPath expands a leading ~ to the home directory.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// Embedder is the embedding capability the index is built and queried with.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Fingerprint
}

// Fingerprint identifies an embedding space.
type Fingerprint interface {
	Model() string
	Dimension() int
}
