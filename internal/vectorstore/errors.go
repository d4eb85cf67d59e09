package vectorstore

import "errors"

var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrIndexNotFound means no generation has been built at the index path.
	ErrIndexNotFound = errors.New("index not found")

	// ErrModelMismatch means the index was built with a different embedding
	// model or dimension than the one querying it.
	ErrModelMismatch = errors.New("embedding model mismatch")

	// ErrCollectionNotFound means the generation lacks the configured collection.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrInvalidCollectionName indicates a collection name that is unsafe as
	// a directory component.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrCorruptIndex means a generation's files disagree with its manifest.
	ErrCorruptIndex = errors.New("corrupt index")

	errPrecomputed = errors.New("vectorstore: embeddings are computed by the caller")
)
