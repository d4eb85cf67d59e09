// Package vectorstore persists chunk embeddings in a chromem-go collection
// and answers k-nearest-neighbor queries by cosine distance.
//
// # Layout
//
// An index directory holds one subdirectory per build generation and a
// CURRENT file naming the live one:
//
//	chroma_wcag22/
//	  CURRENT                      -> "gen-1739812345000000000-1a2b3c4d"
//	  gen-1739812345000000000-1a2b3c4d/
//	    manifest.json
//	    db/                        chromem persistent DB
//
// A build writes a complete new generation, then replaces CURRENT with a
// rename. Readers that opened the previous generation keep using it, and a
// failed build leaves CURRENT untouched. Older generations beyond
// Config.KeepGenerations are pruned after a successful swap.
//
// # Model fingerprint
//
// The manifest records the embedding model and dimension used at build
// time. Open refuses to serve an index with a different embedder and
// returns ErrModelMismatch, since vectors from different models are not
// comparable.
package vectorstore
