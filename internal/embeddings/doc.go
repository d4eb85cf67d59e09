// Package embeddings maps text to fixed-length, L2-normalized vectors.
//
// Providers:
//   - fastembed: local ONNX models via fastembed-go (requires cgo). The
//     default model is sentence-transformers/all-MiniLM-L6-v2.
//   - tei: a HuggingFace text-embeddings-inference server.
//   - openai: any OpenAI-compatible /embeddings endpoint via langchaingo.
//   - hash: deterministic feature hashing, for tests and offline use.
//
// Every provider is wrapped by Instrument, which normalizes output vectors,
// checks their dimension, records OpenTelemetry metrics and spans, and wraps
// failures in ErrEmbeddingFailed. Callers retry at their own discretion;
// nothing in this package retries.
package embeddings
