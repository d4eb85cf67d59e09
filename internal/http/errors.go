package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/fyrsmithlabs/specrag/internal/answer"
	"github.com/fyrsmithlabs/specrag/internal/embeddings"
	"github.com/fyrsmithlabs/specrag/internal/retrieval"
	"github.com/fyrsmithlabs/specrag/internal/vectorstore"
)

// statusFor maps domain errors to HTTP status codes. A refusal is not an
// error and never reaches here.
func statusFor(err error) int {
	switch {
	case errors.Is(err, retrieval.ErrInvalidTopK),
		errors.Is(err, answer.ErrEmptyQuestion):
		return http.StatusBadRequest
	case errors.Is(err, vectorstore.ErrModelMismatch):
		return http.StatusConflict
	case errors.Is(err, retrieval.ErrNoIndex),
		errors.Is(err, vectorstore.ErrIndexNotFound):
		return http.StatusServiceUnavailable
	case errors.Is(err, embeddings.ErrEmbeddingFailed),
		errors.Is(err, answer.ErrGenerationFailed):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
