package http

import (
	"time"

	"github.com/fyrsmithlabs/specrag/internal/retrieval"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	IndexLoaded bool   `json:"index_loaded"`
}

// RetrieveRequest is the request body for POST /api/v1/retrieve.
type RetrieveRequest struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
}

// RetrieveResponse is the response body for POST /api/v1/retrieve. Refused
// is the confidence gate's verdict on the results.
type RetrieveResponse struct {
	Query     string             `json:"query"`
	Results   []retrieval.Result `json:"results"`
	Refused   bool               `json:"refused"`
	Threshold float64            `json:"threshold"`
}

// AskRequest is the request body for POST /api/v1/ask.
type AskRequest struct {
	Question string `json:"question"`
	K        int    `json:"k,omitempty"`
}

// IndexResponse is the response body for GET /api/v1/index.
type IndexResponse struct {
	Generation    string    `json:"generation"`
	Collection    string    `json:"collection"`
	Model         string    `json:"model"`
	Dimension     int       `json:"dimension"`
	Count         int       `json:"count"`
	BuiltAt       time.Time `json:"built_at"`
	FormatVersion int       `json:"format_version"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}
