package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specrag/internal/answer"
	"github.com/fyrsmithlabs/specrag/internal/chunk"
	"github.com/fyrsmithlabs/specrag/internal/embeddings"
	"github.com/fyrsmithlabs/specrag/internal/logging"
	"github.com/fyrsmithlabs/specrag/internal/retrieval"
	"github.com/fyrsmithlabs/specrag/internal/telemetry"
	"github.com/fyrsmithlabs/specrag/internal/vectorstore"
)

var corpus = []chunk.Chunk{
	{ID: "1.4.3", Title: "Contrast (Minimum)", Level: "AA", URL: "https://www.w3.org/TR/WCAG22/#contrast-minimum",
		Text: "Success Criterion 1.4.3 Contrast (Minimum) (Level AA) The visual presentation of text and images of text has a contrast ratio of at least 4.5:1"},
	{ID: "2.4.7", Title: "Focus Visible", Level: "AA", URL: "https://www.w3.org/TR/WCAG22/#focus-visible",
		Text: "Success Criterion 2.4.7 Focus Visible (Level AA) Any keyboard operable user interface has a mode of operation where the keyboard focus indicator is visible"},
}

type testServer struct {
	*Server
	tel    *telemetry.TestTelemetry
	handle *vectorstore.Handle
}

func setupTestServer(t *testing.T, withIndex bool) *testServer {
	t.Helper()
	return setupLoggedServer(t, withIndex, zap.NewNop())
}

func setupLoggedServer(t *testing.T, withIndex bool, logger *zap.Logger) *testServer {
	t.Helper()
	p, err := embeddings.NewHashProvider(128)
	require.NoError(t, err)
	emb := embeddings.Instrument(p, zap.NewNop())

	handle := vectorstore.NewHandle(nil)
	if withIndex {
		b, err := vectorstore.NewBuilder(vectorstore.Config{Path: t.TempDir()}, emb, vectorstore.BuildOptions{}, nil)
		require.NoError(t, err)
		ix, err := b.Build(context.Background(), corpus)
		require.NoError(t, err)
		handle.Swap(ix)
	}

	r, err := retrieval.NewRetriever(handle, emb, nil)
	require.NoError(t, err)
	gate := retrieval.NewGate(0.40)
	tel := telemetry.NewTestTelemetry()

	s, err := NewServer(Deps{
		Retriever: r,
		Asker:     answer.NewService(r, gate, answer.Extractive{}, answer.Config{}, logger),
		Gate:      gate,
		Index:     handle,
		Telemetry: tel.Telemetry,
	}, logger, &Config{Host: "127.0.0.1", Port: 0})
	require.NoError(t, err)
	return &testServer{Server: s, tel: tel, handle: handle}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestNewServer(t *testing.T) {
	handle := vectorstore.NewHandle(nil)

	_, err := NewServer(Deps{Index: handle}, zap.NewNop(), nil)
	assert.Error(t, err)

	s := setupTestServer(t, false)
	assert.Equal(t, 5, s.config.DefaultTopK)
}

func TestHandleHealth(t *testing.T) {
	rec := setupTestServer(t, true).do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, HealthResponse{Status: "ok", IndexLoaded: true}, resp)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestHandleRetrieve(t *testing.T) {
	s := setupTestServer(t, true)

	t.Run("ranked results", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/v1/retrieve", RetrieveRequest{Query: "keyboard focus indicator visible", K: 5})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp RetrieveResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Results, 2)
		assert.Equal(t, "2.4.7", resp.Results[0].ID)
		assert.LessOrEqual(t, resp.Results[0].Distance, resp.Results[1].Distance)
		assert.Equal(t, 0.40, resp.Threshold)
		assert.Equal(t, "Focus Visible", resp.Results[0].Metadata[chunk.KeyTitle])
	})

	t.Run("blank query", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/v1/retrieve", RetrieveRequest{Query: "   "})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp RetrieveResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Empty(t, resp.Results)
		assert.True(t, resp.Refused)
	})

	t.Run("negative k", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/v1/retrieve", RetrieveRequest{Query: "focus", K: -1})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Contains(t, resp.Error, "top k")
		assert.NotEmpty(t, resp.RequestID)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/retrieve", strings.NewReader("{"))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleAsk(t *testing.T) {
	s := setupTestServer(t, true)

	t.Run("answered", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/v1/ask", AskRequest{Question: corpus[0].Text})
		require.Equal(t, http.StatusOK, rec.Code)

		var ans answer.Answer
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ans))
		assert.False(t, ans.Refused)
		assert.Contains(t, ans.Text, "1.4.3 — Contrast (Minimum) (Level AA)")
		require.NotEmpty(t, ans.Citations)
		assert.Equal(t, "https://www.w3.org/TR/WCAG22/#contrast-minimum", ans.Citations[0].URL)
	})

	t.Run("refusal is a 200", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/v1/ask", AskRequest{Question: "zebra migration patterns savanna"})
		require.Equal(t, http.StatusOK, rec.Code)

		var ans answer.Answer
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ans))
		assert.True(t, ans.Refused)
		assert.Equal(t, answer.RefusalMessage, ans.Text)
		assert.Empty(t, ans.Citations)
	})

	t.Run("empty question", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/v1/ask", AskRequest{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestLogsCarryRequestID(t *testing.T) {
	logger := logging.NewTestLogger()
	s := setupLoggedServer(t, true, logger.Underlying())

	send := func(path, id string, body any) {
		var buf bytes.Buffer
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
		req := httptest.NewRequest(http.MethodPost, path, &buf)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Request-Id", id)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		assert.Equal(t, id, rec.Header().Get("X-Request-Id"))
	}

	send("/api/v1/ask", "req-ask-1", AskRequest{Question: corpus[0].Text})
	logger.AssertRequestID(t, "http request", "req-ask-1")
	logger.AssertRequestID(t, "answered", "req-ask-1")

	s.handle.Swap(nil)
	send("/api/v1/retrieve", "req-down-2", RetrieveRequest{Query: "focus"})
	logger.AssertRequestID(t, "request failed", "req-down-2")
	logger.AssertField(t, "request failed", "status", int64(http.StatusServiceUnavailable))
}

func TestNoIndex(t *testing.T) {
	s := setupTestServer(t, false)

	for _, tc := range []struct {
		method, path string
		body         any
	}{
		{http.MethodGet, "/api/v1/index", nil},
		{http.MethodPost, "/api/v1/retrieve", RetrieveRequest{Query: "focus"}},
		{http.MethodPost, "/api/v1/ask", AskRequest{Question: "focus"}},
	} {
		rec := s.do(t, tc.method, tc.path, tc.body)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, tc.path)
	}

	rec := s.do(t, http.MethodGet, "/health", nil)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.IndexLoaded)
}

func TestHandleIndex(t *testing.T) {
	s := setupTestServer(t, true)

	rec := s.do(t, http.MethodGet, "/api/v1/index", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp IndexResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "wcag22_spec", resp.Collection)
	assert.Equal(t, "hash-v1-128", resp.Model)
	assert.Equal(t, 128, resp.Dimension)
	assert.True(t, strings.HasPrefix(resp.Generation, "gen-"))
}

func TestMetrics(t *testing.T) {
	s := setupTestServer(t, true)

	s.do(t, http.MethodGet, "/health", nil)
	s.do(t, http.MethodPost, "/api/v1/retrieve", RetrieveRequest{Query: "focus", K: -1})
	s.do(t, http.MethodPost, "/api/v1/retrieve", RetrieveRequest{Query: "focus"})

	total, found := s.tel.SumValue(t, "specrag.http.requests_total",
		attribute.String("endpoint", "/health"), attribute.Int("status", http.StatusOK))
	assert.True(t, found)
	assert.Equal(t, int64(1), total)

	total, _ = s.tel.SumValue(t, "specrag.http.requests_total",
		attribute.String("endpoint", "/api/v1/retrieve"), attribute.Int("status", http.StatusBadRequest))
	assert.Equal(t, int64(1), total)

	rec := s.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "specrag_retrieval_requests_total")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{retrieval.ErrInvalidTopK, http.StatusBadRequest},
		{answer.ErrEmptyQuestion, http.StatusBadRequest},
		{vectorstore.ErrModelMismatch, http.StatusConflict},
		{retrieval.ErrNoIndex, http.StatusServiceUnavailable},
		{embeddings.ErrEmbeddingFailed, http.StatusBadGateway},
		{answer.ErrGenerationFailed, http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestRateLimit(t *testing.T) {
	s := setupTestServer(t, true)
	limited, err := NewServer(s.deps, zap.NewNop(), &Config{RateLimit: 0.001})
	require.NoError(t, err)

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/index", nil)
		rec := httptest.NewRecorder()
		limited.Handler().ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Contains(t, codes, http.StatusTooManyRequests)
}

func TestHandleStats(t *testing.T) {
	s := setupTestServer(t, true)
	s.do(t, http.MethodPost, "/api/v1/retrieve", RetrieveRequest{Query: corpus[1].Text})

	rec := s.do(t, http.MethodGet, "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.True(t, stats.IndexLoaded)
	assert.Equal(t, 2, stats.IndexEntries)
	assert.GreaterOrEqual(t, stats.Retrievals["ok"], 1.0)
	assert.Equal(t, 0.40, stats.Threshold)
	assert.Positive(t, stats.Goroutines)
	assert.Positive(t, stats.MemoryBytes)
}
