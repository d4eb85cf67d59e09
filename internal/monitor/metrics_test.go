package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	specraghttp "github.com/fyrsmithlabs/specrag/internal/http"
)

func fakeDaemon(t *testing.T, indexLoaded bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/stats", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(specraghttp.StatsResponse{
			UptimeSeconds:    8100,
			IndexLoaded:      indexLoaded,
			Generation:       "gen-1",
			IndexEntries:     87,
			Retrievals:       map[string]float64{"ok": 9, "error": 1},
			GateDecisions:    map[string]float64{"accept": 6, "refuse": 3},
			MeanTopDistance:  0.31,
			MeanQuerySeconds: 0.0042,
			Threshold:        0.40,
			Goroutines:       12,
			MemoryBytes:      48 * 1024 * 1024,
		})
	})
	mux.HandleFunc("/api/v1/index", func(w http.ResponseWriter, r *http.Request) {
		if !indexLoaded {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(specraghttp.IndexResponse{
			Generation: "gen-1",
			Collection: "wcag22_spec",
			Model:      "hash-v1-64",
			Dimension:  64,
			Count:      87,
		})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestNewMetricsClient(t *testing.T) {
	client := NewMetricsClient("http://localhost:9191/")
	assert.NotNil(t, client)
	assert.Equal(t, "http://localhost:9191", client.baseURL)
	assert.NotNil(t, client.client)
}

func TestMetricsClient_Stats(t *testing.T) {
	server := fakeDaemon(t, true)
	client := NewMetricsClient(server.URL)

	stats, err := client.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(8100), stats.UptimeSeconds)
	assert.Equal(t, 9.0, stats.Retrievals["ok"])
	assert.Equal(t, 0.40, stats.Threshold)
}

func TestMetricsClient_Snapshot(t *testing.T) {
	t.Run("index loaded", func(t *testing.T) {
		snap, err := NewMetricsClient(fakeDaemon(t, true).URL).Snapshot(context.Background())
		require.NoError(t, err)
		assert.True(t, snap.IndexLoaded)
		assert.Equal(t, 10.0, snap.Retrievals)
		assert.Equal(t, 1.0, snap.Errors)
		assert.Equal(t, 3.0, snap.Refused)
		assert.Equal(t, "hash-v1-64", snap.Model)
		assert.Equal(t, 64, snap.Dimension)
		assert.InDelta(t, 48.0, snap.MemoryMB, 0.01)
		assert.False(t, snap.At.IsZero())
	})

	t.Run("no index", func(t *testing.T) {
		snap, err := NewMetricsClient(fakeDaemon(t, false).URL).Snapshot(context.Background())
		require.NoError(t, err)
		assert.False(t, snap.IndexLoaded)
		assert.Empty(t, snap.Model)
	})
}

func TestMetricsClient_Index_NoIndex(t *testing.T) {
	client := NewMetricsClient(fakeDaemon(t, false).URL)
	_, err := client.Index(context.Background())
	assert.ErrorIs(t, err, ErrNoIndex)
}

func TestMetricsClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewMetricsClient(server.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Stats(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context deadline exceeded")
}

func TestMetricsClient_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
	}))
	defer server.Close()

	_, err := NewMetricsClient(server.URL).Stats(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status code 500")
}

func TestMetricsClient_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("{invalid json"))
	}))
	defer server.Close()

	_, err := NewMetricsClient(server.URL).Stats(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode response")
}
