package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	specraghttp "github.com/fyrsmithlabs/specrag/internal/http"
)

// ErrNoIndex is returned by Index when the daemon has no generation loaded.
var ErrNoIndex = errors.New("daemon has no index loaded")

// MetricsClient queries a specragd daemon's JSON endpoints.
type MetricsClient struct {
	baseURL string
	client  *http.Client
}

// NewMetricsClient creates a new metrics client
func NewMetricsClient(baseURL string) *MetricsClient {
	return &MetricsClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 2 * time.Second,
		},
	}
}

// Stats fetches GET /api/v1/stats.
func (c *MetricsClient) Stats(ctx context.Context) (specraghttp.StatsResponse, error) {
	var stats specraghttp.StatsResponse
	if err := c.get(ctx, "/api/v1/stats", &stats); err != nil {
		return specraghttp.StatsResponse{}, err
	}
	return stats, nil
}

// Index fetches GET /api/v1/index. ErrNoIndex is returned on 503.
func (c *MetricsClient) Index(ctx context.Context) (specraghttp.IndexResponse, error) {
	var ix specraghttp.IndexResponse
	if err := c.get(ctx, "/api/v1/index", &ix); err != nil {
		return specraghttp.IndexResponse{}, err
	}
	return ix, nil
}

func (c *MetricsClient) get(ctx context.Context, path string, out any) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable:
		return ErrNoIndex
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Snapshot collects one poll of the daemon. A missing index is not an error.
func (c *MetricsClient) Snapshot(ctx context.Context) (MetricsSnapshot, error) {
	stats, err := c.Stats(ctx)
	if err != nil {
		return MetricsSnapshot{}, err
	}

	snap := MetricsSnapshot{
		Uptime:          stats.UptimeSeconds,
		Goroutines:      stats.Goroutines,
		MemoryMB:        float64(stats.MemoryBytes) / (1024 * 1024),
		Retrievals:      sum(stats.Retrievals),
		Errors:          stats.Retrievals["error"],
		Accepted:        stats.GateDecisions["accept"],
		Refused:         stats.GateDecisions["refuse"],
		MeanTopDistance: stats.MeanTopDistance,
		MeanQuery:       stats.MeanQuerySeconds,
		Threshold:       stats.Threshold,
		IndexLoaded:     stats.IndexLoaded,
		Entries:         stats.IndexEntries,
		Generation:      stats.Generation,
		At:              time.Now(),
	}

	if stats.IndexLoaded {
		ix, err := c.Index(ctx)
		switch {
		case errors.Is(err, ErrNoIndex):
			snap.IndexLoaded = false
		case err != nil:
			return MetricsSnapshot{}, err
		default:
			snap.Model = ix.Model
			snap.Dimension = ix.Dimension
		}
	}
	return snap, nil
}

func sum(m map[string]float64) float64 {
	var total float64
	for _, v := range m {
		total += v
	}
	return total
}
