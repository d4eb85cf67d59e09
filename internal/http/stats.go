package http

import (
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"
	dto "github.com/prometheus/client_model/go"
)

// StatsResponse is the response body for GET /api/v1/stats. It is a JSON
// view of the process's Prometheus metrics for clients that do not speak
// the exposition format.
type StatsResponse struct {
	UptimeSeconds int64  `json:"uptime_seconds"`
	IndexLoaded   bool   `json:"index_loaded"`
	Generation    string `json:"generation,omitempty"`
	IndexEntries  int    `json:"index_entries"`

	// Retrievals counts retrieval requests by outcome (ok, empty, error).
	Retrievals map[string]float64 `json:"retrievals"`
	// GateDecisions counts gate outcomes (accept, refuse).
	GateDecisions    map[string]float64 `json:"gate_decisions"`
	MeanTopDistance  float64            `json:"mean_top_distance"`
	MeanQuerySeconds float64            `json:"mean_query_seconds"`
	Threshold        float64            `json:"threshold"`

	Goroutines  int    `json:"goroutines"`
	MemoryBytes uint64 `json:"memory_bytes"`
}

func (s *Server) handleStats(c echo.Context) error {
	families, err := s.gatherer.Gather()
	if err != nil {
		return err
	}

	resp := StatsResponse{
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		Retrievals:    map[string]float64{},
		GateDecisions: map[string]float64{},
		Threshold:     s.deps.Gate.Threshold,
		Goroutines:    runtime.NumGoroutine(),
	}
	if ix := s.deps.Index.Load(); ix != nil {
		resp.IndexLoaded = true
		resp.Generation = ix.Manifest().Generation
		resp.IndexEntries = ix.Count()
	}

	for _, f := range families {
		switch f.GetName() {
		case "specrag_retrieval_requests_total":
			sumByLabel(f, "outcome", resp.Retrievals)
		case "specrag_gate_decisions_total":
			sumByLabel(f, "decision", resp.GateDecisions)
		case "specrag_retrieval_top_distance":
			resp.MeanTopDistance = histogramMean(f)
		case "specrag_index_query_duration_seconds":
			resp.MeanQuerySeconds = histogramMean(f)
		}
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	resp.MemoryBytes = mem.HeapAlloc

	return c.JSON(http.StatusOK, resp)
}

func sumByLabel(f *dto.MetricFamily, label string, into map[string]float64) {
	for _, m := range f.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == label {
				into[lp.GetValue()] += m.GetCounter().GetValue()
			}
		}
	}
}

func histogramMean(f *dto.MetricFamily) float64 {
	var sum float64
	var count uint64
	for _, m := range f.GetMetric() {
		sum += m.GetHistogram().GetSampleSum()
		count += m.GetHistogram().GetSampleCount()
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}
