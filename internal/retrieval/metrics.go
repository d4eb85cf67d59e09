package retrieval

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeOK    = "ok"
	outcomeEmpty = "empty"
	outcomeError = "error"

	decisionAccept = "accept"
	decisionRefuse = "refuse"
)

var (
	// RequestsTotal counts Retrieve calls.
	// Labels: outcome (ok, empty, error)
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "specrag",
			Subsystem: "retrieval",
			Name:      "requests_total",
			Help:      "Total number of retrieval requests by outcome",
		},
		[]string{"outcome"},
	)

	// TopDistance is the distribution of top-1 cosine distances. Mass near
	// the refusal threshold means the gate is deciding many queries.
	TopDistance = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "specrag",
			Subsystem: "retrieval",
			Name:      "top_distance",
			Help:      "Cosine distance of the closest result per retrieval",
			Buckets:   []float64{0.05, 0.1, 0.2, 0.3, 0.35, 0.4, 0.45, 0.5, 0.55, 0.6, 0.8, 1.0},
		},
	)

	// GateDecisions counts confidence gate outcomes.
	// Labels: decision (accept, refuse)
	GateDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "specrag",
			Subsystem: "gate",
			Name:      "decisions_total",
			Help:      "Total number of confidence gate decisions",
		},
		[]string{"decision"},
	)
)
