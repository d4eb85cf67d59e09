package vectorstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BuildDuration tracks wall time of index builds, embedding included.
	BuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "specrag",
			Subsystem: "index",
			Name:      "build_duration_seconds",
			Help:      "Duration of index builds in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	// BuildsTotal counts builds.
	// Labels: result (success, error)
	BuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "specrag",
			Subsystem: "index",
			Name:      "builds_total",
			Help:      "Total number of index builds",
		},
		[]string{"result"},
	)

	// IndexEntries is the entry count of the most recently built or opened
	// generation.
	IndexEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "specrag",
			Name:      "index_entries",
			Help:      "Number of entries in the live index",
		},
	)

	// QueryDuration tracks nearest-neighbor lookups, excluding embedding.
	QueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "specrag",
			Subsystem: "index",
			Name:      "query_duration_seconds",
			Help:      "Duration of nearest-neighbor queries in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
