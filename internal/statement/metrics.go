package statement

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DocumentsTotal counts processed uploads by extraction mode and outcome
	DocumentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statement_ledger_documents_total",
			Help: "Total number of statements processed",
		},
		[]string{"mode", "outcome"},
	)

	// CacheHitsTotal counts uploads answered from the session cache
	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "statement_ledger_cache_hits_total",
			Help: "Total number of uploads served from the session cache",
		},
	)

	// ExtractionDuration tracks how long extraction takes per document
	ExtractionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "statement_ledger_extraction_duration_seconds",
			Help:    "Extraction duration in seconds",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
		},
		[]string{"mode"},
	)

	// RowsParsed tracks how many rows each parse produced
	RowsParsed = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "statement_ledger_rows_parsed",
			Help:    "Number of transaction rows produced per parse",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)
)
