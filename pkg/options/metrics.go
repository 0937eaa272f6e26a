package options

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "formrules_option_cache_lookups_total",
			Help: "Option cache lookups by result (hit, miss, expired).",
		},
		[]string{"result"},
	)

	remoteFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "formrules_option_fetches_total",
			Help: "Remote option fetches by outcome (ok, empty, error).",
		},
		[]string{"outcome"},
	)

	fetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "formrules_option_fetch_duration_seconds",
			Help:    "Latency of remote option fetches.",
			Buckets: prometheus.DefBuckets,
		},
	)
)
