package runtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reconcilePasses = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "formrules_runtime_reconcile_passes",
			Help:    "Evaluation passes needed for a value change to settle.",
			Buckets: []float64{1, 2, 3, 4, 6, 8},
		},
	)

	unsettledReconciles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "formrules_runtime_unsettled_total",
			Help: "Reconciliations stopped by the pass limit.",
		},
	)
)
