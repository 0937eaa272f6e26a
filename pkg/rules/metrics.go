package rules

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	evaluations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "formrules_evaluations_total",
		Help: "Rule evaluation passes.",
	})

	ruleFaults = promauto.NewCounter(prometheus.CounterOpts{
		Name: "formrules_rule_faults_total",
		Help: "Rules skipped because their evaluation failed.",
	})

	evaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "formrules_evaluation_duration_seconds",
		Help:    "Duration of one evaluation pass.",
		Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
	})
)
