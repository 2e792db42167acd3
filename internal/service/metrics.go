package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mediationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conflict_mediator_mediations_total",
		Help: "Finished mediation sessions by outcome status",
	}, []string{"status"})

	conflictsDetectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conflict_mediator_conflicts_detected_total",
		Help: "Conflict records produced by analysis or host signals, by kind",
	}, []string{"kind"})

	optionsAppliedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conflict_mediator_options_applied_total",
		Help: "Resolution options applied to the registry, by option kind",
	}, []string{"kind"})

	registrySaveFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "conflict_mediator_registry_save_failures_total",
		Help: "Registry persistence failures after an apply step",
	})

	analysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "conflict_mediator_analysis_duration_seconds",
		Help:    "Time spent analyzing one failure descriptor",
		Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1},
	})

	reportsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "conflict_mediator_reports_dropped_total",
		Help: "Failure reports rejected because the queue was full or stopped",
	})

	reporterQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "conflict_mediator_reporter_queue_depth",
		Help: "Failure reports waiting for a mediation worker",
	})
)
