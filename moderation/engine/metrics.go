package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var decisionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sentry_pipeline_decisions",
	Help: "Number of non-none moderation decisions, by stage and action",
}, []string{"stage", "action"})

var stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "sentry_pipeline_stage_duration_seconds",
	Help:    "Duration of each pipeline stage",
	Buckets: prometheus.ExponentialBuckets(0.0001, 2, 18),
}, []string{"stage"})

var stageErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sentry_pipeline_stage_errors",
	Help: "Number of recovered stage failures, by stage",
}, []string{"stage"})
