package analysis

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var analyzeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "sentry_analysis_duration_sec",
	Help: "Duration of context-augmented analysis calls",
})

var analyzeCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sentry_analysis_requests",
	Help: "Number of analysis invocations, by outcome",
}, []string{"outcome"})

var parseFailureCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "sentry_analysis_parse_failures",
	Help: "Number of malformed or invalid-enum model responses",
})
