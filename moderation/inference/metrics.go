package inference

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var generateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "sentry_inference_duration_sec",
	Help: "Duration of inference provider calls",
})

var generateCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sentry_inference_requests",
	Help: "Number of inference provider calls, by HTTP status or error kind",
}, []string{"status"})
