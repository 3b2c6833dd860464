package sanitizer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var emergencyCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "sentry_sanitizer_emergency",
	Help: "Number of times the emergency sanitizer was applied",
})
