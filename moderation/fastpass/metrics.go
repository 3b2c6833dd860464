package fastpass

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var checkCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sentry_fastpass_triggered",
	Help: "Number of fast-pass matches, by matcher",
}, []string{"matcher"})
