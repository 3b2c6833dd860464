package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var checkCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sentry_ratelimit_checks",
	Help: "Number of rate limit checks, by outcome",
}, []string{"outcome"})

var violationCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sentry_ratelimit_violations",
	Help: "Number of rate limit violations, by derived penalty level",
}, []string{"penalty"})
