package actions

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var executeCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sentry_actions_executed",
	Help: "Number of actions executed, by action and success",
}, []string{"action", "success"})
