package validator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var highRiskCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "sentry_validator_high_risk",
	Help: "Number of validations scoring high or critical risk",
})
