// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "favorex",
		Name:      "transitions_total",
		Help:      "Request/assignment lifecycle operations by outcome.",
	}, []string{"operation", "outcome"})

	PointsAwarded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "favorex",
		Name:      "points_awarded_total",
		Help:      "Sum of ledger deltas credited for completed requests.",
	})

	RecurrencesSpawned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "favorex",
		Name:      "recurrences_spawned_total",
		Help:      "Successor requests created for recurring requests.",
	})

	GatewayRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "favorex",
		Name:      "gateway_retries_total",
		Help:      "Transactions retried after a transient database error.",
	}, []string{"reason"})

	NotificationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "favorex",
		Name:      "notification_failures_total",
		Help:      "Notifications that could not be delivered.",
	}, []string{"event"})
)

// Outcome labels
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// ObserveTransition records the outcome of a lifecycle operation.
func ObserveTransition(operation string, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	Transitions.WithLabelValues(operation, outcome).Inc()
}

// Handler serves the default registry.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
