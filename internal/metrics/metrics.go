// Package metrics holds the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChargesTotal counts charge attempts by environment and result code.
	ChargesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coaching",
		Subsystem: "billing",
		Name:      "charges_total",
		Help:      "Charge attempts by environment and result code.",
	}, []string{"env", "code"})

	ChargeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "coaching",
		Subsystem: "billing",
		Name:      "charge_duration_seconds",
		Help:      "Charge execution duration in seconds, preconditions included.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"env"})

	// WebhookRequestsTotal counts Stripe webhook requests by event type and status.
	WebhookRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coaching",
		Subsystem: "billing",
		Name:      "webhook_requests_total",
		Help:      "Total Stripe webhook requests by event type and HTTP status.",
	}, []string{"event_type", "status"})

	// ReadinessUpdatesTotal counts readiness writes by source (push/pull) and result.
	ReadinessUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coaching",
		Subsystem: "billing",
		Name:      "readiness_updates_total",
		Help:      "Account readiness updates by source and result.",
	}, []string{"source", "result"})

	ChargeOutcomesUnknown = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coaching",
		Subsystem: "billing",
		Name:      "charge_outcomes_unknown_total",
		Help:      "Charges whose processor outcome could not be determined.",
	}, []string{"env"})
)
