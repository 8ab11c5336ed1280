// Package metrics exposes the Prometheus counters for bookings and payment
// notifications.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NotificationsProcessed counts gateway notifications by channel
	// (return, callback) and result (the mapped status or the error kind).
	NotificationsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payments",
			Name:      "notifications_total",
			Help:      "The total number of gateway notifications handled",
		},
		[]string{"channel", "result"},
	)

	// ReconcileDuration observes the time spent reconciling one notification.
	ReconcileDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "payments",
			Name:      "reconcile_duration_seconds",
			Help:      "Time spent reconciling a gateway notification",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"channel"},
	)

	// BookingAttempts counts reservation writes by operation and outcome.
	BookingAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookings",
			Name:      "attempts_total",
			Help:      "The total number of reservation create and update attempts",
		},
		[]string{"operation", "result"},
	)
)

// Result labels shared by the counters.
const (
	ResultOK = "ok"
)
