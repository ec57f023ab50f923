package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RegistrationsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "registrations_created_total",
		Help: "Total number of registrations created",
	})

	RegistrationsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "registrations_failed_total",
		Help: "Total number of registration attempts that failed",
	}, []string{"reason"})

	RegistrationsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "registrations_expired_total",
		Help: "Total number of pending registrations expired by the sweeper",
	})

	PaymentConfirmAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_confirm_attempts_total",
		Help: "Total number of payment confirmation attempts",
	})

	PaymentConfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_confirmed_total",
		Help: "Total number of payments confirmed as paid",
	})

	PaymentFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_failed_total",
		Help: "Total number of failed payment confirmations",
	}, []string{"reason"})

	PaymentConfirmLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_confirm_latency_seconds",
		Help:    "Latency of the payment confirmation flow",
		Buckets: prometheus.DefBuckets,
	})

	PaymentReconciliationNeeded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_reconciliation_needed_total",
		Help: "Payments confirmed by the provider whose DB update failed",
	})

	WebhooksReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhooks_received_total",
		Help: "Total number of webhook deliveries by event type",
	}, []string{"event_type"})

	WebhooksRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhooks_rejected_total",
		Help: "Total number of webhook deliveries with an invalid signature",
	})

	SweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sweep_runs_total",
		Help: "Total number of expiry sweeper runs",
	})

	SlotReservationsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slot_reservations_failed_total",
		Help: "Total number of registrations rejected for lack of camp slots",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
