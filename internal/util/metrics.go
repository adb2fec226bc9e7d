package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	}, []string{"status"})

	OrderStatusTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_transitions_total",
		Help: "Total number of order status writes",
	}, []string{"source", "to"})

	WebhookNotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhook_notifications_total",
		Help: "Total number of payment webhook deliveries received",
	}, []string{"type"})

	ReconcileOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_reconcile_outcomes_total",
		Help: "Outcome of payment reconciliation attempts",
	}, []string{"outcome"})

	GatewayRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_gateway_request_latency_seconds",
		Help:    "Latency of payment gateway calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	VariantMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "variant_mutations_total",
		Help: "Total number of variant create/update/delete operations",
	}, []string{"operation"})

	RestockEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "variant_restock_events_total",
		Help: "Total number of variant restock transitions detected",
	})

	StockNotificationsSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_notifications_sent_total",
		Help: "Total number of back-in-stock notifications delivered",
	})

	StockNotificationsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_notifications_failed_total",
		Help: "Total number of back-in-stock notifications that failed",
	}, []string{"reason"})

	RestockDispatchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "restock_dispatch_latency_seconds",
		Help:    "Latency of a full restock fan-out batch",
		Buckets: prometheus.DefBuckets,
	})

	TaskQueuePending = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "task_queue_pending",
		Help: "Tasks queued or running in a background queue",
	}, []string{"queue"})

	TaskQueueRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "task_queue_rejected_total",
		Help: "Tasks rejected because the queue was full or closed",
	}, []string{"queue"})

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
