package service

import (
	"context"
	"fmt"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ReconcileOutcome describes what a reconcile call did
type ReconcileOutcome string

const (
	OutcomeNotFound  ReconcileOutcome = "not_found"
	OutcomeUnmapped  ReconcileOutcome = "unmapped"
	OutcomeUnchanged ReconcileOutcome = "unchanged"
	OutcomeUpdated   ReconcileOutcome = "updated"
)

// MapGatewayStatus translates a gateway payment status into an order status.
// ok is false for statuses that carry no order meaning.
func MapGatewayStatus(gatewayStatus string) (models.OrderStatus, bool) {
	switch gatewayStatus {
	case "approved":
		return models.OrderConfirmed, true
	case "pending", "in_process", "in_mediation":
		return models.OrderPending, true
	case "rejected", "cancelled", "refunded", "charged_back":
		return models.OrderCancelled, true
	}
	return "", false
}

// PaymentReconciler applies gateway payment outcomes to orders
type PaymentReconciler struct {
	orders  *OrderService
	gateway PaymentGateway
	logger  *zap.Logger
}

// NewPaymentReconciler creates a new payment reconciler
func NewPaymentReconciler(orders *OrderService, gateway PaymentGateway) *PaymentReconciler {
	return &PaymentReconciler{
		orders:  orders,
		gateway: gateway,
		logger:  util.GetLogger(),
	}
}

// Reconcile moves the order correlated with externalReference to the status implied by
// gatewayStatus. Unknown references and statuses are logged and skipped; repeating the
// same pair is a no-op.
func (r *PaymentReconciler) Reconcile(ctx context.Context, externalReference, gatewayStatus string) (ReconcileOutcome, error) {
	ctx, span := util.StartSpan(ctx, "PaymentReconciler.Reconcile",
		attribute.String("external_reference", externalReference),
		attribute.String("gateway_status", gatewayStatus))
	defer span.End()

	outcome, err := r.reconcile(ctx, externalReference, gatewayStatus)
	if err != nil {
		util.RecordError(span, err)
		util.ReconcileOutcomesTotal.WithLabelValues("error").Inc()
		return outcome, err
	}
	util.ReconcileOutcomesTotal.WithLabelValues(string(outcome)).Inc()
	span.SetAttributes(attribute.String("outcome", string(outcome)))
	return outcome, nil
}

func (r *PaymentReconciler) reconcile(ctx context.Context, externalReference, gatewayStatus string) (ReconcileOutcome, error) {
	order, err := r.orders.GetOrderByExternalReference(ctx, externalReference)
	if err != nil {
		return "", fmt.Errorf("failed to look up order: %w", err)
	}
	if order == nil {
		r.logger.Warn("Payment notification for unknown order",
			zap.String("external_reference", externalReference),
			zap.String("gateway_status", gatewayStatus))
		return OutcomeNotFound, nil
	}

	target, ok := MapGatewayStatus(gatewayStatus)
	if !ok {
		r.logger.Warn("Unmapped gateway payment status",
			zap.String("order_id", order.ID),
			zap.String("gateway_status", gatewayStatus))
		return OutcomeUnmapped, nil
	}

	updated, changed, err := r.orders.SetStatusIfChanged(ctx, order.ID, target, models.SourcePaymentEvent)
	if err != nil {
		return "", err
	}
	if updated == nil {
		r.logger.Warn("Order disappeared during reconciliation", zap.String("order_id", order.ID))
		return OutcomeNotFound, nil
	}
	if !changed {
		r.logger.Debug("Order already in target status",
			zap.String("order_id", order.ID),
			zap.String("status", string(target)))
		return OutcomeUnchanged, nil
	}

	r.logger.Info("Order reconciled from payment",
		zap.String("order_id", order.ID),
		zap.String("to", string(target)))
	return OutcomeUpdated, nil
}

// HandleNotification processes one webhook delivery. Only "payment" notifications are
// reconciled; gateway failures are logged and absorbed.
func (r *PaymentReconciler) HandleNotification(ctx context.Context, n models.PaymentNotification) error {
	ctx, span := util.StartSpan(ctx, "PaymentReconciler.HandleNotification",
		attribute.String("type", n.Type),
		attribute.String("data_id", n.DataID))
	defer span.End()

	if n.Type != "payment" {
		r.logger.Info("Ignoring non-payment notification", zap.String("type", n.Type), zap.String("data_id", n.DataID))
		return nil
	}
	if n.DataID == "" {
		r.logger.Warn("Payment notification without payment id")
		return nil
	}

	payment, err := r.gateway.GetPayment(ctx, n.DataID)
	if err != nil {
		util.RecordError(span, err)
		r.logger.Error("Failed to fetch payment details", zap.String("payment_id", n.DataID), zap.Error(err))
		return nil
	}

	if _, err := r.Reconcile(ctx, payment.ExternalReference, payment.Status); err != nil {
		r.logger.Error("Failed to reconcile payment",
			zap.String("payment_id", payment.ID),
			zap.String("external_reference", payment.ExternalReference),
			zap.Error(err))
	}
	return nil
}

// Accept lets the reconciler stand in for the Kafka sink when messaging is disabled
func (r *PaymentReconciler) Accept(ctx context.Context, n models.PaymentNotification) error {
	return r.HandleNotification(ctx, n)
}

// WebhookIntake hands acknowledged webhook deliveries to the background queue
type WebhookIntake struct {
	queue    TaskSubmitter
	sink     PaymentNotificationSink
	deadline time.Duration
	logger   *zap.Logger
}

// NewWebhookIntake creates an intake whose processing is bounded by deadline
func NewWebhookIntake(queue TaskSubmitter, sink PaymentNotificationSink, deadline time.Duration) *WebhookIntake {
	return &WebhookIntake{
		queue:    queue,
		sink:     sink,
		deadline: deadline,
		logger:   util.GetLogger(),
	}
}

// Enqueue schedules the notification without waiting for it. The task runs under its
// own context so the HTTP response is never held back by it.
func (w *WebhookIntake) Enqueue(ctx context.Context, n models.PaymentNotification) error {
	if n.ReceivedAt.IsZero() {
		n.ReceivedAt = time.Now()
	}
	util.WebhookNotificationsTotal.WithLabelValues(n.Type).Inc()

	parent := trace.SpanContextFromContext(ctx)
	err := w.queue.Submit("payment-notification:"+n.DataID, func(taskCtx context.Context) {
		taskCtx = trace.ContextWithRemoteSpanContext(taskCtx, parent)
		taskCtx, cancel := context.WithTimeout(taskCtx, w.deadline)
		defer cancel()

		if err := w.sink.Accept(taskCtx, n); err != nil {
			w.logger.Error("Failed to process payment notification",
				zap.String("type", n.Type),
				zap.String("data_id", n.DataID),
				zap.Error(err))
		}
	})
	if err != nil {
		w.logger.Error("Payment notification dropped", zap.String("data_id", n.DataID), zap.Error(err))
		return err
	}
	return nil
}
