package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"storefront-service/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderCreated publishes OrderCreated event
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	return ep.producer.PublishEvent(ctx, "order-"+event.OrderID, event)
}

// PublishOrderStatusChanged publishes OrderStatusChanged event
func (ep *EventPublisher) PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	return ep.producer.PublishEvent(ctx, "order-"+event.OrderID, event)
}

// PublishVariantRestocked publishes VariantRestocked event
func (ep *EventPublisher) PublishVariantRestocked(ctx context.Context, event *models.VariantRestockedEvent) error {
	return ep.producer.PublishEvent(ctx, "variant-"+event.VariantID, event)
}

// PublishStockNotificationSent publishes StockNotificationSent event
func (ep *EventPublisher) PublishStockNotificationSent(ctx context.Context, event *models.StockNotificationSentEvent) error {
	return ep.producer.PublishEvent(ctx, "variant-"+event.VariantID, event)
}

// NotificationPublisher forwards webhook deliveries to the payment notifications topic
type NotificationPublisher struct {
	producer *Producer
}

// NewNotificationPublisher creates a publisher for the payment notifications topic
func NewNotificationPublisher(producer *Producer) *NotificationPublisher {
	return &NotificationPublisher{producer: producer}
}

// Accept publishes a PaymentNotification event keyed by the gateway resource id
func (np *NotificationPublisher) Accept(ctx context.Context, n models.PaymentNotification) error {
	event := &models.PaymentNotificationEvent{
		BaseEvent: models.BaseEvent{
			EventID:   fmt.Sprintf("%s-%s-%d", n.Type, n.DataID, n.ReceivedAt.UnixNano()),
			EventType: models.EventTypePaymentNotification,
			Timestamp: n.ReceivedAt,
		},
		Notification: n,
	}
	return np.producer.PublishEvent(ctx, "payment-"+n.DataID, event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onPaymentNotification func(context.Context, models.PaymentNotification) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnPaymentNotification registers a handler for PaymentNotification events
func (eh *EventHandler) OnPaymentNotification(handler func(context.Context, models.PaymentNotification) error) {
	eh.onPaymentNotification = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	log.Printf("Handling event: type=%s, id=%s", baseEvent.EventType, baseEvent.EventID)

	switch baseEvent.EventType {
	case models.EventTypePaymentNotification:
		if eh.onPaymentNotification != nil {
			var event models.PaymentNotificationEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PaymentNotification event: %w", err)
			}
			return eh.onPaymentNotification(ctx, event.Notification)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}
