package service

import (
	"context"
	"time"

	"storefront-service/internal/models"

	"github.com/google/uuid"
)

// EventPublisher publishes store domain events
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
	PublishVariantRestocked(ctx context.Context, event *models.VariantRestockedEvent) error
	PublishStockNotificationSent(ctx context.Context, event *models.StockNotificationSentEvent) error
}

// NopPublisher drops events. Used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishOrderCreated(context.Context, *models.OrderCreatedEvent) error { return nil }

func (NopPublisher) PublishOrderStatusChanged(context.Context, *models.OrderStatusChangedEvent) error {
	return nil
}

func (NopPublisher) PublishVariantRestocked(context.Context, *models.VariantRestockedEvent) error {
	return nil
}

func (NopPublisher) PublishStockNotificationSent(context.Context, *models.StockNotificationSentEvent) error {
	return nil
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}
