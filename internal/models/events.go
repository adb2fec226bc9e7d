package models

import "time"

// Event types
const (
	EventTypeOrderCreated          = "ORDER_CREATED"
	EventTypeOrderStatusChanged    = "ORDER_STATUS_CHANGED"
	EventTypeVariantRestocked      = "VARIANT_RESTOCKED"
	EventTypeStockNotificationSent = "STOCK_NOTIFICATION_SENT"
	EventTypePaymentNotification   = "PAYMENT_NOTIFICATION_RECEIVED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published when an order row is created
type OrderCreatedEvent struct {
	BaseEvent
	OrderID    string      `json:"order_id"`
	Status     OrderStatus `json:"status"`
	Total      string      `json:"total"`
	Quantity   int         `json:"quantity"`
	IsPreorder bool        `json:"is_preorder"`
}

// OrderStatusChangedEvent published on every status write
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID    string           `json:"order_id"`
	FromStatus OrderStatus      `json:"from_status"`
	ToStatus   OrderStatus      `json:"to_status"`
	Source     TransitionSource `json:"source"`
}

// VariantRestockedEvent published when a variant crosses into availability
type VariantRestockedEvent struct {
	BaseEvent
	VariantID   string      `json:"variant_id"`
	ProductID   string      `json:"product_id"`
	BatchStatus BatchStatus `json:"batch_status"`
	Stock       int         `json:"stock"`
}

// StockNotificationSentEvent published after a subscriber is marked notified
type StockNotificationSentEvent struct {
	BaseEvent
	SubscriptionID string `json:"subscription_id"`
	VariantID      string `json:"variant_id"`
	Email          string `json:"email"`
}

// PaymentNotificationEvent carries a webhook delivery to the payment worker
type PaymentNotificationEvent struct {
	BaseEvent
	Notification PaymentNotification `json:"notification"`
}
