package service

import (
	"context"
	"time"

	"storefront-service/internal/models"
)

// CatalogRepository persists products and variants. Every variant write recomputes the
// parent aggregate atomically with the write itself.
type CatalogRepository interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
	UpdateProduct(ctx context.Context, id string, patch models.ProductPatch) (*models.Product, error)
	UpdateProductBatchStatus(ctx context.Context, id string, status models.BatchStatus, restockDays, preorderDays *int) (*models.Product, error)

	ListVariants(ctx context.Context, productID string, activeOnly bool) ([]models.ProductVariant, error)
	GetVariant(ctx context.Context, id string) (*models.ProductVariant, error)
	CreateVariant(ctx context.Context, variant *models.ProductVariant) error
	UpdateVariant(ctx context.Context, id string, patch models.VariantPatch) (prev, updated *models.ProductVariant, err error)
	DeleteVariant(ctx context.Context, id string) (*models.ProductVariant, error)
	RecomputeProductStock(ctx context.Context, productID string) (int, error)
}

// OrderRepository persists orders, their items and the status audit trail
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	GetOrderByExternalReference(ctx context.Context, ref string) (*models.Order, error)
	ListOrders(ctx context.Context) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus, source models.TransitionSource) (*models.Order, *models.OrderStatusChange, error)
	// UpdateOrderStatusIfChanged compares and writes under one lock; change is nil when the
	// order already holds status.
	UpdateOrderStatusIfChanged(ctx context.Context, id string, status models.OrderStatus, source models.TransitionSource) (order *models.Order, change *models.OrderStatusChange, err error)
	ListStatusHistory(ctx context.Context, orderID string) ([]models.OrderStatusChange, error)
}

// NotificationRepository persists "notify me" subscriptions
type NotificationRepository interface {
	CreateSubscription(ctx context.Context, n *models.StockNotification) (bool, error)
	ListPending(ctx context.Context, variantID string) ([]models.StockNotification, error)
	ListSubscriptions(ctx context.Context, variantID string) ([]models.StockNotification, error)
	MarkNotified(ctx context.Context, id string, at time.Time) (bool, error)
}

// EarlyAccessRepository persists pre-launch registrations
type EarlyAccessRepository interface {
	UpsertEarlyAccess(ctx context.Context, entry *models.EarlyAccessEmail) (bool, error)
	ListEarlyAccess(ctx context.Context) ([]models.EarlyAccessEmail, error)
	VariantPopularity(ctx context.Context) ([]models.VariantPopularity, error)
}

// Repository is the full persistence surface, satisfied by store.Store and memory.Store
type Repository interface {
	CatalogRepository
	OrderRepository
	NotificationRepository
	EarlyAccessRepository
	Ping(ctx context.Context) error
}
