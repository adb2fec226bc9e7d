package service

import (
	"context"
	"fmt"
	"strings"

	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// OrderService is the order ledger: creation, lookups and the single status transition
type OrderService struct {
	repo   OrderRepository
	ids    IDGenerator
	events EventPublisher
	logger *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(repo OrderRepository, ids IDGenerator, events EventPublisher) *OrderService {
	return &OrderService{
		repo:   repo,
		ids:    ids,
		events: events,
		logger: util.GetLogger(),
	}
}

// CreateOrder persists an order and its items. explicitID, when set, becomes both the
// order id and the external reference handed to the payment gateway.
func (s *OrderService) CreateOrder(ctx context.Context, in models.OrderInput, explicitID string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	if err := validateOrderInput(&in); err != nil {
		return nil, err
	}

	id := strings.TrimSpace(explicitID)
	if id == "" {
		id = s.ids.NewID()
	}

	order := &models.Order{
		ID:                id,
		CustomerName:      strings.TrimSpace(in.CustomerName),
		CustomerEmail:     strings.TrimSpace(in.CustomerEmail),
		CustomerPhone:     strings.TrimSpace(in.CustomerPhone),
		Address:           strings.TrimSpace(in.Address),
		City:              strings.TrimSpace(in.City),
		ZipCode:           strings.TrimSpace(in.ZipCode),
		Quantity:          in.Quantity,
		Total:             in.Total,
		Status:            in.Status,
		ExternalReference: id,
		IsPreorder:        in.IsPreorder,
	}
	if in.PaymentReference != "" {
		ref := in.PaymentReference
		order.PaymentReference = &ref
	}

	for _, it := range in.Items {
		item := models.OrderItem{
			ID:        s.ids.NewID(),
			Label:     strings.TrimSpace(it.Label),
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal,
		}
		if in.ProductID != "" {
			productID := in.ProductID
			item.ProductID = &productID
		}
		if it.VariantID != "" {
			variantID := it.VariantID
			item.VariantID = &variantID
		}
		order.Items = append(order.Items, item)
	}

	if err := s.repo.CreateOrder(ctx, order); err != nil {
		util.RecordError(span, err)
		if models.IsValidation(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	util.OrdersCreatedTotal.WithLabelValues(string(order.Status)).Inc()
	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("status", string(order.Status)),
		zap.Bool("preorder", order.IsPreorder))

	event := &models.OrderCreatedEvent{
		BaseEvent:  newBaseEvent(models.EventTypeOrderCreated),
		OrderID:    order.ID,
		Status:     order.Status,
		Total:      order.Total.String(),
		Quantity:   order.Quantity,
		IsPreorder: order.IsPreorder,
	}
	if err := s.events.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}

	return order, nil
}

func validateOrderInput(in *models.OrderInput) error {
	required := []struct {
		field string
		value string
	}{
		{"name", in.CustomerName},
		{"email", in.CustomerEmail},
		{"phone", in.CustomerPhone},
		{"address", in.Address},
		{"city", in.City},
		{"zip_code", in.ZipCode},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return models.Required(r.field)
		}
	}
	if in.Quantity <= 0 {
		return models.Required("quantity")
	}
	if !in.Total.IsPositive() {
		return models.Required("total")
	}

	if in.Status == "" {
		in.Status = models.OrderPending
	}
	if !in.Status.Valid() {
		return &models.ValidationError{Field: "status", Message: "unknown order status " + string(in.Status)}
	}

	for i, it := range in.Items {
		field := fmt.Sprintf("items[%d]", i)
		if it.Quantity <= 0 {
			return &models.ValidationError{Field: field, Message: "quantity must be positive"}
		}
		if it.UnitPrice.IsNegative() {
			return &models.ValidationError{Field: field, Message: "unit price must not be negative"}
		}
		if !it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))).Equal(it.Subtotal) {
			return &models.ValidationError{Field: field, Message: "subtotal must equal quantity times unit price"}
		}
	}
	return nil
}

// GetOrder returns the order with its items, or nil when absent
func (s *OrderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder", attribute.String("order_id", id))
	defer span.End()

	return s.repo.GetOrder(ctx, id)
}

// GetOrderByExternalReference returns the order correlated with a gateway reference, or nil
func (s *OrderService) GetOrderByExternalReference(ctx context.Context, ref string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrderByExternalReference")
	defer span.End()

	return s.repo.GetOrderByExternalReference(ctx, ref)
}

func (s *OrderService) ListOrders(ctx context.Context) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListOrders")
	defer span.End()

	return s.repo.ListOrders(ctx)
}

// SetStatus is the only way an order changes after creation. It writes the status
// unconditionally and records who produced it. Returns nil when the order is absent.
func (s *OrderService) SetStatus(ctx context.Context, id string, status models.OrderStatus, source models.TransitionSource) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.SetStatus",
		attribute.String("order_id", id),
		attribute.String("status", string(status)),
		attribute.String("source", string(source)))
	defer span.End()

	order, _, err := s.setStatus(ctx, id, status, source, s.repo.UpdateOrderStatus)
	if err != nil {
		util.RecordError(span, err)
	}
	return order, err
}

// SetStatusIfChanged writes status only when the order does not already hold it. The
// comparison and the write happen atomically, so concurrent callers with the same
// target produce a single transition. changed is false for the no-op case.
func (s *OrderService) SetStatusIfChanged(ctx context.Context, id string, status models.OrderStatus, source models.TransitionSource) (*models.Order, bool, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.SetStatusIfChanged",
		attribute.String("order_id", id),
		attribute.String("status", string(status)),
		attribute.String("source", string(source)))
	defer span.End()

	order, changed, err := s.setStatus(ctx, id, status, source, s.repo.UpdateOrderStatusIfChanged)
	if err != nil {
		util.RecordError(span, err)
	}
	return order, changed, err
}

type statusWriter func(ctx context.Context, id string, status models.OrderStatus, source models.TransitionSource) (*models.Order, *models.OrderStatusChange, error)

func (s *OrderService) setStatus(ctx context.Context, id string, status models.OrderStatus, source models.TransitionSource, write statusWriter) (*models.Order, bool, error) {
	if err := models.CheckTransition(status, source); err != nil {
		return nil, false, err
	}

	order, change, err := write(ctx, id, status, source)
	if err != nil {
		return nil, false, fmt.Errorf("failed to update order status: %w", err)
	}
	if order == nil || change == nil {
		return order, false, nil
	}

	util.OrderStatusTransitionsTotal.WithLabelValues(string(source), string(status)).Inc()
	s.logger.Info("Order status updated",
		zap.String("order_id", id),
		zap.String("from", string(change.FromStatus)),
		zap.String("to", string(status)),
		zap.String("source", string(source)))

	event := &models.OrderStatusChangedEvent{
		BaseEvent:  newBaseEvent(models.EventTypeOrderStatusChanged),
		OrderID:    id,
		FromStatus: change.FromStatus,
		ToStatus:   status,
		Source:     source,
	}
	if err := s.events.PublishOrderStatusChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderStatusChanged event", zap.Error(err))
	}

	return order, true, nil
}

// History returns the status audit trail of an order
func (s *OrderService) History(ctx context.Context, id string) ([]models.OrderStatusChange, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.History", attribute.String("order_id", id))
	defer span.End()

	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, &models.NotFoundError{Resource: "order", ID: id}
	}
	return s.repo.ListStatusHistory(ctx, id)
}
