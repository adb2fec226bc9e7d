package store

import (
	"context"
	"fmt"

	"storefront-service/internal/models"
)

const orderColumns = `id, customer_name, customer_email, customer_phone, address, city, zip_code,
	quantity, total, status, external_reference, payment_reference, is_preorder, created_at, updated_at`

// CreateOrder creates an order together with its items
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO orders (id, customer_name, customer_email, customer_phone, address, city, zip_code,
			quantity, total, status, external_reference, payment_reference, is_preorder)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at`

	err = tx.QueryRowxContext(ctx, query,
		order.ID, order.CustomerName, order.CustomerEmail, order.CustomerPhone, order.Address, order.City,
		order.ZipCode, order.Quantity, order.Total, order.Status, order.ExternalReference,
		order.PaymentReference, order.IsPreorder,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return &models.ValidationError{Field: "id", Message: "order already exists"}
		}
		if isInvalidID(err) {
			return &models.ValidationError{Field: "id", Message: "must be a valid UUID"}
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (id, order_id, product_id, variant_id, label, quantity, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		err := tx.QueryRowxContext(ctx, itemQuery,
			item.ID, item.OrderID, item.ProductID, item.VariantID, item.Label,
			item.Quantity, item.UnitPrice, item.Subtotal,
		).Scan(&item.CreatedAt)
		if err != nil {
			if isForeignKeyViolation(err) {
				return &models.ValidationError{Field: "items", Message: "references an unknown product or variant"}
			}
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	return tx.Commit()
}

// GetOrder retrieves an order with its items, nil when absent
func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	return s.getOrderBy(ctx, "id", id)
}

// GetOrderByExternalReference retrieves the order correlated with a gateway external reference
func (s *Store) GetOrderByExternalReference(ctx context.Context, ref string) (*models.Order, error) {
	return s.getOrderBy(ctx, "external_reference", ref)
}

func (s *Store) getOrderBy(ctx context.Context, column, value string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT "+orderColumns+" FROM orders WHERE "+column+" = $1", value)
	if isAbsent(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	items, err := s.GetOrderItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return &order, nil
}

// ListOrders retrieves all orders, newest first
func (s *Store) ListOrders(ctx context.Context) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders,
		"SELECT "+orderColumns+" FROM orders ORDER BY created_at DESC")
	return orders, err
}

// GetOrderItems retrieves all items for an order
func (s *Store) GetOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	err := s.db.SelectContext(ctx, &items, `
		SELECT id, order_id, product_id, variant_id, label, quantity, unit_price, subtotal, created_at
		FROM order_items WHERE order_id = $1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	return items, nil
}

// UpdateOrderStatus writes status unconditionally and appends a history row.
// Returns nil when the order does not exist.
func (s *Store) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus, source models.TransitionSource) (*models.Order, *models.OrderStatusChange, error) {
	return s.updateOrderStatus(ctx, id, status, source, false)
}

// UpdateOrderStatusIfChanged is UpdateOrderStatus decided under the row lock: when the
// order already holds status nothing is written and the returned change is nil.
func (s *Store) UpdateOrderStatusIfChanged(ctx context.Context, id string, status models.OrderStatus, source models.TransitionSource) (*models.Order, *models.OrderStatusChange, error) {
	return s.updateOrderStatus(ctx, id, status, source, true)
}

func (s *Store) updateOrderStatus(ctx context.Context, id string, status models.OrderStatus, source models.TransitionSource, skipUnchanged bool) (*models.Order, *models.OrderStatusChange, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	var current models.Order
	err = tx.GetContext(ctx, &current, "SELECT "+orderColumns+" FROM orders WHERE id = $1 FOR UPDATE", id)
	if isAbsent(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock order: %w", err)
	}
	if skipUnchanged && current.Status == status {
		return &current, nil, tx.Commit()
	}

	var order models.Order
	err = tx.GetContext(ctx, &order,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 RETURNING "+orderColumns,
		status, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update order status: %w", err)
	}

	change := models.OrderStatusChange{
		OrderID:    id,
		FromStatus: current.Status,
		ToStatus:   status,
		Source:     source,
	}
	err = tx.QueryRowxContext(ctx, `
		INSERT INTO order_status_history (order_id, from_status, to_status, source)
		VALUES ($1, $2, $3, $4)
		RETURNING id, changed_at`,
		change.OrderID, change.FromStatus, change.ToStatus, change.Source,
	).Scan(&change.ID, &change.ChangedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to record status change: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return &order, &change, nil
}

// ListStatusHistory returns the audit trail of an order, oldest first
func (s *Store) ListStatusHistory(ctx context.Context, orderID string) ([]models.OrderStatusChange, error) {
	history := []models.OrderStatusChange{}
	err := s.db.SelectContext(ctx, &history, `
		SELECT id, order_id, from_status, to_status, source, changed_at
		FROM order_status_history WHERE order_id = $1 ORDER BY changed_at, id`, orderID)
	if isAbsent(err) {
		return history, nil
	}
	return history, err
}
