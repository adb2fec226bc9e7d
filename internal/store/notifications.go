package store

import (
	"context"
	"fmt"
	"time"

	"storefront-service/internal/models"
)

const notificationColumns = `id, variant_id, email, variant_qty, variant_label, notified, created_at, notified_at`

// CreateSubscription inserts a pending subscription. When (variant, email) already exists
// the row is left untouched, n is filled with the stored row and created is false.
func (s *Store) CreateSubscription(ctx context.Context, n *models.StockNotification) (bool, error) {
	query := `
		INSERT INTO stock_notifications (id, variant_id, email, variant_qty, variant_label)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (variant_id, email) DO NOTHING
		RETURNING ` + notificationColumns

	err := s.db.GetContext(ctx, n, query, n.ID, n.VariantID, n.Email, n.Quantity, n.VariantLabel)
	if err == nil {
		return true, nil
	}
	if isForeignKeyViolation(err) || isInvalidID(err) {
		return false, &models.NotFoundError{Resource: "variant", ID: n.VariantID}
	}
	if !isAbsent(err) {
		return false, fmt.Errorf("failed to create stock notification: %w", err)
	}

	err = s.db.GetContext(ctx, n,
		"SELECT "+notificationColumns+" FROM stock_notifications WHERE variant_id = $1 AND email = $2",
		n.VariantID, n.Email)
	if err != nil {
		return false, fmt.Errorf("failed to load existing stock notification: %w", err)
	}
	return false, nil
}

// ListPending returns unsent subscriptions for a variant, oldest first
func (s *Store) ListPending(ctx context.Context, variantID string) ([]models.StockNotification, error) {
	pending := []models.StockNotification{}
	err := s.db.SelectContext(ctx, &pending,
		"SELECT "+notificationColumns+` FROM stock_notifications
		WHERE variant_id = $1 AND notified = FALSE
		ORDER BY created_at ASC, id`, variantID)
	if isAbsent(err) {
		return pending, nil
	}
	return pending, err
}

// ListSubscriptions returns subscriptions newest first, optionally for one variant
func (s *Store) ListSubscriptions(ctx context.Context, variantID string) ([]models.StockNotification, error) {
	subs := []models.StockNotification{}
	var err error
	if variantID == "" {
		err = s.db.SelectContext(ctx, &subs,
			"SELECT "+notificationColumns+" FROM stock_notifications ORDER BY created_at DESC")
	} else {
		err = s.db.SelectContext(ctx, &subs,
			"SELECT "+notificationColumns+" FROM stock_notifications WHERE variant_id = $1 ORDER BY created_at DESC",
			variantID)
	}
	if isAbsent(err) {
		return subs, nil
	}
	return subs, err
}

// MarkNotified flags a pending subscription as sent. Reports false if it was already sent or is unknown.
func (s *Store) MarkNotified(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE stock_notifications SET notified = TRUE, notified_at = $2 WHERE id = $1 AND notified = FALSE",
		id, at)
	if isAbsent(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to mark notification sent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
