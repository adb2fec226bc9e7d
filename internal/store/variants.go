package store

import (
	"context"
	"fmt"

	"storefront-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const variantColumns = `id, product_id, label, image_url, stock, batch_status,
	estimated_restock_days, estimated_preorder_delivery_days, sort_order, is_active, created_at, updated_at`

// ListVariants retrieves the variants of a product ordered for display
func (s *Store) ListVariants(ctx context.Context, productID string, activeOnly bool) ([]models.ProductVariant, error) {
	query := "SELECT " + variantColumns + " FROM product_variants WHERE product_id = $1"
	if activeOnly {
		query += " AND is_active = TRUE"
	}
	query += " ORDER BY sort_order, created_at"

	variants := []models.ProductVariant{}
	err := s.db.SelectContext(ctx, &variants, query, productID)
	if isAbsent(err) {
		return variants, nil
	}
	return variants, err
}

// GetVariant retrieves a variant by ID, nil when absent
func (s *Store) GetVariant(ctx context.Context, id string) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	err := s.db.GetContext(ctx, &variant, "SELECT "+variantColumns+" FROM product_variants WHERE id = $1", id)
	if isAbsent(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get variant: %w", err)
	}
	return &variant, nil
}

// CreateVariant inserts a variant and recomputes the parent stock in the same transaction
func (s *Store) CreateVariant(ctx context.Context, variant *models.ProductVariant) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	found, err := lockProduct(ctx, tx, variant.ProductID)
	if err != nil {
		return err
	}
	if !found {
		return &models.NotFoundError{Resource: "product", ID: variant.ProductID}
	}

	query := `
		INSERT INTO product_variants (id, product_id, label, image_url, stock, batch_status,
			estimated_restock_days, estimated_preorder_delivery_days, sort_order, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`

	err = tx.QueryRowxContext(ctx, query,
		variant.ID, variant.ProductID, variant.Label, variant.ImageURL, variant.Stock, variant.BatchStatus,
		variant.EstimatedRestockDays, variant.EstimatedPreorderDays, variant.SortOrder, variant.Active,
	).Scan(&variant.CreatedAt, &variant.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert variant: %w", err)
	}

	if _, err := recomputeStockTx(ctx, tx, variant.ProductID); err != nil {
		return err
	}

	return tx.Commit()
}

// UpdateVariant applies patch under a row lock and returns the state before and after.
// Both are nil when the variant does not exist.
func (s *Store) UpdateVariant(ctx context.Context, id string, patch models.VariantPatch) (*models.ProductVariant, *models.ProductVariant, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	productID, err := variantProductID(ctx, tx, id)
	if err != nil || productID == "" {
		return nil, nil, err
	}

	// product row first so concurrent writers on sibling variants serialize on the aggregate
	if _, err := lockProduct(ctx, tx, productID); err != nil {
		return nil, nil, err
	}

	var prev models.ProductVariant
	err = tx.GetContext(ctx, &prev,
		"SELECT "+variantColumns+" FROM product_variants WHERE id = $1 FOR UPDATE", id)
	if isAbsent(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock variant: %w", err)
	}

	updated := prev
	patch.Apply(&updated)

	query := `
		UPDATE product_variants SET
			label = $2, image_url = $3, stock = $4, batch_status = $5,
			estimated_restock_days = $6, estimated_preorder_delivery_days = $7,
			sort_order = $8, is_active = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err = tx.QueryRowxContext(ctx, query,
		id, updated.Label, updated.ImageURL, updated.Stock, updated.BatchStatus,
		updated.EstimatedRestockDays, updated.EstimatedPreorderDays, updated.SortOrder, updated.Active,
	).Scan(&updated.UpdatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update variant: %w", err)
	}

	if patch.TouchesAggregate() {
		if _, err := recomputeStockTx(ctx, tx, productID); err != nil {
			return nil, nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return &prev, &updated, nil
}

// DeleteVariant hard-deletes a variant and recomputes the parent stock. Returns nil when absent.
func (s *Store) DeleteVariant(ctx context.Context, id string) (*models.ProductVariant, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	productID, err := variantProductID(ctx, tx, id)
	if err != nil || productID == "" {
		return nil, err
	}
	if _, err := lockProduct(ctx, tx, productID); err != nil {
		return nil, err
	}

	var deleted models.ProductVariant
	err = tx.GetContext(ctx, &deleted,
		"DELETE FROM product_variants WHERE id = $1 RETURNING "+variantColumns, id)
	if isAbsent(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete variant: %w", err)
	}

	if _, err := recomputeStockTx(ctx, tx, productID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &deleted, nil
}

// RecomputeProductStock sets products.stock to the sum of its active variants
func (s *Store) RecomputeProductStock(ctx context.Context, productID string) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	found, err := lockProduct(ctx, tx, productID)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, &models.NotFoundError{Resource: "product", ID: productID}
	}

	stock, err := recomputeStockTx(ctx, tx, productID)
	if err != nil {
		return 0, err
	}
	return stock, tx.Commit()
}

func recomputeStockTx(ctx context.Context, tx *sqlx.Tx, productID string) (int, error) {
	query := `
		UPDATE products SET
			stock = (
				SELECT COALESCE(SUM(stock), 0)
				FROM product_variants
				WHERE product_id = $1 AND is_active = TRUE
			),
			updated_at = NOW()
		WHERE id = $1
		RETURNING stock`

	var stock int
	if err := tx.GetContext(ctx, &stock, query, productID); err != nil {
		return 0, fmt.Errorf("failed to recalculate product stock: %w", err)
	}
	return stock, nil
}

func lockProduct(ctx context.Context, tx *sqlx.Tx, productID string) (bool, error) {
	var id string
	err := tx.GetContext(ctx, &id, "SELECT id FROM products WHERE id = $1 FOR UPDATE", productID)
	if isAbsent(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to lock product: %w", err)
	}
	return true, nil
}

func variantProductID(ctx context.Context, tx *sqlx.Tx, variantID string) (string, error) {
	var productID string
	err := tx.GetContext(ctx, &productID, "SELECT product_id FROM product_variants WHERE id = $1", variantID)
	if isAbsent(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve variant product: %w", err)
	}
	return productID, nil
}
