package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"storefront-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

//go:embed schema.sql
var schema string

const productColumns = `id, name, description, price, stock, batch_status,
	estimated_restock_days, estimated_preorder_delivery_days, created_at, updated_at`

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks connectivity, used by the readiness probe
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate applies the embedded schema. Statements are idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// CreateProduct inserts a catalog product. Stock starts at zero and is owned by the variants.
func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	query := `
		INSERT INTO products (id, name, description, price, stock, batch_status,
			estimated_restock_days, estimated_preorder_delivery_days)
		VALUES ($1, $2, $3, $4, 0, $5, $6, $7)
		RETURNING stock, created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		product.ID, product.Name, product.Description, product.Price, product.BatchStatus,
		product.EstimatedRestockDays, product.EstimatedPreorderDays,
	).Scan(&product.Stock, &product.CreatedAt, &product.UpdatedAt)
}

// GetProduct retrieves a product by ID, nil when absent
func (s *Store) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if isAbsent(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &product, nil
}

// ListProducts retrieves all products
func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products, "SELECT "+productColumns+" FROM products ORDER BY created_at")
	return products, err
}

// UpdateProduct edits name, description and price. Stock is not writable here.
func (s *Store) UpdateProduct(ctx context.Context, id string, patch models.ProductPatch) (*models.Product, error) {
	query := `
		UPDATE products SET
			name = COALESCE($2, name),
			description = COALESCE($3, description),
			price = COALESCE($4, price),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + productColumns

	var price interface{}
	if patch.Price != nil {
		price = *patch.Price
	}

	var product models.Product
	err := s.db.GetContext(ctx, &product, query, id, patch.Name, patch.Description, price)
	if isAbsent(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return &product, nil
}

// UpdateProductBatchStatus sets the product level availability label and optional ETAs
func (s *Store) UpdateProductBatchStatus(ctx context.Context, id string, status models.BatchStatus, restockDays, preorderDays *int) (*models.Product, error) {
	query := `
		UPDATE products SET
			batch_status = $2,
			estimated_restock_days = COALESCE($3, estimated_restock_days),
			estimated_preorder_delivery_days = COALESCE($4, estimated_preorder_delivery_days),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + productColumns

	var product models.Product
	err := s.db.GetContext(ctx, &product, query, id, status, restockDays, preorderDays)
	if isAbsent(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update batch status: %w", err)
	}
	return &product, nil
}

// isAbsent treats missing rows and malformed UUIDs as "not found"
func isAbsent(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, sql.ErrNoRows) || isInvalidID(err)
}

func isInvalidID(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "22P02"
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}
