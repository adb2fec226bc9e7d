package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BatchStatus is the availability label of a product or variant
type BatchStatus string

const (
	BatchAvailable BatchStatus = "available"
	BatchLow       BatchStatus = "low"
	BatchSoldOut   BatchStatus = "soldout"
	BatchPreorder  BatchStatus = "preorder"
)

// Valid reports whether s is a known batch status
func (s BatchStatus) Valid() bool {
	switch s {
	case BatchAvailable, BatchLow, BatchSoldOut, BatchPreorder:
		return true
	}
	return false
}

// Product represents a catalog item; Stock is derived from its active variants
type Product struct {
	ID                    string           `db:"id" json:"id"`
	Name                  string           `db:"name" json:"name"`
	Description           string           `db:"description" json:"description"`
	Price                 decimal.Decimal  `db:"price" json:"price"`
	Stock                 int              `db:"stock" json:"stock"`
	BatchStatus           BatchStatus      `db:"batch_status" json:"batch_status"`
	EstimatedRestockDays  int              `db:"estimated_restock_days" json:"estimated_restock_days"`
	EstimatedPreorderDays int              `db:"estimated_preorder_delivery_days" json:"estimated_preorder_delivery_days"`
	CreatedAt             time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time        `db:"updated_at" json:"updated_at"`
	Variants              []ProductVariant `db:"-" json:"variants,omitempty"`
}

// ProductPatch holds the administrative product edits. Stock is never editable here.
type ProductPatch struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
}

// ProductVariant is a color/style variant owned by exactly one product
type ProductVariant struct {
	ID                    string      `db:"id" json:"id"`
	ProductID             string      `db:"product_id" json:"product_id"`
	Label                 string      `db:"label" json:"label"`
	ImageURL              string      `db:"image_url" json:"image_url"`
	Stock                 int         `db:"stock" json:"stock"`
	BatchStatus           BatchStatus `db:"batch_status" json:"batch_status"`
	EstimatedRestockDays  int         `db:"estimated_restock_days" json:"estimated_restock_days"`
	EstimatedPreorderDays int         `db:"estimated_preorder_delivery_days" json:"estimated_preorder_delivery_days"`
	SortOrder             int         `db:"sort_order" json:"sort_order"`
	Active                bool        `db:"is_active" json:"is_active"`
	CreatedAt             time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time   `db:"updated_at" json:"updated_at"`
}

// VariantInput carries the attributes of a new variant. Label and ImageURL are required.
type VariantInput struct {
	Label                 string       `json:"label"`
	ImageURL              string       `json:"image_url"`
	Stock                 *int         `json:"stock,omitempty"`
	SortOrder             *int         `json:"sort_order,omitempty"`
	Active                *bool        `json:"is_active,omitempty"`
	BatchStatus           *BatchStatus `json:"batch_status,omitempty"`
	EstimatedRestockDays  *int         `json:"estimated_restock_days,omitempty"`
	EstimatedPreorderDays *int         `json:"estimated_preorder_delivery_days,omitempty"`
}

// VariantPatch is a partial update; nil fields are left untouched
type VariantPatch struct {
	Label                 *string      `json:"label,omitempty"`
	ImageURL              *string      `json:"image_url,omitempty"`
	Stock                 *int         `json:"stock,omitempty"`
	SortOrder             *int         `json:"sort_order,omitempty"`
	Active                *bool        `json:"is_active,omitempty"`
	BatchStatus           *BatchStatus `json:"batch_status,omitempty"`
	EstimatedRestockDays  *int         `json:"estimated_restock_days,omitempty"`
	EstimatedPreorderDays *int         `json:"estimated_preorder_delivery_days,omitempty"`
}

// Empty reports whether the patch carries no fields
func (p VariantPatch) Empty() bool {
	return p.Label == nil && p.ImageURL == nil && p.Stock == nil && p.SortOrder == nil &&
		p.Active == nil && p.BatchStatus == nil && p.EstimatedRestockDays == nil && p.EstimatedPreorderDays == nil
}

// TouchesAggregate reports whether applying the patch can change the product stock
func (p VariantPatch) TouchesAggregate() bool {
	return p.Stock != nil || p.Active != nil
}

// Apply copies the supplied fields onto v
func (p VariantPatch) Apply(v *ProductVariant) {
	if p.Label != nil {
		v.Label = *p.Label
	}
	if p.ImageURL != nil {
		v.ImageURL = *p.ImageURL
	}
	if p.Stock != nil {
		v.Stock = *p.Stock
	}
	if p.SortOrder != nil {
		v.SortOrder = *p.SortOrder
	}
	if p.Active != nil {
		v.Active = *p.Active
	}
	if p.BatchStatus != nil {
		v.BatchStatus = *p.BatchStatus
	}
	if p.EstimatedRestockDays != nil {
		v.EstimatedRestockDays = *p.EstimatedRestockDays
	}
	if p.EstimatedPreorderDays != nil {
		v.EstimatedPreorderDays = *p.EstimatedPreorderDays
	}
}

// Order represents a customer order. Only Status changes after creation.
type Order struct {
	ID                string          `db:"id" json:"id"`
	CustomerName      string          `db:"customer_name" json:"customer_name"`
	CustomerEmail     string          `db:"customer_email" json:"customer_email"`
	CustomerPhone     string          `db:"customer_phone" json:"customer_phone"`
	Address           string          `db:"address" json:"address"`
	City              string          `db:"city" json:"city"`
	ZipCode           string          `db:"zip_code" json:"zip_code"`
	Quantity          int             `db:"quantity" json:"quantity"`
	Total             decimal.Decimal `db:"total" json:"total"`
	Status            OrderStatus     `db:"status" json:"status"`
	ExternalReference string          `db:"external_reference" json:"external_reference"`
	PaymentReference  *string         `db:"payment_reference" json:"payment_reference,omitempty"`
	IsPreorder        bool            `db:"is_preorder" json:"is_preorder"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
	Items             []OrderItem     `db:"-" json:"items,omitempty"`
}

// OrderItem is an immutable line of an order with a label snapshot of the variant
type OrderItem struct {
	ID        string          `db:"id" json:"id"`
	OrderID   string          `db:"order_id" json:"order_id"`
	ProductID *string         `db:"product_id" json:"product_id,omitempty"`
	VariantID *string         `db:"variant_id" json:"variant_id,omitempty"`
	Label     string          `db:"label" json:"label"`
	Quantity  int             `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
	Subtotal  decimal.Decimal `db:"subtotal" json:"subtotal"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// OrderInput is the data needed to create an order
type OrderInput struct {
	CustomerName     string
	CustomerEmail    string
	CustomerPhone    string
	Address          string
	City             string
	ZipCode          string
	Quantity         int
	Total            decimal.Decimal
	Status           OrderStatus
	PaymentReference string
	IsPreorder       bool
	ProductID        string
	Items            []OrderItemInput
}

// OrderItemInput is a line requested at checkout
type OrderItemInput struct {
	VariantID string          `json:"colorId"`
	Label     string          `json:"label"`
	Quantity  int             `json:"quantity" binding:"gt=0"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// OrderStatusChange is one entry of an order's audit trail
type OrderStatusChange struct {
	ID         int64            `db:"id" json:"id"`
	OrderID    string           `db:"order_id" json:"order_id"`
	FromStatus OrderStatus      `db:"from_status" json:"from_status"`
	ToStatus   OrderStatus      `db:"to_status" json:"to_status"`
	Source     TransitionSource `db:"source" json:"source"`
	ChangedAt  time.Time        `db:"changed_at" json:"changed_at"`
}

// StockNotification is a "notify me" subscription keyed by (variant, email)
type StockNotification struct {
	ID           string     `db:"id" json:"id"`
	VariantID    string     `db:"variant_id" json:"variant_id"`
	Email        string     `db:"email" json:"email"`
	Quantity     int        `db:"variant_qty" json:"variant_qty"`
	VariantLabel string     `db:"variant_label" json:"variant_label"`
	Notified     bool       `db:"notified" json:"notified"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	NotifiedAt   *time.Time `db:"notified_at" json:"notified_at,omitempty"`
}

// EarlyAccessEmail is a pre-launch registration
type EarlyAccessEmail struct {
	ID         string               `db:"id" json:"id"`
	Email      string               `db:"email" json:"email"`
	IsPreorder bool                 `db:"is_preorder" json:"is_preorder"`
	CreatedAt  time.Time            `db:"created_at" json:"created_at"`
	Variants   []EarlyAccessVariant `db:"-" json:"variants"`
}

// EarlyAccessVariant is a variant selected during early access registration
type EarlyAccessVariant struct {
	VariantID    *string `db:"variant_id" json:"variant_id"`
	VariantLabel string  `db:"variant_label" json:"variant_label"`
	Quantity     int     `db:"quantity" json:"quantity"`
}

// VariantPopularity aggregates early access selections per variant
type VariantPopularity struct {
	VariantID      *string `db:"variant_id" json:"variant_id"`
	VariantLabel   string  `db:"variant_label" json:"variant_label"`
	SelectionCount int     `db:"selection_count" json:"selection_count"`
	TotalQuantity  int     `db:"total_quantity" json:"total_quantity"`
}

// PaymentNotification is an inbound gateway webhook delivery
type PaymentNotification struct {
	Type       string    `json:"type"`
	Action     string    `json:"action,omitempty"`
	ID         string    `json:"id,omitempty"`
	DataID     string    `json:"data_id"`
	ReceivedAt time.Time `json:"received_at"`
}

// GatewayPayment is the payment detail fetched from the gateway
type GatewayPayment struct {
	ID                string          `json:"id"`
	Status            string          `json:"status"`
	ExternalReference string          `json:"external_reference"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	CurrencyID        string          `json:"currency_id"`
}
