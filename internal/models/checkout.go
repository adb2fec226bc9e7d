package models

import "github.com/shopspring/decimal"

// CheckoutRequest is the storefront checkout payload
type CheckoutRequest struct {
	Name                  string           `json:"name" binding:"required"`
	Email                 string           `json:"email" binding:"required,email"`
	Phone                 string           `json:"phone" binding:"required"`
	Address               string           `json:"address" binding:"required"`
	City                  string           `json:"city" binding:"required"`
	ZipCode               string           `json:"zipCode" binding:"required"`
	Quantity              int              `json:"quantity" binding:"gt=0"`
	Total                 decimal.Decimal  `json:"total"`
	ProductID             string           `json:"productId" binding:"required"`
	Items                 []OrderItemInput `json:"items" binding:"omitempty,dive"`
	BatchStatus           BatchStatus      `json:"batchStatus,omitempty"`
	EstimatedPreorderDays int              `json:"estimatedPreorderDays,omitempty"`
	PaymentID             string           `json:"paymentId,omitempty"`
	PaymentStatus         string           `json:"paymentStatus,omitempty"`
}

// IsPreorder reports whether the order is placed against stock that does not exist yet
func (r CheckoutRequest) IsPreorder() bool {
	return r.BatchStatus == BatchPreorder || r.BatchStatus == BatchSoldOut
}

// CheckoutResult is returned once a preference and its pending order exist
type CheckoutResult struct {
	Success      bool   `json:"success"`
	URL          string `json:"url"`
	OrderID      string `json:"orderId"`
	PreferenceID string `json:"preferenceId"`
	IsPreorder   bool   `json:"isPreorder"`
}
