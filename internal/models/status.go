package models

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

// Valid reports whether s is a known order status
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

// TransitionSource tags who produced a status change
type TransitionSource string

const (
	SourcePaymentEvent   TransitionSource = "payment_event"
	SourceAdministrative TransitionSource = "administrative"
	SourceCheckout       TransitionSource = "checkout"
)

// Valid reports whether s is a known transition source
func (s TransitionSource) Valid() bool {
	switch s {
	case SourcePaymentEvent, SourceAdministrative, SourceCheckout:
		return true
	}
	return false
}

// CheckTransition validates that source may move an order into next.
// Fulfilment states are only reachable through administrative tooling.
func CheckTransition(next OrderStatus, source TransitionSource) error {
	if !next.Valid() {
		return &ValidationError{Field: "status", Message: "unknown order status " + string(next)}
	}
	if !source.Valid() {
		return &ValidationError{Field: "source", Message: "unknown transition source " + string(source)}
	}
	if source == SourcePaymentEvent && (next == OrderShipped || next == OrderDelivered) {
		return &ValidationError{Field: "status", Message: string(next) + " cannot be set from a payment event"}
	}
	return nil
}

// VariantState is the part of a variant that decides restock transitions
type VariantState struct {
	BatchStatus BatchStatus
	Stock       int
}

// StateOf extracts the restock-relevant state of v
func StateOf(v *ProductVariant) VariantState {
	return VariantState{BatchStatus: v.BatchStatus, Stock: v.Stock}
}

// IsRestockTransition reports whether moving from prev to next counts as a restock.
// The status clause and the stock clause are independent triggers.
func IsRestockTransition(prev, next VariantState) bool {
	statusClause := prev.BatchStatus == BatchSoldOut &&
		(next.BatchStatus == BatchAvailable || next.BatchStatus == BatchLow)
	stockClause := prev.Stock == 0 && next.Stock > 0
	return statusClause || stockClause
}
