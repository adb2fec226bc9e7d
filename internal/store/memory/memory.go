// Package memory is an in-process repository used by tests and by STORE_DRIVER=memory.
// A single mutex serializes writers, so aggregate recomputation always runs after
// the variant write it follows and is never coalesced with another.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"storefront-service/internal/models"
)

type Store struct {
	mu sync.Mutex

	products      map[string]*models.Product
	productOrder  []string
	variants      map[string]*models.ProductVariant
	variantSeq    map[string]int
	orders        map[string]*models.Order
	orderOrder    []string
	history       []models.OrderStatusChange
	notifications []*models.StockNotification
	earlyAccess   []*models.EarlyAccessEmail

	seq int
	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		products:   make(map[string]*models.Product),
		variants:   make(map[string]*models.ProductVariant),
		variantSeq: make(map[string]int),
		orders:     make(map[string]*models.Order),
		now:        time.Now,
	}
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) next() int {
	s.seq++
	return s.seq
}

// CreateProduct inserts a product with zero stock
func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	product.Stock = 0
	product.CreatedAt, product.UpdatedAt = now, now
	cp := *product
	cp.Variants = nil
	s.products[product.ID] = &cp
	s.productOrder = append(s.productOrder, product.ID)
	return nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Product, 0, len(s.productOrder))
	for _, id := range s.productOrder {
		out = append(out, *s.products[id])
	}
	return out, nil
}

func (s *Store) UpdateProduct(ctx context.Context, id string, patch models.ProductPatch) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, nil
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	p.UpdatedAt = s.now()
	cp := *p
	return &cp, nil
}

func (s *Store) UpdateProductBatchStatus(ctx context.Context, id string, status models.BatchStatus, restockDays, preorderDays *int) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, nil
	}
	p.BatchStatus = status
	if restockDays != nil {
		p.EstimatedRestockDays = *restockDays
	}
	if preorderDays != nil {
		p.EstimatedPreorderDays = *preorderDays
	}
	p.UpdatedAt = s.now()
	cp := *p
	return &cp, nil
}

func (s *Store) ListVariants(ctx context.Context, productID string, activeOnly bool) ([]models.ProductVariant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.ProductVariant{}
	for _, v := range s.variants {
		if v.ProductID != productID || (activeOnly && !v.Active) {
			continue
		}
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return s.variantSeq[out[i].ID] < s.variantSeq[out[j].ID]
	})
	return out, nil
}

func (s *Store) GetVariant(ctx context.Context, id string) (*models.ProductVariant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.variants[id]
	if !ok {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}

func (s *Store) CreateVariant(ctx context.Context, variant *models.ProductVariant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[variant.ProductID]; !ok {
		return &models.NotFoundError{Resource: "product", ID: variant.ProductID}
	}
	now := s.now()
	variant.CreatedAt, variant.UpdatedAt = now, now
	cp := *variant
	s.variants[variant.ID] = &cp
	s.variantSeq[variant.ID] = s.next()
	s.recompute(variant.ProductID)
	return nil
}

func (s *Store) UpdateVariant(ctx context.Context, id string, patch models.VariantPatch) (*models.ProductVariant, *models.ProductVariant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.variants[id]
	if !ok {
		return nil, nil, nil
	}
	prev := *v
	patch.Apply(v)
	v.UpdatedAt = s.now()
	if patch.TouchesAggregate() {
		s.recompute(v.ProductID)
	}
	updated := *v
	return &prev, &updated, nil
}

func (s *Store) DeleteVariant(ctx context.Context, id string) (*models.ProductVariant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.variants[id]
	if !ok {
		return nil, nil
	}
	delete(s.variants, id)
	delete(s.variantSeq, id)

	// mirror the foreign keys: items keep their label, subscriptions go away
	for _, o := range s.orders {
		for i := range o.Items {
			if o.Items[i].VariantID != nil && *o.Items[i].VariantID == id {
				o.Items[i].VariantID = nil
			}
		}
	}
	kept := s.notifications[:0]
	for _, n := range s.notifications {
		if n.VariantID != id {
			kept = append(kept, n)
		}
	}
	s.notifications = kept

	s.recompute(v.ProductID)
	return v, nil
}

func (s *Store) RecomputeProductStock(ctx context.Context, productID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[productID]; !ok {
		return 0, &models.NotFoundError{Resource: "product", ID: productID}
	}
	return s.recompute(productID), nil
}

// recompute must be called with mu held
func (s *Store) recompute(productID string) int {
	p, ok := s.products[productID]
	if !ok {
		return 0
	}
	total := 0
	for _, v := range s.variants {
		if v.ProductID == productID && v.Active {
			total += v.Stock
		}
	}
	p.Stock = total
	p.UpdatedAt = s.now()
	return total
}

func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[order.ID]; exists {
		return &models.ValidationError{Field: "id", Message: "order already exists"}
	}
	for _, item := range order.Items {
		if item.VariantID != nil {
			if _, ok := s.variants[*item.VariantID]; !ok {
				return &models.ValidationError{Field: "items", Message: "references an unknown product or variant"}
			}
		}
	}

	now := s.now()
	order.CreatedAt, order.UpdatedAt = now, now
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
		order.Items[i].CreatedAt = now
	}
	s.orders[order.ID] = copyOrder(order)
	s.orderOrder = append(s.orderOrder, order.ID)
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	return copyOrder(o), nil
}

func (s *Store) GetOrderByExternalReference(ctx context.Context, ref string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range s.orders {
		if o.ExternalReference == ref {
			return copyOrder(o), nil
		}
	}
	return nil, nil
}

func (s *Store) ListOrders(ctx context.Context) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Order, 0, len(s.orderOrder))
	for i := len(s.orderOrder) - 1; i >= 0; i-- {
		o := *s.orders[s.orderOrder[i]]
		o.Items = nil
		out = append(out, o)
	}
	return out, nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus, source models.TransitionSource) (*models.Order, *models.OrderStatusChange, error) {
	return s.updateOrderStatus(id, status, source, false)
}

func (s *Store) UpdateOrderStatusIfChanged(ctx context.Context, id string, status models.OrderStatus, source models.TransitionSource) (*models.Order, *models.OrderStatusChange, error) {
	return s.updateOrderStatus(id, status, source, true)
}

func (s *Store) updateOrderStatus(id string, status models.OrderStatus, source models.TransitionSource, skipUnchanged bool) (*models.Order, *models.OrderStatusChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, nil, nil
	}
	if skipUnchanged && o.Status == status {
		current := *o
		current.Items = nil
		return &current, nil, nil
	}
	now := s.now()
	change := models.OrderStatusChange{
		ID:         int64(len(s.history) + 1),
		OrderID:    id,
		FromStatus: o.Status,
		ToStatus:   status,
		Source:     source,
		ChangedAt:  now,
	}
	o.Status = status
	o.UpdatedAt = now
	s.history = append(s.history, change)

	updated := *o
	updated.Items = nil
	return &updated, &change, nil
}

func (s *Store) ListStatusHistory(ctx context.Context, orderID string) ([]models.OrderStatusChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.OrderStatusChange{}
	for _, h := range s.history {
		if h.OrderID == orderID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *Store) CreateSubscription(ctx context.Context, n *models.StockNotification) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.variants[n.VariantID]; !ok {
		return false, &models.NotFoundError{Resource: "variant", ID: n.VariantID}
	}
	for _, existing := range s.notifications {
		if existing.VariantID == n.VariantID && existing.Email == n.Email {
			*n = *existing
			return false, nil
		}
	}
	n.Notified = false
	n.NotifiedAt = nil
	n.CreatedAt = s.now()
	cp := *n
	s.notifications = append(s.notifications, &cp)
	return true, nil
}

func (s *Store) ListPending(ctx context.Context, variantID string) ([]models.StockNotification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.StockNotification{}
	for _, n := range s.notifications {
		if n.VariantID == variantID && !n.Notified {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (s *Store) ListSubscriptions(ctx context.Context, variantID string) ([]models.StockNotification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.StockNotification{}
	for i := len(s.notifications) - 1; i >= 0; i-- {
		n := s.notifications[i]
		if variantID == "" || n.VariantID == variantID {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (s *Store) MarkNotified(ctx context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.notifications {
		if n.ID == id {
			if n.Notified {
				return false, nil
			}
			n.Notified = true
			stamp := at
			n.NotifiedAt = &stamp
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) UpsertEarlyAccess(ctx context.Context, entry *models.EarlyAccessEmail) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range entry.Variants {
		if v.VariantID == nil {
			continue
		}
		if _, ok := s.variants[*v.VariantID]; !ok {
			return false, &models.ValidationError{Field: "variants", Message: "references an unknown variant"}
		}
	}

	selections := append([]models.EarlyAccessVariant(nil), entry.Variants...)
	for _, existing := range s.earlyAccess {
		if strings.EqualFold(existing.Email, entry.Email) {
			existing.Variants = selections
			entry.ID = existing.ID
			entry.IsPreorder = existing.IsPreorder
			entry.CreatedAt = existing.CreatedAt
			return true, nil
		}
	}

	entry.CreatedAt = s.now()
	cp := *entry
	cp.Variants = selections
	s.earlyAccess = append(s.earlyAccess, &cp)
	return false, nil
}

func (s *Store) ListEarlyAccess(ctx context.Context) ([]models.EarlyAccessEmail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.EarlyAccessEmail, 0, len(s.earlyAccess))
	for i := len(s.earlyAccess) - 1; i >= 0; i-- {
		e := *s.earlyAccess[i]
		e.Variants = append([]models.EarlyAccessVariant{}, e.Variants...)
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) VariantPopularity(ctx context.Context) ([]models.VariantPopularity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type key struct{ id, label string }
	index := map[key]int{}
	out := []models.VariantPopularity{}
	for _, e := range s.earlyAccess {
		for _, v := range e.Variants {
			k := key{label: v.VariantLabel}
			if v.VariantID != nil {
				k.id = *v.VariantID
			}
			i, ok := index[k]
			if !ok {
				i = len(out)
				index[k] = i
				out = append(out, models.VariantPopularity{VariantID: v.VariantID, VariantLabel: v.VariantLabel})
			}
			out[i].SelectionCount++
			out[i].TotalQuantity += v.Quantity
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SelectionCount != out[j].SelectionCount {
			return out[i].SelectionCount > out[j].SelectionCount
		}
		return out[i].TotalQuantity > out[j].TotalQuantity
	})
	return out, nil
}

func copyOrder(o *models.Order) *models.Order {
	cp := *o
	cp.Items = append([]models.OrderItem(nil), o.Items...)
	return &cp
}
