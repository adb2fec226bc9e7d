package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront-service/internal/models"
	"storefront-service/internal/util"
	"storefront-service/internal/worker"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RestockTrigger runs the back-in-stock fan-out for a variant
type RestockTrigger interface {
	Dispatch(ctx context.Context, variantID string) (*DispatchResult, error)
}

// VariantDefaults holds the ETAs applied to variants created without them
type VariantDefaults struct {
	RestockDays  int
	PreorderDays int
}

// VariantService owns the catalog: variants, their stock and the product aggregate
type VariantService struct {
	repo       CatalogRepository
	ids        IDGenerator
	queue      TaskSubmitter
	dispatcher RestockTrigger
	events     EventPublisher
	defaults   VariantDefaults
	logger     *zap.Logger
}

// NewVariantService creates a new variant service
func NewVariantService(
	repo CatalogRepository,
	ids IDGenerator,
	queue TaskSubmitter,
	dispatcher RestockTrigger,
	events EventPublisher,
	defaults VariantDefaults,
) *VariantService {
	return &VariantService{
		repo:       repo,
		ids:        ids,
		queue:      queue,
		dispatcher: dispatcher,
		events:     events,
		defaults:   defaults,
		logger:     util.GetLogger(),
	}
}

// GetProduct returns a product with its active variants
func (s *VariantService) GetProduct(ctx context.Context, productID string) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "VariantService.GetProduct")
	defer span.End()

	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, &models.NotFoundError{Resource: "product", ID: productID}
	}

	product.Variants, err = s.repo.ListVariants(ctx, productID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load variants: %w", err)
	}
	return product, nil
}

func (s *VariantService) ListProducts(ctx context.Context) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "VariantService.ListProducts")
	defer span.End()

	return s.repo.ListProducts(ctx)
}

// ListVariants returns every variant of a product, active or not
func (s *VariantService) ListVariants(ctx context.Context, productID string) ([]models.ProductVariant, error) {
	ctx, span := util.StartSpan(ctx, "VariantService.ListVariants")
	defer span.End()

	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, &models.NotFoundError{Resource: "product", ID: productID}
	}
	return s.repo.ListVariants(ctx, productID, false)
}

// UpdateProduct edits descriptive fields. Stock stays derived from the variants.
func (s *VariantService) UpdateProduct(ctx context.Context, productID string, patch models.ProductPatch) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "VariantService.UpdateProduct")
	defer span.End()

	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, &models.ValidationError{Field: "name", Message: "must not be empty"}
	}
	if patch.Price != nil && patch.Price.IsNegative() {
		return nil, &models.ValidationError{Field: "price", Message: "must not be negative"}
	}

	product, err := s.repo.UpdateProduct(ctx, productID, patch)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, &models.NotFoundError{Resource: "product", ID: productID}
	}
	return product, nil
}

// UpdateBatchStatus sets the product level availability label
func (s *VariantService) UpdateBatchStatus(ctx context.Context, productID string, status models.BatchStatus, restockDays, preorderDays *int) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "VariantService.UpdateBatchStatus")
	defer span.End()

	if !status.Valid() {
		return nil, &models.ValidationError{Field: "batch_status", Message: "must be one of available, low, soldout, preorder"}
	}
	if (restockDays != nil && *restockDays < 0) || (preorderDays != nil && *preorderDays < 0) {
		return nil, &models.ValidationError{Field: "estimated_days", Message: "must not be negative"}
	}

	product, err := s.repo.UpdateProductBatchStatus(ctx, productID, status, restockDays, preorderDays)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, &models.NotFoundError{Resource: "product", ID: productID}
	}
	return product, nil
}

// CreateVariant adds a variant to a product. The product aggregate is recomputed
// in the same write.
func (s *VariantService) CreateVariant(ctx context.Context, productID string, in models.VariantInput) (*models.ProductVariant, error) {
	ctx, span := util.StartSpan(ctx, "VariantService.CreateVariant", attribute.String("product_id", productID))
	defer span.End()

	variant, err := s.buildVariant(productID, in)
	if err != nil {
		return nil, err
	}

	if err := s.repo.CreateVariant(ctx, variant); err != nil {
		util.RecordError(span, err)
		if models.IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create variant: %w", err)
	}

	util.VariantMutationsTotal.WithLabelValues("create").Inc()
	s.logger.Info("Variant created",
		zap.String("variant_id", variant.ID),
		zap.String("product_id", productID),
		zap.Int("stock", variant.Stock))

	return variant, nil
}

func (s *VariantService) buildVariant(productID string, in models.VariantInput) (*models.ProductVariant, error) {
	if strings.TrimSpace(productID) == "" {
		return nil, models.Required("product_id")
	}
	if strings.TrimSpace(in.Label) == "" {
		return nil, models.Required("label")
	}
	if strings.TrimSpace(in.ImageURL) == "" {
		return nil, models.Required("image_url")
	}

	v := &models.ProductVariant{
		ID:                    s.ids.NewID(),
		ProductID:             productID,
		Label:                 strings.TrimSpace(in.Label),
		ImageURL:              strings.TrimSpace(in.ImageURL),
		BatchStatus:           models.BatchAvailable,
		EstimatedRestockDays:  s.defaults.RestockDays,
		EstimatedPreorderDays: s.defaults.PreorderDays,
		Active:                true,
	}
	if in.Stock != nil {
		v.Stock = *in.Stock
	}
	if in.SortOrder != nil {
		v.SortOrder = *in.SortOrder
	}
	if in.Active != nil {
		v.Active = *in.Active
	}
	if in.BatchStatus != nil {
		v.BatchStatus = *in.BatchStatus
	}
	if in.EstimatedRestockDays != nil {
		v.EstimatedRestockDays = *in.EstimatedRestockDays
	}
	if in.EstimatedPreorderDays != nil {
		v.EstimatedPreorderDays = *in.EstimatedPreorderDays
	}

	if v.Stock < 0 {
		return nil, &models.ValidationError{Field: "stock", Message: "must not be negative"}
	}
	if !v.BatchStatus.Valid() {
		return nil, &models.ValidationError{Field: "batch_status", Message: "must be one of available, low, soldout, preorder"}
	}
	return v, nil
}

// UpdateVariant applies a partial update. When the write crosses into availability the
// fan-out is queued after commit; its outcome never reaches the caller.
func (s *VariantService) UpdateVariant(ctx context.Context, variantID string, patch models.VariantPatch) (*models.ProductVariant, error) {
	ctx, span := util.StartSpan(ctx, "VariantService.UpdateVariant", attribute.String("variant_id", variantID))
	defer span.End()

	if err := validatePatch(patch); err != nil {
		return nil, err
	}

	if patch.Empty() {
		variant, err := s.repo.GetVariant(ctx, variantID)
		if err != nil {
			return nil, err
		}
		if variant == nil {
			return nil, &models.NotFoundError{Resource: "variant", ID: variantID}
		}
		return variant, nil
	}

	prev, updated, err := s.repo.UpdateVariant(ctx, variantID, patch)
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to update variant: %w", err)
	}
	if updated == nil {
		return nil, &models.NotFoundError{Resource: "variant", ID: variantID}
	}

	util.VariantMutationsTotal.WithLabelValues("update").Inc()
	s.logger.Info("Variant updated",
		zap.String("variant_id", variantID),
		zap.String("prev_status", string(prev.BatchStatus)),
		zap.String("new_status", string(updated.BatchStatus)),
		zap.Int("prev_stock", prev.Stock),
		zap.Int("new_stock", updated.Stock))

	if models.IsRestockTransition(models.StateOf(prev), models.StateOf(updated)) {
		s.onRestock(ctx, updated)
	}

	return updated, nil
}

func validatePatch(p models.VariantPatch) error {
	if p.Label != nil && strings.TrimSpace(*p.Label) == "" {
		return &models.ValidationError{Field: "label", Message: "must not be empty"}
	}
	if p.ImageURL != nil && strings.TrimSpace(*p.ImageURL) == "" {
		return &models.ValidationError{Field: "image_url", Message: "must not be empty"}
	}
	if p.Stock != nil && *p.Stock < 0 {
		return &models.ValidationError{Field: "stock", Message: "must not be negative"}
	}
	if p.BatchStatus != nil && !p.BatchStatus.Valid() {
		return &models.ValidationError{Field: "batch_status", Message: "must be one of available, low, soldout, preorder"}
	}
	return nil
}

func (s *VariantService) onRestock(ctx context.Context, variant *models.ProductVariant) {
	util.RestockEventsTotal.Inc()
	s.logger.Info("Variant restocked, queueing notifications", zap.String("variant_id", variant.ID))

	event := &models.VariantRestockedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeVariantRestocked),
		VariantID:   variant.ID,
		ProductID:   variant.ProductID,
		BatchStatus: variant.BatchStatus,
		Stock:       variant.Stock,
	}
	if err := s.events.PublishVariantRestocked(ctx, event); err != nil {
		s.logger.Error("Failed to publish VariantRestocked event", zap.Error(err))
	}

	variantID := variant.ID
	parent := trace.SpanContextFromContext(ctx)
	err := s.queue.Submit("restock-dispatch:"+variantID, func(taskCtx context.Context) {
		taskCtx = trace.ContextWithRemoteSpanContext(taskCtx, parent)
		res, err := s.dispatcher.Dispatch(taskCtx, variantID)
		if err != nil {
			s.logger.Error("Restock dispatch failed", zap.String("variant_id", variantID), zap.Error(err))
			return
		}
		s.logger.Info("Restock dispatch finished",
			zap.String("variant_id", variantID),
			zap.Int("pending", res.Pending),
			zap.Int("sent", res.Sent),
			zap.Int("failed", res.Failed))
	})
	if err != nil {
		level := s.logger.Warn
		if !errors.Is(err, worker.ErrQueueFull) && !errors.Is(err, worker.ErrQueueClosed) {
			level = s.logger.Error
		}
		level("Restock dispatch not queued, subscriptions stay pending",
			zap.String("variant_id", variantID), zap.Error(err))
	}
}

// DeleteVariant removes a variant. No fan-out can follow a delete.
func (s *VariantService) DeleteVariant(ctx context.Context, variantID string) error {
	ctx, span := util.StartSpan(ctx, "VariantService.DeleteVariant", attribute.String("variant_id", variantID))
	defer span.End()

	deleted, err := s.repo.DeleteVariant(ctx, variantID)
	if err != nil {
		util.RecordError(span, err)
		return fmt.Errorf("failed to delete variant: %w", err)
	}
	if deleted == nil {
		return &models.NotFoundError{Resource: "variant", ID: variantID}
	}

	util.VariantMutationsTotal.WithLabelValues("delete").Inc()
	s.logger.Info("Variant deleted", zap.String("variant_id", variantID), zap.String("product_id", deleted.ProductID))
	return nil
}

// RecomputeProductStock resets the product aggregate to the sum of its active variants
func (s *VariantService) RecomputeProductStock(ctx context.Context, productID string) (int, error) {
	ctx, span := util.StartSpan(ctx, "VariantService.RecomputeProductStock", attribute.String("product_id", productID))
	defer span.End()

	return s.repo.RecomputeProductStock(ctx, productID)
}
