package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

const defaultVariantLabel = "Product"

// SubscriptionService is the registry of "notify me when restocked" requests
type SubscriptionService struct {
	repo            NotificationRepository
	ids             IDGenerator
	defaultQuantity int
	logger          *zap.Logger
}

// NewSubscriptionService creates a new subscription service
func NewSubscriptionService(repo NotificationRepository, ids IDGenerator, defaultQuantity int) *SubscriptionService {
	if defaultQuantity < 1 {
		defaultQuantity = 1
	}
	return &SubscriptionService{
		repo:            repo,
		ids:             ids,
		defaultQuantity: defaultQuantity,
		logger:          util.GetLogger(),
	}
}

// Subscribe records a pending subscription. A repeat for the same (variant, email)
// returns the stored row with alreadyExists set instead of an error.
func (s *SubscriptionService) Subscribe(ctx context.Context, variantID, email string, quantity int, variantLabel string) (*models.StockNotification, bool, error) {
	ctx, span := util.StartSpan(ctx, "SubscriptionService.Subscribe")
	defer span.End()

	variantID = strings.TrimSpace(variantID)
	if variantID == "" {
		return nil, false, models.Required("variant_id")
	}
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, false, err
	}
	if quantity <= 0 {
		quantity = s.defaultQuantity
	}
	if strings.TrimSpace(variantLabel) == "" {
		variantLabel = defaultVariantLabel
	}

	sub := &models.StockNotification{
		ID:           s.ids.NewID(),
		VariantID:    variantID,
		Email:        email,
		Quantity:     quantity,
		VariantLabel: strings.TrimSpace(variantLabel),
	}
	created, err := s.repo.CreateSubscription(ctx, sub)
	if err != nil {
		util.RecordError(span, err)
		if models.IsNotFound(err) {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("failed to create subscription: %w", err)
	}

	if created {
		s.logger.Info("Stock notification subscription created",
			zap.String("variant_id", variantID), zap.String("email", email))
	} else {
		s.logger.Info("Stock notification subscription already exists",
			zap.String("variant_id", variantID), zap.String("email", email))
	}
	return sub, !created, nil
}

// ListPending returns unsent subscriptions for a variant, oldest first
func (s *SubscriptionService) ListPending(ctx context.Context, variantID string) ([]models.StockNotification, error) {
	ctx, span := util.StartSpan(ctx, "SubscriptionService.ListPending")
	defer span.End()

	return s.repo.ListPending(ctx, variantID)
}

// MarkNotified flags a subscription as sent. It is never unset.
func (s *SubscriptionService) MarkNotified(ctx context.Context, subscriptionID string) (bool, error) {
	ctx, span := util.StartSpan(ctx, "SubscriptionService.MarkNotified")
	defer span.End()

	return s.repo.MarkNotified(ctx, subscriptionID, time.Now())
}

// List returns subscriptions newest first; an empty variantID lists all of them
func (s *SubscriptionService) List(ctx context.Context, variantID string) ([]models.StockNotification, error) {
	ctx, span := util.StartSpan(ctx, "SubscriptionService.List")
	defer span.End()

	return s.repo.ListSubscriptions(ctx, variantID)
}
