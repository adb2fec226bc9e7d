package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"storefront-service/internal/gateway"
	"storefront-service/internal/mailer"
	"storefront-service/internal/models"
	"storefront-service/internal/redisclient"
	"storefront-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CheckoutConfig holds the URLs and flags the checkout flow needs
type CheckoutConfig struct {
	FrontendURL     string
	BackendURL      string
	CurrencyID      string
	SendOrderEmails bool
	IdempotencyTTL  time.Duration
}

// CheckoutService creates orders at checkout, either through a gateway preference or
// directly with an already known payment outcome
type CheckoutService struct {
	orders      *OrderService
	catalog     CatalogRepository
	preferences PreferenceCreator
	mail        OrderMailer
	idempotency IdempotencyStore
	ids         IDGenerator
	cfg         CheckoutConfig
	logger      *zap.Logger
}

// NewCheckoutService creates a new checkout service. idempotency may be nil.
func NewCheckoutService(
	orders *OrderService,
	catalog CatalogRepository,
	preferences PreferenceCreator,
	mail OrderMailer,
	idempotency IdempotencyStore,
	ids IDGenerator,
	cfg CheckoutConfig,
) *CheckoutService {
	if cfg.CurrencyID == "" {
		cfg.CurrencyID = "ARS"
	}
	return &CheckoutService{
		orders:      orders,
		catalog:     catalog,
		preferences: preferences,
		mail:        mail,
		idempotency: idempotency,
		ids:         ids,
		cfg:         cfg,
		logger:      util.GetLogger(),
	}
}

// CreatePreference registers a gateway preference keyed by a pre-generated order id and
// stores the pending order under that id. A repeated idempotency key returns the first result.
func (s *CheckoutService) CreatePreference(ctx context.Context, idempotencyKey string, req models.CheckoutRequest) (*models.CheckoutResult, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.CreatePreference")
	defer span.End()

	if err := validateCheckout(req); err != nil {
		return nil, err
	}

	if s.idempotency != nil && idempotencyKey != "" {
		stored, claimed, err := s.idempotency.ClaimIdempotencyKey(ctx, idempotencyKey, s.cfg.IdempotencyTTL)
		if err != nil {
			s.logger.Warn("Idempotency store unavailable, continuing without it", zap.Error(err))
		} else if !claimed {
			return s.replay(idempotencyKey, stored)
		} else {
			res, err := s.createPreference(ctx, req)
			if err != nil {
				if ferr := s.idempotency.ForgetIdempotencyKey(ctx, idempotencyKey); ferr != nil {
					s.logger.Warn("Failed to release idempotency key", zap.Error(ferr))
				}
				return nil, err
			}
			if buf, merr := json.Marshal(res); merr == nil {
				if serr := s.idempotency.SetIdempotencyKey(ctx, idempotencyKey, string(buf), s.cfg.IdempotencyTTL); serr != nil {
					s.logger.Warn("Failed to store idempotency result", zap.Error(serr))
				}
			}
			return res, nil
		}
	}

	res, err := s.createPreference(ctx, req)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}
	return res, nil
}

func (s *CheckoutService) replay(key, stored string) (*models.CheckoutResult, error) {
	if stored == redisclient.InFlight {
		return nil, &models.ConflictError{Message: "a checkout with this idempotency key is still in progress"}
	}
	var res models.CheckoutResult
	if err := json.Unmarshal([]byte(stored), &res); err != nil {
		return nil, fmt.Errorf("failed to decode stored checkout result: %w", err)
	}
	s.logger.Info("Replaying checkout for idempotency key", zap.String("key", key), zap.String("order_id", res.OrderID))
	return &res, nil
}

func (s *CheckoutService) createPreference(ctx context.Context, req models.CheckoutRequest) (*models.CheckoutResult, error) {
	orderID := s.ids.NewID()
	isPreorder := req.IsPreorder()

	pref, err := s.preferences.CreatePreference(ctx, gateway.PreferenceRequest{
		ExternalReference: orderID,
		Items:             s.preferenceItems(ctx, req),
		Payer: gateway.PreferencePayer{
			Name:    req.Name,
			Email:   req.Email,
			Phone:   digitsOnly(req.Phone),
			Street:  req.Address,
			City:    req.City,
			ZipCode: req.ZipCode,
		},
		SuccessURL:      s.cfg.FrontendURL + "/checkout-success",
		FailureURL:      s.cfg.FrontendURL + "/checkout-failed",
		PendingURL:      s.cfg.FrontendURL + "/checkout-pending",
		NotificationURL: s.cfg.BackendURL + "/api/payments/webhook",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create payment preference: %w", err)
	}

	in := orderInputFrom(req, models.OrderPending)
	in.PaymentReference = pref.ID
	order, err := s.orders.CreateOrder(ctx, in, orderID)
	if err != nil {
		return nil, err
	}

	if isPreorder || s.cfg.SendOrderEmails {
		s.sendConfirmation(ctx, order, req)
	}

	s.logger.Info("Checkout preference created",
		zap.String("order_id", order.ID),
		zap.String("preference_id", pref.ID),
		zap.Bool("preorder", isPreorder))

	return &models.CheckoutResult{
		Success:      true,
		URL:          pref.InitPoint,
		OrderID:      order.ID,
		PreferenceID: pref.ID,
		IsPreorder:   isPreorder,
	}, nil
}

// CreateDirectOrder records an order whose payment outcome is already known
func (s *CheckoutService) CreateDirectOrder(ctx context.Context, req models.CheckoutRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.CreateDirectOrder")
	defer span.End()

	if err := validateCheckout(req); err != nil {
		return nil, err
	}

	status := models.OrderPending
	switch req.PaymentStatus {
	case "approved":
		status = models.OrderConfirmed
	case "rejected", "cancelled":
		status = models.OrderCancelled
	}

	in := orderInputFrom(req, status)
	in.PaymentReference = req.PaymentID
	order, err := s.orders.CreateOrder(ctx, in, "")
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	if req.IsPreorder() || s.cfg.SendOrderEmails {
		s.sendConfirmation(ctx, order, req)
	}
	return order, nil
}

func (s *CheckoutService) preferenceItems(ctx context.Context, req models.CheckoutRequest) []gateway.PreferenceItem {
	title := "Product"
	description := ""
	if product, err := s.catalog.GetProduct(ctx, req.ProductID); err != nil {
		s.logger.Warn("Failed to load product for checkout", zap.String("product_id", req.ProductID), zap.Error(err))
	} else if product != nil {
		title = product.Name
		description = product.Description
	}

	if len(req.Items) == 0 {
		return []gateway.PreferenceItem{{
			Title:       title,
			Description: description,
			Quantity:    req.Quantity,
			UnitPrice:   req.Total.Div(decimal.NewFromInt(int64(req.Quantity))).Round(2),
			CurrencyID:  s.cfg.CurrencyID,
		}}
	}

	items := make([]gateway.PreferenceItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, gateway.PreferenceItem{
			Title:       title + " - " + it.Label,
			Description: "Variant: " + it.Label,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			CurrencyID:  s.cfg.CurrencyID,
		})
	}
	return items
}

func (s *CheckoutService) sendConfirmation(ctx context.Context, order *models.Order, req models.CheckoutRequest) {
	items := order.Items
	if len(items) == 0 {
		items = []models.OrderItem{{
			Label:     "Product",
			Quantity:  order.Quantity,
			UnitPrice: order.Total.Div(decimal.NewFromInt(int64(order.Quantity))).Round(2),
			Subtotal:  order.Total,
		}}
	}

	err := s.mail.SendOrderConfirmation(ctx, mailer.OrderConfirmation{
		OrderID:               order.ID,
		CustomerName:          order.CustomerName,
		CustomerEmail:         order.CustomerEmail,
		Address:               order.Address,
		City:                  order.City,
		ZipCode:               order.ZipCode,
		Items:                 items,
		Total:                 order.Total,
		IsPreorder:            order.IsPreorder,
		EstimatedDeliveryDays: req.EstimatedPreorderDays,
	})
	if err != nil {
		s.logger.Error("Failed to send order confirmation", zap.String("order_id", order.ID), zap.Error(err))
	}
}

func validateCheckout(req models.CheckoutRequest) error {
	if strings.TrimSpace(req.ProductID) == "" {
		return models.Required("productId")
	}
	if req.Quantity <= 0 {
		return models.Required("quantity")
	}
	if !req.Total.IsPositive() {
		return models.Required("total")
	}
	if err := validateEmail(normalizeEmail(req.Email)); err != nil {
		return err
	}

	// the whole order is checked before any gateway call
	in := orderInputFrom(req, models.OrderPending)
	return validateOrderInput(&in)
}

func orderInputFrom(req models.CheckoutRequest, status models.OrderStatus) models.OrderInput {
	return models.OrderInput{
		CustomerName:  req.Name,
		CustomerEmail: strings.TrimSpace(req.Email),
		CustomerPhone: req.Phone,
		Address:       req.Address,
		City:          req.City,
		ZipCode:       req.ZipCode,
		Quantity:      req.Quantity,
		Total:         req.Total,
		Status:        status,
		IsPreorder:    req.IsPreorder(),
		ProductID:     req.ProductID,
		Items:         req.Items,
	}
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
