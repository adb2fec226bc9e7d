package service

import (
	"context"
	"errors"
	"testing"

	"storefront-service/internal/models"
	"storefront-service/internal/store/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type checkoutFixture struct {
	svc         *CheckoutService
	orders      *OrderService
	preferences *fakePreferences
	mail        *fakeOrderMailer
	idempotency *fakeIdempotency
}

func newCheckoutFixture(t *testing.T, sendEmails bool) *checkoutFixture {
	t.Helper()
	repo := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, repo.CreateProduct(ctx, &models.Product{ID: "p1", Name: "Portable Blender", Price: decimal.NewFromInt(25)}))
	require.NoError(t, repo.CreateVariant(ctx, &models.ProductVariant{ID: "v-red", ProductID: "p1", Label: "Red", Stock: 10, Active: true}))

	ids := &seqIDs{}
	f := &checkoutFixture{
		orders:      NewOrderService(repo, ids, &recordingPublisher{}),
		preferences: &fakePreferences{},
		mail:        &fakeOrderMailer{},
		idempotency: newFakeIdempotency(),
	}
	f.svc = NewCheckoutService(f.orders, repo, f.preferences, f.mail, f.idempotency, ids, CheckoutConfig{
		FrontendURL:     "https://shop.example",
		BackendURL:      "https://api.example",
		SendOrderEmails: sendEmails,
	})
	return f
}

func checkoutRequest() models.CheckoutRequest {
	return models.CheckoutRequest{
		Name:      "Ana",
		Email:     "ana@x.com",
		Phone:     "(341) 555-0000",
		Address:   "Street 123",
		City:      "Rosario",
		ZipCode:   "2000",
		Quantity:  2,
		Total:     decimal.NewFromInt(50),
		ProductID: "p1",
		Items: []models.OrderItemInput{
			{VariantID: "v-red", Label: "Red", Quantity: 2, UnitPrice: decimal.NewFromInt(25), Subtotal: decimal.NewFromInt(50)},
		},
	}
}

func TestCreatePreferenceCreatesPendingOrder(t *testing.T) {
	f := newCheckoutFixture(t, false)
	ctx := context.Background()

	res, err := f.svc.CreatePreference(ctx, "", checkoutRequest())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "pref-1", res.PreferenceID)
	assert.False(t, res.IsPreorder)

	require.Len(t, f.preferences.calls, 1)
	call := f.preferences.calls[0]
	assert.Equal(t, res.OrderID, call.ExternalReference)
	assert.Equal(t, "https://api.example/api/payments/webhook", call.NotificationURL)
	assert.Equal(t, "3415550000", call.Payer.Phone)
	require.Len(t, call.Items, 1)
	assert.Equal(t, "Portable Blender - Red", call.Items[0].Title)

	order, err := f.orders.GetOrderByExternalReference(ctx, res.OrderID)
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, models.OrderPending, order.Status)
	require.NotNil(t, order.PaymentReference)
	assert.Equal(t, "pref-1", *order.PaymentReference)
	assert.Len(t, order.Items, 1)
	assert.Empty(t, f.mail.sent)
}

func TestCreatePreferenceForPreorderSendsConfirmation(t *testing.T) {
	f := newCheckoutFixture(t, false)
	req := checkoutRequest()
	req.BatchStatus = models.BatchSoldOut
	req.EstimatedPreorderDays = 30

	res, err := f.svc.CreatePreference(context.Background(), "", req)
	require.NoError(t, err)
	assert.True(t, res.IsPreorder)
	require.Len(t, f.mail.sent, 1)
	assert.True(t, f.mail.sent[0].IsPreorder)
	assert.Equal(t, 30, f.mail.sent[0].EstimatedDeliveryDays)
}

func TestCreatePreferenceRejectsInvalidOrderBeforeGateway(t *testing.T) {
	f := newCheckoutFixture(t, false)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*models.CheckoutRequest)
		field  string
	}{
		{"missing name", func(r *models.CheckoutRequest) { r.Name = "" }, "name"},
		{"missing phone", func(r *models.CheckoutRequest) { r.Phone = " " }, "phone"},
		{"missing address", func(r *models.CheckoutRequest) { r.Address = "" }, "address"},
		{"missing city", func(r *models.CheckoutRequest) { r.City = "" }, "city"},
		{"missing zip", func(r *models.CheckoutRequest) { r.ZipCode = "" }, "zip_code"},
		{"bad email", func(r *models.CheckoutRequest) { r.Email = "ana-at-x" }, "email"},
		{"bad subtotal", func(r *models.CheckoutRequest) { r.Items[0].Subtotal = decimal.NewFromInt(1) }, "items[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := checkoutRequest()
			tt.mutate(&req)

			_, err := f.svc.CreatePreference(ctx, "", req)
			require.Error(t, err)
			var verr *models.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	f.preferences.mu.Lock()
	defer f.preferences.mu.Unlock()
	assert.Empty(t, f.preferences.calls)
}

func TestCreatePreferenceIdempotencyKey(t *testing.T) {
	f := newCheckoutFixture(t, false)
	ctx := context.Background()

	first, err := f.svc.CreatePreference(ctx, "key-1", checkoutRequest())
	require.NoError(t, err)
	second, err := f.svc.CreatePreference(ctx, "key-1", checkoutRequest())
	require.NoError(t, err)

	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Len(t, f.preferences.calls, 1)

	orders, err := f.orders.ListOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestCreatePreferenceGatewayFailureReleasesKey(t *testing.T) {
	f := newCheckoutFixture(t, false)
	f.preferences.err = &models.IntegrationFailure{Collaborator: "payment-gateway", Err: errors.New("503")}
	ctx := context.Background()

	_, err := f.svc.CreatePreference(ctx, "key-2", checkoutRequest())
	require.Error(t, err)
	assert.True(t, models.IsIntegration(err))

	f.preferences.err = nil
	res, err := f.svc.CreatePreference(ctx, "key-2", checkoutRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, res.OrderID)
}

func TestCreatePreferenceInFlightConflict(t *testing.T) {
	f := newCheckoutFixture(t, false)
	_, _, err := f.idempotency.ClaimIdempotencyKey(context.Background(), "busy", 0)
	require.NoError(t, err)

	_, err = f.svc.CreatePreference(context.Background(), "busy", checkoutRequest())
	assert.True(t, models.IsConflict(err))
}

func TestCreateDirectOrderMapsPaymentOutcome(t *testing.T) {
	f := newCheckoutFixture(t, true)
	ctx := context.Background()

	for status, want := range map[string]models.OrderStatus{
		"approved":  models.OrderConfirmed,
		"rejected":  models.OrderCancelled,
		"cancelled": models.OrderCancelled,
		"":          models.OrderPending,
	} {
		req := checkoutRequest()
		req.PaymentStatus = status
		req.PaymentID = "pay-" + status
		order, err := f.svc.CreateDirectOrder(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, want, order.Status, status)
	}
	assert.Len(t, f.mail.sent, 4)

	_, err := f.svc.CreateDirectOrder(ctx, models.CheckoutRequest{Email: "ana@x.com"})
	assert.True(t, models.IsValidation(err))
}
