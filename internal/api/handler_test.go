package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront-service/internal/gateway"
	"storefront-service/internal/mailer"
	"storefront-service/internal/models"
	"storefront-service/internal/service"
	"storefront-service/internal/store/memory"
	"storefront-service/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGateway struct {
	payments        map[string]*models.GatewayPayment
	preferenceCalls int
}

func (g *stubGateway) GetPayment(ctx context.Context, id string) (*models.GatewayPayment, error) {
	if p, ok := g.payments[id]; ok {
		return p, nil
	}
	return nil, &models.IntegrationFailure{Collaborator: "payment-gateway", Err: context.DeadlineExceeded}
}

func (g *stubGateway) CreatePreference(ctx context.Context, req gateway.PreferenceRequest) (*gateway.Preference, error) {
	g.preferenceCalls++
	return &gateway.Preference{ID: "pref-" + req.ExternalReference, InitPoint: "https://pay.example/checkout"}, nil
}

type testServer struct {
	router  *gin.Engine
	repo    *memory.Store
	queue   *worker.TaskQueue
	gateway *stubGateway
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := memory.NewStore()
	require.NoError(t, repo.CreateProduct(context.Background(), &models.Product{
		ID:          "p1",
		Name:        "Portable Blender",
		Price:       decimal.NewFromInt(25),
		BatchStatus: models.BatchAvailable,
	}))

	queue := worker.NewTaskQueue("api-test", 2, 16)
	t.Cleanup(func() { _ = queue.Shutdown(context.Background()) })

	ids := service.UUIDGenerator{}
	mail := mailer.NewLogMailer()
	gw := &stubGateway{payments: map[string]*models.GatewayPayment{}}
	events := service.NopPublisher{}

	dispatcher := service.NewRestockDispatcher(repo, mail, service.NewLocalLocker(), events, 4, time.Minute)
	orders := service.NewOrderService(repo, ids, events)
	reconciler := service.NewPaymentReconciler(orders, gw)

	h := NewHandler(Services{
		Variants:      service.NewVariantService(repo, ids, queue, dispatcher, events, service.VariantDefaults{RestockDays: 10, PreorderDays: 10}),
		Subscriptions: service.NewSubscriptionService(repo, ids, 1),
		Dispatcher:    dispatcher,
		Orders:        orders,
		Checkout:      service.NewCheckoutService(orders, repo, gw, mail, nil, ids, service.CheckoutConfig{BackendURL: "http://api"}),
		Webhooks:      service.NewWebhookIntake(queue, reconciler, 5*time.Second),
		EarlyAccess:   service.NewEarlyAccessService(repo, ids),
		Store:         repo,
	}, Options{PublicKey: "TEST-key", AllowedOrigins: []string{"http://shop.example"}})

	router := gin.New()
	h.SetupRoutes(router)
	return &testServer{router: router, repo: repo, queue: queue, gateway: gw}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/ready", nil).Code)
}

func TestVariantLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/products/p1/variants", gin.H{"label": "Red", "image_url": "/red.png", "stock": 0, "batch_status": "soldout"})
	require.Equal(t, http.StatusCreated, w.Code)
	var variant models.ProductVariant
	decode(t, w, &variant)

	w = s.do(t, http.MethodPost, "/api/products/p1/variants", gin.H{"image_url": "/x.png"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/products/notify-when-restocked", gin.H{"email": "a@x.com", "variantId": variant.ID, "variantQty": 2, "variantLabel": "Red"})
	assert.Equal(t, http.StatusCreated, w.Code)
	w = s.do(t, http.MethodPost, "/api/products/notify-when-restocked", gin.H{"email": "a@x.com", "variantId": variant.ID})
	require.Equal(t, http.StatusOK, w.Code)
	var dup map[string]interface{}
	decode(t, w, &dup)
	assert.Equal(t, true, dup["alreadyExists"])

	w = s.do(t, http.MethodPatch, "/api/products/variants/"+variant.ID, gin.H{"stock": 5, "batch_status": "available"})
	require.Equal(t, http.StatusOK, w.Code)
	s.queue.Wait()

	w = s.do(t, http.MethodGet, "/api/products/stock-notifications/"+variant.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var subs []models.StockNotification
	decode(t, w, &subs)
	require.Len(t, subs, 1)
	assert.True(t, subs[0].Notified)

	w = s.do(t, http.MethodGet, "/api/products/p1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var product models.Product
	decode(t, w, &product)
	assert.Equal(t, 5, product.Stock)

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/api/products/variants/"+variant.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/api/products/variants/"+variant.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/products/missing", nil).Code)
}

func TestOperatorDispatch(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.repo.CreateVariant(context.Background(), &models.ProductVariant{ID: "v1", ProductID: "p1", Label: "Red", Active: true}))
	w := s.do(t, http.MethodPost, "/api/products/notify-when-restocked", gin.H{"email": "a@x.com", "variantId": "v1"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodPost, "/api/products/variants/v1/notifications/dispatch", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var res service.DispatchResult
	decode(t, w, &res)
	assert.Equal(t, 1, res.Pending)
	assert.Equal(t, 1, res.Sent)
}

func TestWebhookAcknowledgesAndReconciles(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/payments/create-preference", gin.H{
		"name": "Ana", "email": "ana@x.com", "phone": "555", "address": "Street 1", "city": "Rosario",
		"zipCode": "2000", "quantity": 4, "total": 100, "productId": "p1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res models.CheckoutResult
	decode(t, w, &res)

	s.gateway.payments["987"] = &models.GatewayPayment{ID: "987", Status: "approved", ExternalReference: res.OrderID}

	w = s.do(t, http.MethodPost, "/api/payments/webhook", gin.H{"type": "payment", "action": "payment.updated", "data": gin.H{"id": 987}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
	s.queue.Wait()

	w = s.do(t, http.MethodGet, "/api/orders/"+res.OrderID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var order models.Order
	decode(t, w, &order)
	assert.Equal(t, models.OrderConfirmed, order.Status)

	// unreadable payloads and unknown payments are still acknowledged
	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook?type=payment&data.id=404", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/payments/webhook?type=payment&data.id=404", nil)
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	s.queue.Wait()
}

func TestOrderStatusAdministration(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/orders", gin.H{
		"name": "Ana", "email": "ana@x.com", "phone": "555", "address": "Street 1", "city": "Rosario",
		"zipCode": "2000", "quantity": 1, "total": 25, "productId": "p1", "paymentStatus": "approved",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var order models.Order
	decode(t, w, &order)
	assert.Equal(t, models.OrderConfirmed, order.Status)

	w = s.do(t, http.MethodPatch, "/api/orders/"+order.ID+"/status", gin.H{"status": "shipped"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPatch, "/api/orders/"+order.ID+"/status", gin.H{"status": "lost"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPatch, "/api/orders/nope/status", gin.H{"status": "shipped"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/orders/"+order.ID+"/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []models.OrderStatusChange
	decode(t, w, &history)
	require.Len(t, history, 1)
	assert.Equal(t, models.SourceAdministrative, history[0].Source)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/orders/nope", nil).Code)
}

func TestEarlyAccessRoutes(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/launch/early-access", gin.H{"email": "fan@x.com"})
	assert.Equal(t, http.StatusCreated, w.Code)
	w = s.do(t, http.MethodPost, "/api/launch/early-access", gin.H{"email": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/launch/early-access", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats service.EarlyAccessStats
	decode(t, w, &stats)
	assert.Equal(t, 1, stats.Total)
}

func TestPublicKeyAndCORS(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/payments/public-key", nil)
	req.Header.Set("Origin", "http://shop.example")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://shop.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Body.String(), "TEST-key")
}

type failingPinger struct{}

func (failingPinger) Ping(ctx context.Context) error { return errors.New("connection refused") }

func TestReadinessReportsFailingCache(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler(Services{Store: memory.NewStore(), Cache: failingPinger{}}, Options{})
	router := gin.New()
	h.SetupRoutes(router)

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "cache")
}

func TestRequestBindingRejectsIncompletePayloads(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/payments/create-preference", gin.H{
		"name": "Ana", "email": "ana@x.com", "address": "Street 1", "city": "Rosario",
		"zipCode": "2000", "quantity": 4, "total": 100, "productId": "p1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Phone")

	w = s.do(t, http.MethodPost, "/api/payments/create-preference", gin.H{
		"name": "Ana", "email": "not-an-email", "phone": "555", "address": "Street 1", "city": "Rosario",
		"zipCode": "2000", "quantity": 4, "total": 100, "productId": "p1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, s.gateway.preferenceCalls)

	w = s.do(t, http.MethodPost, "/api/products/notify-when-restocked", gin.H{"email": "a@x.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VariantID")

	w = s.do(t, http.MethodPatch, "/api/orders/any/status", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPatch, "/api/products/p1/batch-status", gin.H{"batch_status": "gone"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
