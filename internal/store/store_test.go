//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"storefront-service/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupPostgresStore(t *testing.T) (*Store, func()) {
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("storefront_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	st, err := NewStore(dsn)
	require.NoError(t, err)
	require.NoError(t, st.Migrate(ctx))

	cleanup := func() {
		st.Close()
		pgContainer.Terminate(ctx)
	}
	return st, cleanup
}

func seedProduct(t *testing.T, st *Store) *models.Product {
	p := &models.Product{
		ID:                    uuid.NewString(),
		Name:                  "Portable Blender",
		Price:                 decimal.RequireFromString("25.50"),
		BatchStatus:           models.BatchAvailable,
		EstimatedRestockDays:  10,
		EstimatedPreorderDays: 10,
	}
	require.NoError(t, st.CreateProduct(context.Background(), p))
	return p
}

func newVariant(productID, label string, stock int, status models.BatchStatus) *models.ProductVariant {
	return &models.ProductVariant{
		ID:          uuid.NewString(),
		ProductID:   productID,
		Label:       label,
		ImageURL:    "/" + label + ".jpeg",
		Stock:       stock,
		BatchStatus: status,
		Active:      true,
	}
}

func TestStore_VariantWritesKeepAggregate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	st, cleanup := setupPostgresStore(t)
	defer cleanup()
	ctx := context.Background()

	p := seedProduct(t, st)
	red := newVariant(p.ID, "red", 3, models.BatchAvailable)
	blue := newVariant(p.ID, "blue", 4, models.BatchAvailable)
	require.NoError(t, st.CreateVariant(ctx, red))
	require.NoError(t, st.CreateVariant(ctx, blue))

	got, err := st.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Stock)

	inactive := false
	prev, updated, err := st.UpdateVariant(ctx, blue.ID, models.VariantPatch{Active: &inactive})
	require.NoError(t, err)
	assert.True(t, prev.Active)
	assert.False(t, updated.Active)

	got, err = st.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stock)

	deleted, err := st.DeleteVariant(ctx, red.ID)
	require.NoError(t, err)
	require.NotNil(t, deleted)

	got, err = st.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)

	prev, updated, err = st.UpdateVariant(ctx, uuid.NewString(), models.VariantPatch{Active: &inactive})
	require.NoError(t, err)
	assert.Nil(t, prev)
	assert.Nil(t, updated)
}

func TestStore_OrderStatusHistory(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	st, cleanup := setupPostgresStore(t)
	defer cleanup()
	ctx := context.Background()

	p := seedProduct(t, st)
	v := newVariant(p.ID, "green", 2, models.BatchAvailable)
	require.NoError(t, st.CreateVariant(ctx, v))

	id := uuid.NewString()
	order := &models.Order{
		ID:                id,
		CustomerName:      "Ana",
		CustomerEmail:     "ana@example.com",
		CustomerPhone:     "1122334455",
		Address:           "Street 1",
		City:              "Cordoba",
		ZipCode:           "5000",
		Quantity:          2,
		Total:             decimal.NewFromInt(100),
		Status:            models.OrderPending,
		ExternalReference: id,
		Items: []models.OrderItem{{
			ID:        uuid.NewString(),
			ProductID: &p.ID,
			VariantID: &v.ID,
			Label:     "green",
			Quantity:  2,
			UnitPrice: decimal.NewFromInt(50),
			Subtotal:  decimal.NewFromInt(100),
		}},
	}
	require.NoError(t, st.CreateOrder(ctx, order))

	byRef, err := st.GetOrderByExternalReference(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, byRef)
	assert.Len(t, byRef.Items, 1)
	assert.True(t, decimal.NewFromInt(100).Equal(byRef.Total))

	updated, change, err := st.UpdateOrderStatus(ctx, id, models.OrderConfirmed, models.SourcePaymentEvent)
	require.NoError(t, err)
	assert.Equal(t, models.OrderConfirmed, updated.Status)
	assert.Equal(t, models.OrderPending, change.FromStatus)

	history, err := st.ListStatusHistory(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.SourcePaymentEvent, history[0].Source)

	missing, err := st.GetOrder(ctx, "not-a-uuid")
	require.NoError(t, err)
	assert.Nil(t, missing)

	// variant removal keeps the item readable
	_, err = st.DeleteVariant(ctx, v.ID)
	require.NoError(t, err)
	items, err := st.GetOrderItems(ctx, id)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Nil(t, items[0].VariantID)
	assert.Equal(t, "green", items[0].Label)
}

func TestStore_ConditionalStatusAndOrderIdentity(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	st, cleanup := setupPostgresStore(t)
	defer cleanup()
	ctx := context.Background()

	newOrder := func(id, ref string) *models.Order {
		return &models.Order{
			ID:                id,
			CustomerName:      "Ana",
			CustomerEmail:     "ana@example.com",
			CustomerPhone:     "1122334455",
			Address:           "Street 1",
			City:              "Cordoba",
			ZipCode:           "5000",
			Quantity:          1,
			Total:             decimal.NewFromInt(30),
			Status:            models.OrderPending,
			ExternalReference: ref,
		}
	}

	id := uuid.NewString()
	require.NoError(t, st.CreateOrder(ctx, newOrder(id, id)))

	updated, change, err := st.UpdateOrderStatusIfChanged(ctx, id, models.OrderConfirmed, models.SourcePaymentEvent)
	require.NoError(t, err)
	require.NotNil(t, change)
	assert.Equal(t, models.OrderConfirmed, updated.Status)

	same, change, err := st.UpdateOrderStatusIfChanged(ctx, id, models.OrderConfirmed, models.SourcePaymentEvent)
	require.NoError(t, err)
	assert.Nil(t, change)
	assert.Equal(t, models.OrderConfirmed, same.Status)

	history, err := st.ListStatusHistory(ctx, id)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	err = st.CreateOrder(ctx, newOrder(id, uuid.NewString()))
	assert.True(t, models.IsValidation(err), "duplicate id: %v", err)

	err = st.CreateOrder(ctx, newOrder("not-a-uuid", uuid.NewString()))
	assert.True(t, models.IsValidation(err), "malformed id: %v", err)
}

func TestStore_SubscriptionLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	st, cleanup := setupPostgresStore(t)
	defer cleanup()
	ctx := context.Background()

	p := seedProduct(t, st)
	v := newVariant(p.ID, "red", 0, models.BatchSoldOut)
	require.NoError(t, st.CreateVariant(ctx, v))

	first := &models.StockNotification{ID: uuid.NewString(), VariantID: v.ID, Email: "a@x.com", Quantity: 2, VariantLabel: "Red"}
	created, err := st.CreateSubscription(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)

	dup := &models.StockNotification{ID: uuid.NewString(), VariantID: v.ID, Email: "a@x.com", Quantity: 5, VariantLabel: "Red"}
	created, err = st.CreateSubscription(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, dup.ID)
	assert.Equal(t, 2, dup.Quantity)

	_, err = st.CreateSubscription(ctx, &models.StockNotification{ID: uuid.NewString(), VariantID: uuid.NewString(), Email: "b@x.com", Quantity: 1, VariantLabel: "X"})
	assert.True(t, models.IsNotFound(err))

	pending, err := st.ListPending(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	ok, err := st.MarkNotified(ctx, first.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = st.MarkNotified(ctx, first.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	pending, err = st.ListPending(ctx, v.ID)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestStore_EarlyAccessUpsert(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	st, cleanup := setupPostgresStore(t)
	defer cleanup()
	ctx := context.Background()

	p := seedProduct(t, st)
	v := newVariant(p.ID, "red", 1, models.BatchAvailable)
	require.NoError(t, st.CreateVariant(ctx, v))

	entry := &models.EarlyAccessEmail{
		ID:       uuid.NewString(),
		Email:    "early@x.com",
		Variants: []models.EarlyAccessVariant{{VariantID: &v.ID, VariantLabel: "red", Quantity: 2}},
	}
	existed, err := st.UpsertEarlyAccess(ctx, entry)
	require.NoError(t, err)
	assert.False(t, existed)

	again := &models.EarlyAccessEmail{
		ID:       uuid.NewString(),
		Email:    "early@x.com",
		Variants: []models.EarlyAccessVariant{{VariantID: &v.ID, VariantLabel: "red", Quantity: 1}},
	}
	existed, err = st.UpsertEarlyAccess(ctx, again)
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, entry.ID, again.ID)

	list, err := st.ListEarlyAccess(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Len(t, list[0].Variants, 1)
	assert.Equal(t, 1, list[0].Variants[0].Quantity)

	stats, err := st.VariantPopularity(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 1, stats[0].SelectionCount)
}
