package service

import (
	"context"
	"testing"

	"storefront-service/internal/models"
	"storefront-service/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEarlyAccessRegisterReplacesSelections(t *testing.T) {
	repo := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, repo.CreateProduct(ctx, &models.Product{ID: "p1", Name: "Blender"}))
	require.NoError(t, repo.CreateVariant(ctx, &models.ProductVariant{ID: "red", ProductID: "p1", Label: "Red", Active: true}))
	require.NoError(t, repo.CreateVariant(ctx, &models.ProductVariant{ID: "blue", ProductID: "p1", Label: "Blue", Active: true}))
	svc := NewEarlyAccessService(repo, &seqIDs{})

	entry, exists, err := svc.Register(ctx, " Fan@X.com ", true, []EarlyAccessSelection{
		{VariantID: "red", VariantLabel: "Red", Quantity: 2},
		{VariantID: "blue", VariantLabel: "", Quantity: 1},
	})
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, "fan@x.com", entry.Email)
	assert.Len(t, entry.Variants, 1)

	_, exists, err = svc.Register(ctx, "fan@x.com", false, []EarlyAccessSelection{
		{VariantID: "blue", VariantLabel: "Blue", Quantity: 3},
	})
	require.NoError(t, err)
	assert.True(t, exists)

	stats, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	require.Len(t, stats.Emails[0].Variants, 1)
	assert.Equal(t, "Blue", stats.Emails[0].Variants[0].VariantLabel)
	assert.True(t, stats.Emails[0].IsPreorder)

	_, _, err = svc.Register(ctx, "bad-email", false, nil)
	assert.True(t, models.IsValidation(err))
}
