package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shop_catalog_v1/internal/api/dto"
	"shop_catalog_v1/internal/apperr"
)

func TestVariationService_TypeAndVariantConflicts(t *testing.T) {
	env := newCatalogEnv(t)
	ctx := context.Background()
	env.variationType(t, "Color", "Red")

	_, err := env.variations.CreateVariationType(ctx, adminActor, &dto.CreateVariationTypeRequest{Name: "color"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	types, err := env.variations.ListVariationTypes(ctx)
	require.NoError(t, err)
	require.Len(t, types, 1)

	_, err = env.variations.AddVariant(ctx, adminActor, types[0].ID, &dto.CreateVariantRequest{Value: "RED"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = env.variations.AddVariant(ctx, adminActor, 404, &dto.CreateVariantRequest{Value: "x"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = env.variations.CreateVariationType(ctx, customerActor, &dto.CreateVariationTypeRequest{Name: "Size"})
	assert.ErrorIs(t, err, apperr.ErrPermission)

	_, err = env.variations.CreateVariationType(ctx, adminActor, &dto.CreateVariationTypeRequest{Name: "Size", CategoryIDs: []int64{404}})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestVariationService_ScopedTypes(t *testing.T) {
	env := newCatalogEnv(t)
	ctx := context.Background()

	clothing := env.category(t, "Clothing", 0)
	shoes := env.category(t, "Shoes", clothing)
	books := env.category(t, "Books", 0)

	env.variationType(t, "Color", "Red")
	_, err := env.variations.CreateVariationType(ctx, adminActor, &dto.CreateVariationTypeRequest{Name: "Shoe Size", CategoryIDs: []int64{clothing}})
	require.NoError(t, err)

	names := func(list []dto.VariationTypeInfo) []string {
		out := make([]string, len(list))
		for i, v := range list {
			out[i] = v.Name
		}
		return out
	}

	// 绑定在祖先上的维度对子分类同样适用
	list, err := env.variations.ListVariationTypesForCategory(ctx, shoes)
	require.NoError(t, err)
	assert.Equal(t, []string{"Color", "Shoe Size"}, names(list))

	list, err = env.variations.ListVariationTypesForCategory(ctx, books)
	require.NoError(t, err)
	assert.Equal(t, []string{"Color"}, names(list))

	_, err = env.variations.ListVariationTypesForCategory(ctx, 404)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestVariationService_AttachRules(t *testing.T) {
	env := newCatalogEnv(t)
	ctx := context.Background()

	clothing := env.category(t, "Clothing", 0)
	books := env.category(t, "Books", 0)
	colors := env.variationType(t, "Color", "Red", "Blue")

	vt, err := env.variations.CreateVariationType(ctx, adminActor, &dto.CreateVariationTypeRequest{Name: "Size", CategoryIDs: []int64{clothing}})
	require.NoError(t, err)
	m, err := env.variations.AddVariant(ctx, adminActor, vt.ID, &dto.CreateVariantRequest{Value: "M"})
	require.NoError(t, err)

	tee := env.product(t, "Tee", "", clothing)
	teeItem := env.item(t, tee, "TEE-1", "20")
	novel := env.product(t, "Novel", "", books)
	novelItem := env.item(t, novel, "NOV-1", "15")

	info, err := env.variations.AttachVariant(ctx, sellerActor, teeItem, colors["Red"])
	require.NoError(t, err)
	assert.Equal(t, "Color", info.Type)
	assert.Equal(t, "Red", info.Value)

	_, err = env.variations.AttachVariant(ctx, sellerActor, teeItem, colors["Red"])
	assert.ErrorIs(t, err, apperr.ErrConflict, "重复绑定")

	_, err = env.variations.AttachVariant(ctx, sellerActor, teeItem, colors["Blue"])
	assert.ErrorIs(t, err, apperr.ErrValidation, "同一维度只能有一个取值")

	_, err = env.variations.AttachVariant(ctx, sellerActor, novelItem, m.ID)
	assert.ErrorIs(t, err, apperr.ErrValidation, "尺码不适用于图书")

	_, err = env.variations.AttachVariant(ctx, sellerActor, teeItem, m.ID)
	require.NoError(t, err)

	_, err = env.variations.AttachVariant(ctx, customerActor, novelItem, colors["Red"])
	assert.ErrorIs(t, err, apperr.ErrPermission)

	variants, err := env.variations.ListVariants(ctx, teeItem)
	require.NoError(t, err)
	assert.Len(t, variants, 2)
}

func TestVariationService_FindItemByConfiguration(t *testing.T) {
	env := newCatalogEnv(t)
	ctx := context.Background()

	cat := env.category(t, "Clothing", 0)
	colors := env.variationType(t, "Color", "Red", "Blue")
	sizes := env.variationType(t, "Size", "S", "M")

	tee := env.product(t, "Tee", "", cat)
	redM := env.item(t, tee, "TEE-RED-M", "20", colors["Red"], sizes["M"])
	env.item(t, tee, "TEE-RED-S", "20", colors["Red"], sizes["S"])

	item, err := env.variations.FindItemByConfiguration(ctx, tee, []int64{sizes["M"], colors["Red"]})
	require.NoError(t, err)
	assert.Equal(t, redM, item.ID)
	assert.Equal(t, "TEE-RED-M", item.SKU)

	// 子集不算匹配
	_, err = env.variations.FindItemByConfiguration(ctx, tee, []int64{colors["Red"]})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = env.variations.FindItemByConfiguration(ctx, tee, []int64{colors["Blue"], sizes["M"]})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = env.variations.FindItemByConfiguration(ctx, tee, nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = env.variations.FindItemByConfiguration(ctx, 404, []int64{colors["Red"]})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
