package view

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shop_catalog_v1/internal/api/dto"
	"shop_catalog_v1/internal/model"
)

func sampleSummary() dto.ProductSummary {
	return dto.ProductSummary{
		ID:        1,
		Name:      "Runner",
		IsActive:  true,
		CreatedBy: 7,
		MatchingItems: []dto.ItemInfo{
			{ID: 10, SKU: "RUN-1", Stock: 3, Price: decimal.NewFromInt(99)},
			{ID: 11, SKU: "RUN-2", Stock: 0, Price: decimal.NewFromInt(99)},
		},
	}
}

func toMap(t *testing.T, v any) map[string]any {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func TestProduct_CustomerHidesInternals(t *testing.T) {
	for _, role := range []model.UserRole{"", model.UserRoleCustomer} {
		m := toMap(t, Product(sampleSummary(), role))
		assert.NotContains(t, m, "created_by")
		assert.NotContains(t, m, "is_active")

		items := m["matching_items"].([]any)
		first := items[0].(map[string]any)
		assert.NotContains(t, first, "stock")
		assert.Equal(t, true, first["in_stock"])
		assert.Equal(t, false, items[1].(map[string]any)["in_stock"])
	}
}

func TestProduct_ManagerSeesInternals(t *testing.T) {
	for _, role := range []model.UserRole{model.UserRoleSeller, model.UserRoleAdmin} {
		m := toMap(t, Product(sampleSummary(), role))
		assert.Equal(t, float64(7), m["created_by"])
		items := m["matching_items"].([]any)
		assert.Equal(t, float64(3), items[0].(map[string]any)["stock"])
	}
}

func TestProductPage_KeepsPagination(t *testing.T) {
	page := dto.NewPageResult([]dto.ProductSummary{sampleSummary()}, 21, 3, 10)
	out := ProductPage(page, model.UserRoleCustomer)

	assert.Equal(t, 3, out.TotalPages)
	assert.False(t, out.HasNext)
	assert.True(t, out.HasPrevious)
	_, ok := out.Items[0].(PublicProduct)
	assert.True(t, ok)
}
