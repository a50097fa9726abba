package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shop_catalog_v1/internal/api/dto"
	"shop_catalog_v1/internal/apperr"
	"shop_catalog_v1/internal/model"
)

func itemIDBySKU(t *testing.T, env *catalogEnv, sku string) int64 {
	t.Helper()
	var item model.ProductItem
	require.NoError(t, env.db.Where("sku = ?", sku).First(&item).Error)
	return item.ID
}

// 美国站: 货币 USD (1 AUD = 0.65 USD), Court Classic 标价 60 USD, CRT-RED-S 在窗口内打 75 折
func newUSPricingFixture(t *testing.T) (*catalogFixture, time.Time) {
	f := newCatalogFixture(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	f.env.locations.now = func() time.Time { return now }

	_, err := f.env.currency.SetRate(ctx, adminActor, "USD", decimal.RequireFromString("0.65"))
	require.NoError(t, err)
	loc, err := f.env.locations.Save(ctx, adminActor, "us", &dto.SaveLocationRequest{CountryName: "United States", CurrencyCode: "usd"})
	require.NoError(t, err)
	assert.Equal(t, "US", loc.CountryCode)
	assert.Equal(t, "USD", loc.CurrencyCode)

	_, err = f.env.locations.SetProductPrice(ctx, sellerActor, f.court, "US", &dto.ProductPriceRequest{
		Name:  "Court Classic (US)",
		Price: decimal.NewFromInt(60),
	})
	require.NoError(t, err)

	starts, ends := now.Add(-time.Hour), now.Add(time.Hour)
	_, err = f.env.locations.SetItemDiscount(ctx, sellerActor, itemIDBySKU(t, f.env, "CRT-RED-S"), "us", &dto.ItemDiscountRequest{
		Discount: decimal.NewFromInt(25),
		StartsAt: &starts,
		EndsAt:   &ends,
	})
	require.NoError(t, err)
	return f, now
}

func TestCatalogService_LocationPriceWithActiveDiscount(t *testing.T) {
	f, _ := newUSPricingFixture(t)
	ctx := context.Background()

	detail, err := f.env.catalog.GetProduct(ctx, model.Anonymous(), f.court, dto.PriceContext{Location: "us"})
	require.NoError(t, err)
	assert.Equal(t, "US", detail.Location)
	assert.Equal(t, "USD", detail.Currency)
	assert.Equal(t, "Court Classic (US)", detail.Name)
	assert.Equal(t, "Leather sneaker for everyday runner fans", detail.Description)

	require.Len(t, detail.Items, 1)
	item := detail.Items[0]
	assert.Equal(t, "45", item.Price.String())
	require.NotNil(t, item.ListPrice)
	assert.Equal(t, "60", item.ListPrice.String())
	require.NotNil(t, item.Discount)
	assert.Equal(t, "25", item.Discount.String())
	assert.Equal(t, "45", detail.MinPrice.String())
	assert.Equal(t, "45", detail.MaxPrice.String())

	// 显式货币: USD -> AUD, 45 / 0.65 = 69.23 -> 69
	detail, err = f.env.catalog.GetProduct(ctx, model.Anonymous(), f.court, dto.PriceContext{Location: "US", Currency: "AUD"})
	require.NoError(t, err)
	assert.Equal(t, "AUD", detail.Currency)
	assert.Equal(t, "69", detail.Items[0].Price.String())
	assert.Equal(t, "92", detail.Items[0].ListPrice.String())
}

func TestCatalogService_LocationDiscountOutsideWindow(t *testing.T) {
	f, now := newUSPricingFixture(t)
	ctx := context.Background()
	f.env.locations.now = func() time.Time { return now.Add(2 * time.Hour) }

	detail, err := f.env.catalog.GetProduct(ctx, model.Anonymous(), f.court, dto.PriceContext{Location: "US"})
	require.NoError(t, err)
	require.Len(t, detail.Items, 1)
	assert.Equal(t, "60", detail.Items[0].Price.String())
	assert.Nil(t, detail.Items[0].ListPrice)
	assert.Nil(t, detail.Items[0].Discount)
}

func TestCatalogService_LocationPriceRangeAcrossItems(t *testing.T) {
	f, _ := newUSPricingFixture(t)
	ctx := context.Background()

	_, err := f.env.locations.SetProductPrice(ctx, adminActor, f.runner, "US", &dto.ProductPriceRequest{Price: decimal.NewFromInt(60)})
	require.NoError(t, err)
	_, err = f.env.locations.SetItemDiscount(ctx, adminActor, itemIDBySKU(t, f.env, "RUN-BLU-S"), "US",
		&dto.ItemDiscountRequest{Discount: decimal.NewFromInt(50)})
	require.NoError(t, err)

	detail, err := f.env.catalog.GetProduct(ctx, model.Anonymous(), f.runner, dto.PriceContext{Location: "US"})
	require.NoError(t, err)
	assert.Equal(t, "Runner", detail.Name)
	assert.Equal(t, "30", detail.MinPrice.String())
	assert.Equal(t, "60", detail.MaxPrice.String())
}

func TestCatalogService_LocationWithoutListingUsesGlobalPrice(t *testing.T) {
	f, _ := newUSPricingFixture(t)
	ctx := context.Background()

	// 无地区货币的地区按基准货币
	nz, err := f.env.locations.Save(ctx, adminActor, "NZ", &dto.SaveLocationRequest{CountryName: "New Zealand"})
	require.NoError(t, err)
	assert.Equal(t, "AUD", nz.CurrencyCode)

	detail, err := f.env.catalog.GetProduct(ctx, model.Anonymous(), f.court, dto.PriceContext{Location: "nz"})
	require.NoError(t, err)
	assert.Equal(t, "NZ", detail.Location)
	assert.Equal(t, "AUD", detail.Currency)
	assert.Equal(t, "80", detail.Items[0].Price.String())
	assert.Nil(t, detail.Items[0].Discount)

	// 美国站没有给 Runner 标价: 全局价格换算为 USD, 99.50 * 0.65 -> 65
	detail, err = f.env.catalog.GetProduct(ctx, model.Anonymous(), f.runner, dto.PriceContext{Location: "US"})
	require.NoError(t, err)
	assert.Equal(t, "USD", detail.Currency)
	assert.Equal(t, "65", detail.MinPrice.String())

	_, err = f.env.catalog.GetProduct(ctx, model.Anonymous(), f.court, dto.PriceContext{Location: "FR"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.env.catalog.GetProduct(ctx, model.Anonymous(), f.court, dto.PriceContext{Location: "USA"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestLocationService_Validation(t *testing.T) {
	f, _ := newUSPricingFixture(t)
	ctx := context.Background()
	itemID := itemIDBySKU(t, f.env, "CRT-RED-S")

	_, err := f.env.locations.Save(ctx, sellerActor, "GB", &dto.SaveLocationRequest{CountryName: "United Kingdom"})
	assert.ErrorIs(t, err, apperr.ErrPermission)
	_, err = f.env.locations.Save(ctx, adminActor, "JP", &dto.SaveLocationRequest{CountryName: "Japan", CurrencyCode: "JPY"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.env.locations.SetProductPrice(ctx, customerActor, f.court, "US", &dto.ProductPriceRequest{Price: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, apperr.ErrPermission)
	_, err = f.env.locations.SetProductPrice(ctx, sellerActor, f.court, "US", &dto.ProductPriceRequest{Price: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.env.locations.SetProductPrice(ctx, sellerActor, 404, "US", &dto.ProductPriceRequest{Price: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.env.locations.SetItemDiscount(ctx, sellerActor, itemID, "US", &dto.ItemDiscountRequest{Discount: decimal.NewFromInt(120)})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	now := time.Now()
	earlier := now.Add(-time.Hour)
	_, err = f.env.locations.SetItemDiscount(ctx, sellerActor, itemID, "US", &dto.ItemDiscountRequest{
		Discount: decimal.NewFromInt(10), StartsAt: &now, EndsAt: &earlier,
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	// 覆盖写入而不是新增一行
	_, err = f.env.locations.SetProductPrice(ctx, sellerActor, f.court, "US", &dto.ProductPriceRequest{Price: decimal.NewFromInt(70)})
	require.NoError(t, err)
	prices, err := f.env.locations.ListProductPrices(ctx, f.court)
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.Equal(t, "70", prices[0].Price.String())
	assert.Equal(t, "USD", prices[0].Currency)
}
