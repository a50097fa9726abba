package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"shop_catalog_v1/internal/api/dto"
	"shop_catalog_v1/internal/model"
	"shop_catalog_v1/internal/repository"
	"shop_catalog_v1/internal/testutil"
	"shop_catalog_v1/pkg/cache"
)

var (
	adminActor    = model.Actor{UserID: 1, Role: model.UserRoleAdmin}
	sellerActor   = model.Actor{UserID: 2, Role: model.UserRoleSeller}
	customerActor = model.Actor{UserID: 3, Role: model.UserRoleCustomer}
)

// catalogEnv 一套接在同一个内存库上的服务
type catalogEnv struct {
	db         *gorm.DB
	cache      cache.Cache
	categories *CategoryService
	variations *VariationService
	catalog    *CatalogService
	currency   *CurrencyService
	locations  *LocationService
}

func newCatalogEnv(t *testing.T) *catalogEnv {
	t.Helper()
	db := testutil.NewTestDB(t)
	c := cache.NewMemory()

	categoryRepo := repository.NewCategoryRepository(db)
	productRepo := repository.NewProductRepository(db)
	variationRepo := repository.NewVariationRepository(db)

	currency := NewCurrencyService(repository.NewCurrencyRepository(db), "AUD", "", time.Second)
	searcher := NewSearchBreaker(SearchBreakerOptions{Threshold: 3, Cooldown: time.Minute})
	locations := NewLocationService(repository.NewLocationRepository(db), productRepo, currency)

	return &catalogEnv{
		db:         db,
		cache:      c,
		categories: NewCategoryService(categoryRepo, c, time.Minute),
		variations: NewVariationService(variationRepo, productRepo, categoryRepo),
		catalog: NewCatalogService(repository.NewTxManager(db), productRepo, variationRepo, categoryRepo,
			searcher, currency, locations, nil, c, CatalogOptions{DefaultPageSize: 10, MaxPageSize: 50}),
		currency:  currency,
		locations: locations,
	}
}

func (e *catalogEnv) category(t *testing.T, name string, parentID int64) int64 {
	t.Helper()
	info, err := e.categories.Create(context.Background(), adminActor, &dto.CreateCategoryRequest{Name: name, ParentID: parentID})
	require.NoError(t, err)
	return info.ID
}

func (e *catalogEnv) variationType(t *testing.T, name string, values ...string) map[string]int64 {
	t.Helper()
	ctx := context.Background()
	vt, err := e.variations.CreateVariationType(ctx, adminActor, &dto.CreateVariationTypeRequest{Name: name})
	require.NoError(t, err)

	ids := map[string]int64{}
	for _, v := range values {
		info, err := e.variations.AddVariant(ctx, adminActor, vt.ID, &dto.CreateVariantRequest{Value: v})
		require.NoError(t, err)
		ids[v] = info.ID
	}
	return ids
}

func (e *catalogEnv) product(t *testing.T, name, description string, categoryID int64) int64 {
	t.Helper()
	p, err := e.catalog.CreateProduct(context.Background(), sellerActor, &dto.CreateProductRequest{
		Name:        name,
		Description: description,
		CategoryID:  categoryID,
	})
	require.NoError(t, err)
	return p.ID
}

func (e *catalogEnv) item(t *testing.T, productID int64, sku, price string, variantIDs ...int64) int64 {
	t.Helper()
	item, err := e.catalog.CreateItem(context.Background(), sellerActor, &dto.CreateItemRequest{
		ProductID:  productID,
		SKU:        sku,
		Stock:      5,
		Price:      decimal.RequireFromString(price),
		VariantIDs: variantIDs,
	})
	require.NoError(t, err)
	return item.ID
}

// setCreatedAt 固定创建时间, 让按时间排序的断言稳定
func (e *catalogEnv) setCreatedAt(t *testing.T, productID int64, at time.Time) {
	t.Helper()
	require.NoError(t, e.db.Model(&model.Product{}).Where("id = ?", productID).
		UpdateColumn("created_at", at).Error)
}

func summaryNames(items []dto.ProductSummary) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = s.Name
	}
	return out
}

func seedUser(t *testing.T, db *gorm.DB, username string) *model.User {
	t.Helper()
	u := &model.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		Role:         model.UserRoleCustomer,
		IsActive:     true,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}
