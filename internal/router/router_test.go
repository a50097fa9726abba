package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swaggo/swag"
	"go.uber.org/zap"

	"shop_catalog_v1/internal/controller"
	"shop_catalog_v1/internal/repository"
	"shop_catalog_v1/internal/service"
	"shop_catalog_v1/internal/testutil"
	"shop_catalog_v1/pkg/cache"
	"shop_catalog_v1/pkg/config"
)

// ==================== 辅助函数 ====================

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	engine *gin.Engine
	admin  string // admin access token
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	db := testutil.NewTestDB(t)
	c := cache.NewMemory()

	storage, err := service.NewLocalStorage(config.StorageConfig{
		BasePath: t.TempDir(),
		Endpoint: "http://localhost/uploads",
	})
	require.NoError(t, err)

	products := repository.NewProductRepository(db)
	variations := repository.NewVariationRepository(db)
	categories := repository.NewCategoryRepository(db)

	users := service.NewUserService(repository.NewUserRepository(db))
	currency := service.NewCurrencyService(repository.NewCurrencyRepository(db), "AUD", "", time.Second)
	categorySvc := service.NewCategoryService(categories, c, time.Minute)
	variationSvc := service.NewVariationService(variations, products, categories)
	locations := service.NewLocationService(repository.NewLocationRepository(db), products, currency)
	catalog := service.NewCatalogService(
		repository.NewTxManager(db), products, variations, categories,
		service.NewSearchBreaker(service.SearchBreakerOptions{}),
		currency, locations, storage, c, service.CatalogOptions{},
	)

	ctl := &Controllers{
		User:      controller.NewUserController(users),
		Category:  controller.NewCategoryController(categorySvc, variationSvc),
		Product:   controller.NewProductController(catalog, variationSvc),
		Item:      controller.NewItemController(catalog, variationSvc),
		Variation: controller.NewVariationController(variationSvc),
		Address:   controller.NewAddressController(service.NewAddressService(repository.NewAddressRepository(db))),
		Currency:  controller.NewCurrencyController(currency),
		Location:  controller.NewLocationController(locations),
	}

	_, err = users.EnsureAdmin(context.Background(), "root", "root@example.com", "root-password")
	require.NoError(t, err)

	s := &testServer{engine: SetupRouter(ctl, &Options{
		Mode:            gin.TestMode,
		Logger:          zap.NewNop(),
		RebuildCooldown: time.Hour,
	})}
	s.admin = s.login(t, "root", "root-password")
	return s
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func (s *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	code, env := s.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"username": username, "password": password})
	require.Equal(t, http.StatusOK, code, env.Message)
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	return resp.AccessToken
}

func (s *testServer) register(t *testing.T, username string) string {
	t.Helper()
	code, env := s.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": username,
		"email":    username + "@example.com",
		"password": "customer-pass",
	})
	require.Equal(t, http.StatusOK, code, env.Message)
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	return resp.AccessToken
}

func (s *testServer) createID(t *testing.T, path string, body any) int64 {
	t.Helper()
	code, env := s.do(t, http.MethodPost, path, s.admin, body)
	require.Equal(t, http.StatusOK, code, env.Message)
	var created struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.Positive(t, created.ID)
	return created.ID
}

// ==================== 鉴权 ====================

func TestRouter_AuthAndRoles(t *testing.T) {
	s := setupServer(t)
	customer := s.register(t, "alice")

	code, _ := s.do(t, http.MethodGet, "/api/auth/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env := s.do(t, http.MethodGet, "/api/auth/profile", customer, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"role":"customer"`)

	code, _ = s.do(t, http.MethodPost, "/api/categories", customer, gin.H{"name": "Clothing"})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(t, http.MethodGet, "/api/users", customer, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(t, http.MethodGet, "/api/users", s.admin, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"username": "alice", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, code)
}

// ==================== 商品目录 ====================

func TestRouter_CatalogFlow(t *testing.T) {
	s := setupServer(t)

	clothing := s.createID(t, "/api/categories", gin.H{"name": "Clothing"})
	shoes := s.createID(t, "/api/categories", gin.H{"name": "Shoes", "parent_id": clothing})
	color := s.createID(t, "/api/variation-types", gin.H{"name": "Color"})
	red := s.createID(t, fmt.Sprintf("/api/variation-types/%d/variants", color), gin.H{"value": "Red"})
	product := s.createID(t, "/api/products", gin.H{"name": "Runner", "category_id": shoes})
	s.createID(t, "/api/items", gin.H{
		"product_id":  product,
		"sku":         "RUN-RED",
		"stock":       5,
		"price":       "19.99",
		"variant_ids": []int64{red},
	})

	// 父分类检索包含子分类商品
	code, env := s.do(t, http.MethodGet, fmt.Sprintf("/api/products?category=%d", clothing), "", nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	var page struct {
		Total int64             `json:"total"`
		Items []json.RawMessage `json:"items"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, int64(1), page.Total)
	assert.Contains(t, string(page.Items[0]), `"min_price":"19.99"`)
	assert.NotContains(t, string(page.Items[0]), `"is_active"`)

	// 游客看不到库存数量
	code, env = s.do(t, http.MethodGet, fmt.Sprintf("/api/products/%d", product), "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"in_stock":true`)
	assert.NotContains(t, string(env.Data), `"stock":5`)
	assert.Contains(t, string(env.Data), `"breadcrumb"`)

	code, env = s.do(t, http.MethodGet, fmt.Sprintf("/api/products/%d", product), s.admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"stock":5`)

	// 按规格组合定位 SKU
	code, env = s.do(t, http.MethodPost, fmt.Sprintf("/api/products/%d/items/match", product), "",
		gin.H{"variant_ids": []int64{red}})
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Contains(t, string(env.Data), `"sku":"RUN-RED"`)

	// 有商品的分类不能直接删除
	code, _ = s.do(t, http.MethodDelete, fmt.Sprintf("/api/categories/%d", shoes), s.admin, nil)
	assert.Equal(t, http.StatusConflict, code)

	code, env = s.do(t, http.MethodGet, "/api/categories", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"name":"Shoes"`)
}

func TestRouter_BadAndMissingIDs(t *testing.T) {
	s := setupServer(t)

	code, _ := s.do(t, http.MethodGet, "/api/products/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodGet, "/api/products/999", "", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(t, http.MethodGet, "/api/products?sort=random", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodGet, "/api/categories/flat", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRouter_RebuildCooldown(t *testing.T) {
	s := setupServer(t)

	code, env := s.do(t, http.MethodPost, "/api/categories/rebuild", s.admin, nil)
	require.Equal(t, http.StatusOK, code, env.Message)

	code, _ = s.do(t, http.MethodPost, "/api/categories/rebuild", s.admin, nil)
	assert.Equal(t, http.StatusTooManyRequests, code)
}

// ==================== 地址 ====================

func TestRouter_Addresses(t *testing.T) {
	s := setupServer(t)
	customer := s.register(t, "bob")
	addr := gin.H{
		"address_line": "1 George St",
		"city":         "Sydney",
		"postcode":     "2000",
		"state":        "NSW",
		"country":      "Australia",
	}

	code, env := s.do(t, http.MethodPost, "/api/addresses/checkout", "", gin.H{
		"address_line": "1 George St", "city": "Sydney", "postcode": "2000",
		"state": "NSW", "country": "Australia", "save_to_address_book": true,
	})
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Contains(t, string(env.Data), `"saved":false`)

	code, _ = s.do(t, http.MethodGet, "/api/addresses", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env = s.do(t, http.MethodPost, "/api/addresses", customer, addr)
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Contains(t, string(env.Data), `"is_default":true`)

	code, env = s.do(t, http.MethodGet, "/api/addresses", customer, nil)
	require.Equal(t, http.StatusOK, code)
	var list []json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 1)
}

// ==================== 汇率 ====================

func TestRouter_Currencies(t *testing.T) {
	s := setupServer(t)
	customer := s.register(t, "carol")

	code, _ := s.do(t, http.MethodPut, "/api/currencies/USD", customer, gin.H{"rate": "0.65"})
	assert.Equal(t, http.StatusForbidden, code)

	code, env := s.do(t, http.MethodPut, "/api/currencies/USD", s.admin, gin.H{"rate": "0.65"})
	require.Equal(t, http.StatusOK, code, env.Message)

	code, env = s.do(t, http.MethodGet, "/api/currencies", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"base":"AUD"`)
	assert.Contains(t, string(env.Data), `"code":"USD"`)
}

// ==================== 地区定价 ====================

func TestRouter_LocationPricing(t *testing.T) {
	s := setupServer(t)
	customer := s.register(t, "bob")

	code, env := s.do(t, http.MethodPut, "/api/locations/nz", s.admin, gin.H{"country_name": "New Zealand"})
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Contains(t, string(env.Data), `"country_code":"NZ"`)

	code, _ = s.do(t, http.MethodPut, "/api/locations/gb", customer, gin.H{"country_name": "United Kingdom"})
	assert.Equal(t, http.StatusForbidden, code)

	cat := s.createID(t, "/api/categories", gin.H{"name": "Kitchen"})
	product := s.createID(t, "/api/products", gin.H{"name": "Kettle", "category_id": cat})
	item := s.createID(t, "/api/items", gin.H{"product_id": product, "sku": "KET-1", "stock": 3, "price": "50"})

	code, env = s.do(t, http.MethodPut, fmt.Sprintf("/api/products/%d/locations/NZ", product), s.admin, gin.H{"price": "40"})
	require.Equal(t, http.StatusOK, code, env.Message)
	code, env = s.do(t, http.MethodPut, fmt.Sprintf("/api/items/%d/locations/NZ", item), s.admin, gin.H{"discount": "10"})
	require.Equal(t, http.StatusOK, code, env.Message)

	code, env = s.do(t, http.MethodGet, fmt.Sprintf("/api/products/%d?location=nz", product), "", nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	body := string(env.Data)
	assert.Contains(t, body, `"location":"NZ"`)
	assert.Contains(t, body, `"price":"36"`)
	assert.Contains(t, body, `"list_price":"40"`)

	// 不带地区时仍是全局价格
	code, env = s.do(t, http.MethodGet, fmt.Sprintf("/api/products/%d", product), "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"price":"50"`)
	assert.NotContains(t, string(env.Data), `"list_price"`)
}

// ==================== 接口文档 ====================

func TestRouter_SwaggerDocCoversRoutes(t *testing.T) {
	s := setupServer(t)

	raw, err := swag.ReadDoc()
	require.NoError(t, err)
	var doc struct {
		BasePath string                                `json:"basePath"`
		Paths    map[string]map[string]json.RawMessage `json:"paths"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	assert.Equal(t, "/api", doc.BasePath)

	param := regexp.MustCompile(`:(\w+)`)
	documented := 0
	for _, route := range s.engine.Routes() {
		if !strings.HasPrefix(route.Path, "/api/") {
			continue
		}
		path := param.ReplaceAllString(strings.TrimPrefix(route.Path, "/api"), "{$1}")
		ops, ok := doc.Paths[path]
		if assert.True(t, ok, "undocumented path %s", route.Path) {
			assert.Contains(t, ops, strings.ToLower(route.Method), "undocumented %s %s", route.Method, route.Path)
		}
		documented++
	}
	total := 0
	for _, ops := range doc.Paths {
		total += len(ops)
	}
	assert.Equal(t, documented, total)

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"/products/{id}/locations/{code}"`)
}
