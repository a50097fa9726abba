package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"shop_catalog_v1/internal/api/dto"
	"shop_catalog_v1/internal/apperr"
	"shop_catalog_v1/internal/model"
	"shop_catalog_v1/internal/repository"
	"shop_catalog_v1/pkg/cache"
)

const (
	productCacheKeyPrefix = "catalog:product:"
	maxQueryLength        = 200
	maxImageBytes         = 5 << 20
)

// CatalogOptions 分页、推荐与缓存参数
type CatalogOptions struct {
	DefaultPageSize int
	MaxPageSize     int
	RelatedLimit    int
	MaxRelatedLimit int
	CacheTTL        time.Duration
}

func (o CatalogOptions) withDefaults() CatalogOptions {
	if o.MaxPageSize <= 0 {
		o.MaxPageSize = 50
	}
	if o.DefaultPageSize <= 0 || o.DefaultPageSize > o.MaxPageSize {
		o.DefaultPageSize = min(10, o.MaxPageSize)
	}
	if o.MaxRelatedLimit <= 0 {
		o.MaxRelatedLimit = 20
	}
	if o.RelatedLimit <= 0 || o.RelatedLimit > o.MaxRelatedLimit {
		o.RelatedLimit = min(4, o.MaxRelatedLimit)
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = 10 * time.Minute
	}
	return o
}

// UploadFile 待上传的图片
type UploadFile struct {
	Filename string
	Data     []byte
}

// ==================== CatalogService 商品目录服务 ====================

// CatalogService 商品检索、详情、推荐以及商品/SKU 维护
type CatalogService struct {
	tx         *repository.TxManager
	products   repository.ProductRepository
	variations repository.VariationRepository
	categories repository.CategoryRepository
	searcher   *SearchBreaker
	currency   *CurrencyService
	locations  *LocationService
	storage    StorageProvider
	cache      cache.Cache
	opts       CatalogOptions
}

// NewCatalogService 创建商品目录服务; locations、storage、cache 可为 nil
func NewCatalogService(
	tx *repository.TxManager,
	products repository.ProductRepository,
	variations repository.VariationRepository,
	categories repository.CategoryRepository,
	searcher *SearchBreaker,
	currency *CurrencyService,
	locations *LocationService,
	storage StorageProvider,
	c cache.Cache,
	opts CatalogOptions,
) *CatalogService {
	return &CatalogService{
		tx:         tx,
		products:   products,
		variations: variations,
		categories: categories,
		searcher:   searcher,
		currency:   currency,
		locations:  locations,
		storage:    storage,
		cache:      c,
		opts:       opts.withDefaults(),
	}
}

// ==================== 检索 ====================

// Search 组合检索并分页
func (s *CatalogService) Search(ctx context.Context, q *dto.ProductSearchQuery) (*dto.PageResult[dto.ProductSummary], error) {
	filter, err := s.FiltersFromQuery(ctx, q)
	if err != nil {
		return nil, err
	}
	page, size := s.clampPage(q.Page, q.PageSize)
	filter.Offset = (page - 1) * size
	filter.Limit = size

	quote, err := s.quote(ctx, q.Currency)
	if err != nil {
		return nil, err
	}

	rows, total, mode, err := s.searcher.Search(ctx, s.products, filter)
	if err != nil {
		return nil, apperr.FromStore(err, "商品")
	}
	if filter.Query != "" && mode == repository.SearchSubstring {
		zap.L().Debug("关键词检索使用模糊匹配", zap.String("q", filter.Query))
	}

	summaries := make([]dto.ProductSummary, len(rows))
	ids := make([]int64, len(rows))
	for i := range rows {
		summaries[i] = toProductSummary(&rows[i])
		ids[i] = rows[i].ID
	}

	if !filter.Items.IsEmpty() && len(ids) > 0 {
		items, err := s.products.MatchingItems(ctx, ids, filter.Items)
		if err != nil {
			return nil, apperr.FromStore(err, "SKU")
		}
		byProduct := make(map[int64][]dto.ItemInfo, len(ids))
		for i := range items {
			byProduct[items[i].ProductID] = append(byProduct[items[i].ProductID], toItemInfo(&items[i]))
		}
		for i := range summaries {
			summaries[i].MatchingItems = byProduct[summaries[i].ID]
		}
	}

	for i := range summaries {
		applyQuote(&summaries[i], quote)
	}
	return dto.NewPageResult(summaries, total, page, size), nil
}

// Featured 推荐位商品
func (s *CatalogService) Featured(ctx context.Context, q *dto.ProductSearchQuery) (*dto.PageResult[dto.ProductSummary], error) {
	featured := *q
	featured.Featured = true
	return s.Search(ctx, &featured)
}

// FiltersFromQuery 校验并解析检索参数, 不含分页
func (s *CatalogService) FiltersFromQuery(ctx context.Context, q *dto.ProductSearchQuery) (repository.ProductSearch, error) {
	var f repository.ProductSearch

	f.Query = strings.TrimSpace(q.Q)
	if len([]rune(f.Query)) > maxQueryLength {
		return f, apperr.Validation("关键词不能超过 %d 个字符", maxQueryLength)
	}
	f.FeaturedOnly = q.Featured

	switch {
	case q.Category < 0:
		return f, apperr.Validation("分类 ID 不合法")
	case q.Category > 0 && q.ExactCategory:
		f.CategoryIDs = []int64{q.Category}
	case q.Category > 0:
		ids, err := s.categories.DescendantIDs(ctx, q.Category, true)
		if err != nil {
			return f, apperr.FromStore(err, "分类")
		}
		// 分类不存在时 ids 为空切片, 检索结果为空
		f.CategoryIDs = ids
		if f.CategoryIDs == nil {
			f.CategoryIDs = []int64{}
		}
	}

	var err error
	if f.Items.PriceMin, err = parsePrice("price_min", q.PriceMin); err != nil {
		return f, err
	}
	if f.Items.PriceMax, err = parsePrice("price_max", q.PriceMax); err != nil {
		return f, err
	}
	if f.Items.PriceMin != nil && f.Items.PriceMax != nil && f.Items.PriceMin.GreaterThan(*f.Items.PriceMax) {
		return f, apperr.Validation("price_min 不能大于 price_max")
	}

	if f.Items.VariantGroups, err = s.variantGroups(ctx, q); err != nil {
		return f, err
	}

	switch sort := repository.SortOption(q.Sort); sort {
	case "":
		if f.Query != "" {
			f.Sort = repository.SortRelevance
		} else {
			f.Sort = repository.SortNewest
		}
	case repository.SortRelevance, repository.SortNewest, repository.SortPriceAsc,
		repository.SortPriceDesc, repository.SortFeatured, repository.SortName:
		f.Sort = sort
	default:
		return f, apperr.Validation("不支持的排序方式: %s", q.Sort)
	}
	return f, nil
}

// variantGroups 把 type:value 解析为按维度分组的规格值 ID; 同维度多个取值为 OR
func (s *CatalogService) variantGroups(ctx context.Context, q *dto.ProductSearchQuery) ([][]int64, error) {
	pairs := append([]string(nil), q.Variants...)
	for _, c := range []string{q.Colour, q.Color} {
		if c = strings.TrimSpace(c); c != "" {
			pairs = append(pairs, "color:"+c)
		}
	}
	if len(pairs) == 0 {
		return nil, nil
	}

	var order []int64
	groups := map[int64][]int64{}
	types := map[string]*model.VariationType{}
	for _, pair := range pairs {
		typeName, value, ok := strings.Cut(pair, ":")
		typeName, value = strings.TrimSpace(typeName), strings.TrimSpace(value)
		if !ok || typeName == "" || value == "" {
			return nil, apperr.Validation("规格筛选格式应为 类型:取值, 实际为 %q", pair)
		}

		key := strings.ToLower(typeName)
		vt, cached := types[key]
		if !cached {
			found, err := s.variations.GetTypeByName(ctx, typeName)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperr.Validation("未知的规格类型: %s", typeName)
			}
			if err != nil {
				return nil, apperr.FromStore(err, "规格")
			}
			vt = found
			types[key] = vt
		}

		variant, err := s.variations.FindVariant(ctx, vt.ID, value)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Validation("规格 %s 没有取值 %s", vt.Name, value)
		}
		if err != nil {
			return nil, apperr.FromStore(err, "规格值")
		}

		if _, seen := groups[vt.ID]; !seen {
			order = append(order, vt.ID)
		}
		groups[vt.ID] = append(groups[vt.ID], variant.ID)
	}

	out := make([][]int64, len(order))
	for i, typeID := range order {
		out[i] = uniqueInt64s(groups[typeID])
	}
	return out, nil
}

func parsePrice(name, raw string) (*decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, apperr.Validation("%s 不是合法金额: %s", name, raw)
	}
	if d.IsNegative() {
		return nil, apperr.Validation("%s 不能为负数", name)
	}
	return &d, nil
}

// clampPage page 从 1 开始; pageSize 限制在 [1, MaxPageSize]
func (s *CatalogService) clampPage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case size <= 0:
		size = s.opts.DefaultPageSize
	case size > s.opts.MaxPageSize:
		size = s.opts.MaxPageSize
	}
	return page, size
}

// ==================== 详情与推荐 ====================

// GetProduct 商品详情; 下架商品只有管理角色可见
// 指定地区时按地区标价与 SKU 折扣展示, 默认货币为地区货币
func (s *CatalogService) GetProduct(ctx context.Context, actor model.Actor, id int64, pc dto.PriceContext) (*dto.ProductDetail, error) {
	detail, err := s.loadDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	if !detail.IsActive && !actor.CanManageCatalog() {
		return nil, apperr.NotFound("商品不存在")
	}
	if err := s.attachBreadcrumb(ctx, detail); err != nil {
		return nil, err
	}

	currency := pc.Currency
	var local *localPricing
	if strings.TrimSpace(pc.Location) != "" {
		if s.locations == nil {
			return nil, apperr.Validation("未启用地区定价")
		}
		itemIDs := make([]int64, len(detail.Items))
		for i := range detail.Items {
			itemIDs[i] = detail.Items[i].ID
		}
		if local, err = s.locations.pricing(ctx, detail.ID, itemIDs, pc.Location); err != nil {
			return nil, err
		}
		detail.Location = local.location
		if strings.TrimSpace(currency) == "" {
			currency = local.currency
		}
	}

	quote, err := s.quote(ctx, currency)
	if err != nil {
		return nil, err
	}
	if local != nil && local.listing != nil {
		return detail, s.applyLocalPrices(ctx, detail, local, quote)
	}
	applyQuote(&detail.ProductSummary, quote)
	for i := range detail.Items {
		detail.Items[i].Price = quote.apply(detail.Items[i].Price)
	}
	return detail, nil
}

// applyLocalPrices 用地区标价替换全局价格
// SKU 价格 = 地区标价扣除当前生效的折扣, 再从地区货币换算到展示货币
func (s *CatalogService) applyLocalPrices(ctx context.Context, detail *dto.ProductDetail, local *localPricing, quote priceQuote) error {
	conv, err := s.crossQuote(ctx, local.currency, quote)
	if err != nil {
		return err
	}
	listing := local.listing
	if listing.Name != "" {
		detail.Name = listing.Name
	}
	if listing.Description != "" {
		detail.Description = listing.Description
	}
	detail.Currency = conv.code

	list := conv.apply(listing.Price)
	detail.MinPrice, detail.MaxPrice = nil, nil
	for i := range detail.Items {
		item := &detail.Items[i]
		item.Price = list
		item.ListPrice, item.Discount = nil, nil
		if d, ok := local.discounts[item.ID]; ok {
			if pct := d.EffectiveDiscount(local.at); pct.IsPositive() {
				listPrice := list
				item.Price = conv.apply(model.DiscountedPrice(listing.Price, pct))
				item.ListPrice = &listPrice
				item.Discount = &pct
			}
		}
		price := item.Price
		if detail.MinPrice == nil || price.LessThan(*detail.MinPrice) {
			detail.MinPrice = &price
		}
		if detail.MaxPrice == nil || price.GreaterThan(*detail.MaxPrice) {
			detail.MaxPrice = &price
		}
	}
	if len(detail.Items) == 0 {
		detail.MinPrice, detail.MaxPrice = &list, &list
	}
	return nil
}

// attachBreadcrumb 每次请求按当前分类树生成面包屑
// 分类改名、移动不会失效商品缓存, 面包屑不能进缓存
func (s *CatalogService) attachBreadcrumb(ctx context.Context, detail *dto.ProductDetail) error {
	path, err := s.categories.Ancestors(ctx, detail.CategoryID, true)
	if err != nil {
		return apperr.FromStore(err, "分类")
	}
	detail.Category = nil
	detail.Breadcrumb = make([]dto.BreadcrumbItem, 0, len(path))
	for i := range path {
		detail.Breadcrumb = append(detail.Breadcrumb, toBreadcrumbItem(&path[i]))
	}
	if n := len(detail.Breadcrumb); n > 0 {
		self := detail.Breadcrumb[n-1]
		detail.Category = &self
	}
	return nil
}

// loadDetail 基准货币的商品与 SKU, 读缓存; 不含分类信息
func (s *CatalogService) loadDetail(ctx context.Context, id int64) (*dto.ProductDetail, error) {
	key := productCacheKey(id)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key); err == nil {
			var detail dto.ProductDetail
			if json.Unmarshal([]byte(raw), &detail) == nil {
				return &detail, nil
			}
		}
	}

	product, err := s.products.GetDetail(ctx, id)
	if err != nil {
		return nil, apperr.FromStore(err, "商品")
	}

	detail := &dto.ProductDetail{
		ProductSummary: toProductSummary(&repository.ProductRow{Product: *product}),
		Items:          make([]dto.ItemInfo, len(product.Items)),
	}
	for i := range product.Items {
		detail.Items[i] = toItemInfo(&product.Items[i])
		price := product.Items[i].Price
		if detail.MinPrice == nil || price.LessThan(*detail.MinPrice) {
			detail.MinPrice = &price
		}
		if detail.MaxPrice == nil || price.GreaterThan(*detail.MaxPrice) {
			detail.MaxPrice = &price
		}
	}

	if s.cache != nil {
		if raw, err := json.Marshal(detail); err == nil {
			if err := s.cache.Set(ctx, key, string(raw), s.opts.CacheTTL); err != nil {
				zap.L().Warn("商品详情缓存写入失败", zap.Int64("product_id", id), zap.Error(err))
			}
		}
	}
	return detail, nil
}

// Related 同分类的其他在售商品; limit 限制在 [1, MaxRelatedLimit]
func (s *CatalogService) Related(ctx context.Context, id int64, limit int, currency string) ([]dto.ProductSummary, error) {
	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.FromStore(err, "商品")
	}
	if !product.IsActive {
		return nil, apperr.NotFound("商品不存在")
	}

	switch {
	case limit <= 0:
		limit = s.opts.RelatedLimit
	case limit > s.opts.MaxRelatedLimit:
		limit = s.opts.MaxRelatedLimit
	}

	quote, err := s.quote(ctx, currency)
	if err != nil {
		return nil, err
	}
	rows, err := s.products.Related(ctx, product, limit)
	if err != nil {
		return nil, apperr.FromStore(err, "商品")
	}
	out := make([]dto.ProductSummary, len(rows))
	for i := range rows {
		out[i] = toProductSummary(&rows[i])
		applyQuote(&out[i], quote)
	}
	return out, nil
}

// ==================== 商品维护 ====================

// CreateProduct 创建商品
func (s *CatalogService) CreateProduct(ctx context.Context, actor model.Actor, req *dto.CreateProductRequest) (*dto.ProductSummary, error) {
	if !actor.CanManageCatalog() {
		return nil, apperr.Permission("无权维护商品")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.Validation("商品名称不能为空")
	}
	if err := s.requireCategory(ctx, req.CategoryID); err != nil {
		return nil, err
	}

	product := &model.Product{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Images:      req.Images,
		CategoryID:  req.CategoryID,
		Featured:    req.Featured,
		IsActive:    true,
	}
	if product.Images == nil {
		product.Images = []string{}
	}
	if err := s.products.Create(ctx, product); err != nil {
		return nil, apperr.FromStore(err, "商品")
	}
	summary := toProductSummary(&repository.ProductRow{Product: *product})
	summary.Currency = s.currency.Base()
	return &summary, nil
}

// UpdateProduct 更新商品
func (s *CatalogService) UpdateProduct(ctx context.Context, actor model.Actor, id int64, req *dto.UpdateProductRequest) (*dto.ProductSummary, error) {
	if !actor.CanManageCatalog() {
		return nil, apperr.Permission("无权维护商品")
	}
	if _, err := s.products.GetByID(ctx, id); err != nil {
		return nil, apperr.FromStore(err, "商品")
	}

	fields := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apperr.Validation("商品名称不能为空")
		}
		fields["name"] = name
	}
	if req.Description != nil {
		fields["description"] = strings.TrimSpace(*req.Description)
	}
	if req.CategoryID != nil {
		if err := s.requireCategory(ctx, *req.CategoryID); err != nil {
			return nil, err
		}
		fields["category_id"] = *req.CategoryID
	}
	if req.Featured != nil {
		fields["featured"] = *req.Featured
	}
	if req.IsActive != nil {
		fields["is_active"] = *req.IsActive
	}
	if req.Images != nil {
		images := *req.Images
		if images == nil {
			images = []string{}
		}
		fields["images"] = datatypes.JSONSlice[string](images)
	}

	if len(fields) > 0 {
		if err := s.products.UpdateFields(ctx, id, fields); err != nil {
			return nil, apperr.FromStore(err, "商品")
		}
		s.invalidateProduct(ctx, id)
	}

	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.FromStore(err, "商品")
	}
	summary := toProductSummary(&repository.ProductRow{Product: *product})
	summary.Currency = s.currency.Base()
	return &summary, nil
}

// DeactivateProduct 下架商品; 保留记录与 SKU
func (s *CatalogService) DeactivateProduct(ctx context.Context, actor model.Actor, id int64) error {
	if !actor.CanManageCatalog() {
		return apperr.Permission("无权维护商品")
	}
	if _, err := s.products.GetByID(ctx, id); err != nil {
		return apperr.FromStore(err, "商品")
	}
	if err := s.products.UpdateFields(ctx, id, map[string]interface{}{"is_active": false}); err != nil {
		return apperr.FromStore(err, "商品")
	}
	s.invalidateProduct(ctx, id)
	return nil
}

// UploadImages 上传商品图片并追加到图片列表
func (s *CatalogService) UploadImages(ctx context.Context, actor model.Actor, id int64, files []UploadFile) (*dto.ImageUploadResult, error) {
	if !actor.CanManageCatalog() {
		return nil, apperr.Permission("无权维护商品")
	}
	if s.storage == nil {
		return nil, apperr.Unavailable(nil, "未配置对象存储")
	}
	if len(files) == 0 {
		return nil, apperr.Validation("没有上传文件")
	}
	if _, err := s.products.GetByID(ctx, id); err != nil {
		return nil, apperr.FromStore(err, "商品")
	}

	types := make([]string, len(files))
	for i, f := range files {
		if len(f.Data) == 0 || len(f.Data) > maxImageBytes {
			return nil, apperr.Validation("图片 %s 大小必须在 1B 到 %dMB 之间", f.Filename, maxImageBytes>>20)
		}
		types[i] = http.DetectContentType(f.Data)
		if !strings.HasPrefix(types[i], "image/") {
			return nil, apperr.Validation("%s 不是图片 (%s)", f.Filename, types[i])
		}
	}

	urls := make([]string, 0, len(files))
	for i, f := range files {
		url, err := s.storage.Upload(ctx, f.Data, f.Filename, types[i])
		if err != nil {
			return nil, apperr.Unavailable(err, "图片上传失败")
		}
		urls = append(urls, url)
	}

	if err := s.products.AppendImages(ctx, id, urls); err != nil {
		return nil, apperr.FromStore(err, "商品")
	}
	s.invalidateProduct(ctx, id)
	return &dto.ImageUploadResult{URLs: urls}, nil
}

// ==================== SKU 维护 ====================

// CreateItem 创建 SKU, 并在同一事务内绑定初始规格
func (s *CatalogService) CreateItem(ctx context.Context, actor model.Actor, req *dto.CreateItemRequest) (*dto.ItemInfo, error) {
	if !actor.CanManageCatalog() {
		return nil, apperr.Permission("无权维护 SKU")
	}
	sku := strings.TrimSpace(req.SKU)
	if sku == "" {
		return nil, apperr.Validation("SKU 编码不能为空")
	}
	if err := validateItemNumbers(&req.Price, &req.Stock); err != nil {
		return nil, err
	}
	product, err := s.products.GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, apperr.FromStore(err, "商品")
	}

	item := &model.ProductItem{
		ProductID: product.ID,
		SKU:       sku,
		Stock:     req.Stock,
		Price:     req.Price,
		Images:    req.Images,
		IsActive:  true,
	}
	if item.Images == nil {
		item.Images = []string{}
	}

	err = s.tx.Do(ctx, func(tx *gorm.DB) error {
		if err := s.products.WithTx(tx).CreateItem(ctx, item); err != nil {
			return apperr.FromStore(err, "SKU")
		}
		item.Product = product
		return s.attachAll(ctx, s.variations.WithTx(tx), item, req.VariantIDs)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateProduct(ctx, product.ID)
	return s.itemInfo(ctx, item.ID)
}

// UpdateItem 更新 SKU; VariantIDs 非 nil 时整体替换规格
func (s *CatalogService) UpdateItem(ctx context.Context, actor model.Actor, id int64, req *dto.UpdateItemRequest) (*dto.ItemInfo, error) {
	if !actor.CanManageCatalog() {
		return nil, apperr.Permission("无权维护 SKU")
	}
	item, err := s.products.GetItem(ctx, id)
	if err != nil {
		return nil, apperr.FromStore(err, "SKU")
	}
	if err := validateItemNumbers(req.Price, req.Stock); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if req.Stock != nil {
		fields["stock"] = *req.Stock
	}
	if req.Price != nil {
		fields["price"] = *req.Price
	}
	if req.IsActive != nil {
		fields["is_active"] = *req.IsActive
	}
	if req.Images != nil {
		images := *req.Images
		if images == nil {
			images = []string{}
		}
		fields["images"] = datatypes.JSONSlice[string](images)
	}

	err = s.tx.Do(ctx, func(tx *gorm.DB) error {
		if len(fields) > 0 {
			if err := s.products.WithTx(tx).UpdateItemFields(ctx, id, fields); err != nil {
				return apperr.FromStore(err, "SKU")
			}
		}
		if req.VariantIDs == nil {
			return nil
		}
		variations := s.variations.WithTx(tx)
		if err := variations.DetachAll(ctx, id); err != nil {
			return apperr.FromStore(err, "规格配置")
		}
		return s.attachAll(ctx, variations, item, *req.VariantIDs)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateProduct(ctx, item.ProductID)
	return s.itemInfo(ctx, id)
}

// DeactivateItem 下架 SKU
func (s *CatalogService) DeactivateItem(ctx context.Context, actor model.Actor, id int64) error {
	if !actor.CanManageCatalog() {
		return apperr.Permission("无权维护 SKU")
	}
	item, err := s.products.GetItem(ctx, id)
	if err != nil {
		return apperr.FromStore(err, "SKU")
	}
	if err := s.products.UpdateItemFields(ctx, id, map[string]interface{}{"is_active": false}); err != nil {
		return apperr.FromStore(err, "SKU")
	}
	s.invalidateProduct(ctx, item.ProductID)
	return nil
}

// ListItems 商品下的 SKU; 管理角色可见下架 SKU
func (s *CatalogService) ListItems(ctx context.Context, actor model.Actor, productID int64) ([]dto.ItemInfo, error) {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, apperr.FromStore(err, "商品")
	}
	manage := actor.CanManageCatalog()
	if !product.IsActive && !manage {
		return nil, apperr.NotFound("商品不存在")
	}

	items, err := s.products.ListItems(ctx, productID, manage)
	if err != nil {
		return nil, apperr.FromStore(err, "SKU")
	}
	out := make([]dto.ItemInfo, len(items))
	for i := range items {
		out[i] = toItemInfo(&items[i])
	}
	return out, nil
}

func (s *CatalogService) attachAll(ctx context.Context, variations repository.VariationRepository, item *model.ProductItem, variantIDs []int64) error {
	for _, vid := range uniqueInt64s(variantIDs) {
		variant, err := variations.GetVariant(ctx, vid)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Validation("规格值 %d 不存在", vid)
		}
		if err != nil {
			return apperr.FromStore(err, "规格值")
		}
		if err := attachChecked(ctx, variations, item, variant); err != nil {
			return err
		}
	}
	return nil
}

func (s *CatalogService) itemInfo(ctx context.Context, id int64) (*dto.ItemInfo, error) {
	item, err := s.products.GetItem(ctx, id)
	if err != nil {
		return nil, apperr.FromStore(err, "SKU")
	}
	info := toItemInfo(item)
	return &info, nil
}

func validateItemNumbers(price *decimal.Decimal, stock *int) error {
	if price != nil && !price.IsPositive() {
		return apperr.Validation("价格必须大于 0")
	}
	if stock != nil && *stock < 0 {
		return apperr.Validation("库存不能为负数")
	}
	return nil
}

// ==================== 辅助方法 ====================

func (s *CatalogService) requireCategory(ctx context.Context, id int64) error {
	_, err := s.categories.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.Validation("分类 %d 不存在", id)
	}
	return apperr.FromStore(err, "分类")
}

func (s *CatalogService) invalidateProduct(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, productCacheKey(id)); err != nil {
		zap.L().Warn("商品详情缓存失效失败", zap.Int64("product_id", id), zap.Error(err))
	}
}

func productCacheKey(id int64) string {
	return fmt.Sprintf("%s%d", productCacheKeyPrefix, id)
}

// priceQuote 展示价格用的换算; code 为空时保留原始金额
type priceQuote struct {
	code  string
	quote *RateQuote
}

func (s *CatalogService) quote(ctx context.Context, code string) (priceQuote, error) {
	if strings.TrimSpace(code) == "" {
		return priceQuote{code: s.currency.Base()}, nil
	}
	q, err := s.currency.Resolve(ctx, code)
	if err != nil {
		return priceQuote{}, err
	}
	return priceQuote{code: q.Code, quote: q}, nil
}

// crossQuote 从 from 货币换算到 to 的报价, 经由基准货币; 同币种不换算
func (s *CatalogService) crossQuote(ctx context.Context, from string, to priceQuote) (priceQuote, error) {
	src, err := s.currency.Resolve(ctx, from)
	if err != nil {
		return priceQuote{}, err
	}
	if src.Code == to.code {
		return priceQuote{code: to.code}, nil
	}
	rate := decimal.NewFromInt(1)
	if to.quote != nil {
		rate = to.quote.Rate
	}
	if src.Rate.IsPositive() {
		rate = rate.Div(src.Rate)
	}
	return priceQuote{code: to.code, quote: &RateQuote{Code: to.code, Rate: rate}}, nil
}

func (p priceQuote) apply(d decimal.Decimal) decimal.Decimal {
	if p.quote == nil {
		return d
	}
	return p.quote.Apply(d)
}

func applyQuote(s *dto.ProductSummary, p priceQuote) {
	s.Currency = p.code
	if s.MinPrice != nil {
		v := p.apply(*s.MinPrice)
		s.MinPrice = &v
	}
	if s.MaxPrice != nil {
		v := p.apply(*s.MaxPrice)
		s.MaxPrice = &v
	}
	for i := range s.MatchingItems {
		s.MatchingItems[i].Price = p.apply(s.MatchingItems[i].Price)
	}
}

func toProductSummary(row *repository.ProductRow) dto.ProductSummary {
	p := &row.Product
	summary := dto.ProductSummary{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Images:      []string(p.Images),
		CategoryID:  p.CategoryID,
		Featured:    p.Featured,
		IsActive:    p.IsActive,
		Rank:        row.Rank,
		CreatedBy:   p.CreatedBy,
		UpdatedBy:   p.UpdatedBy,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if math.IsNaN(summary.Rank) {
		summary.Rank = 0
	}
	if summary.Images == nil {
		summary.Images = []string{}
	}
	if row.MinPrice.Valid {
		v := row.MinPrice.Decimal
		summary.MinPrice = &v
	}
	if row.MaxPrice.Valid {
		v := row.MaxPrice.Decimal
		summary.MaxPrice = &v
	}
	return summary
}

func toItemInfo(item *model.ProductItem) dto.ItemInfo {
	info := dto.ItemInfo{
		ID:        item.ID,
		ProductID: item.ProductID,
		SKU:       item.SKU,
		Stock:     item.Stock,
		Price:     item.Price,
		Images:    []string(item.Images),
		IsActive:  item.IsActive,
		Variants:  make([]dto.VariantInfo, len(item.Variants)),
	}
	if info.Images == nil {
		info.Images = []string{}
	}
	for i := range item.Variants {
		info.Variants[i] = *toVariantInfo(&item.Variants[i])
	}
	return info
}
