package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"shop_catalog_v1/internal/api/dto"
	"shop_catalog_v1/internal/apperr"
	"shop_catalog_v1/internal/model"
	"shop_catalog_v1/internal/repository"
)

var decimal100 = decimal.NewFromInt(100)

// LocationService 销售地区、地区标价与 SKU 折扣
type LocationService struct {
	repo     repository.LocationRepository
	products repository.ProductRepository
	currency *CurrencyService
	now      func() time.Time
}

func NewLocationService(repo repository.LocationRepository, products repository.ProductRepository, currency *CurrencyService) *LocationService {
	return &LocationService{repo: repo, products: products, currency: currency, now: time.Now}
}

// normalizeCountry 国家代码统一为两位大写字母
func normalizeCountry(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 2 || code[0] < 'A' || code[0] > 'Z' || code[1] < 'A' || code[1] > 'Z' {
		return "", apperr.Validation("国家代码必须为 2 位字母")
	}
	return code, nil
}

// currencyOf 地区标价所用货币
func (s *LocationService) currencyOf(loc *model.Location) string {
	if loc.CurrencyCode == "" {
		return s.currency.Base()
	}
	return loc.CurrencyCode
}

// ==================== 地区 ====================

func (s *LocationService) List(ctx context.Context) ([]dto.LocationInfo, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.FromStore(err, "销售地区")
	}
	out := make([]dto.LocationInfo, len(list))
	for i := range list {
		out[i] = s.toLocationInfo(&list[i])
	}
	return out, nil
}

func (s *LocationService) Get(ctx context.Context, code string) (*dto.LocationInfo, error) {
	loc, err := s.lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	info := s.toLocationInfo(loc)
	return &info, nil
}

func (s *LocationService) lookup(ctx context.Context, code string) (*model.Location, error) {
	code, err := normalizeCountry(code)
	if err != nil {
		return nil, err
	}
	loc, err := s.repo.Get(ctx, code)
	if err != nil {
		return nil, apperr.FromStore(err, "销售地区")
	}
	return loc, nil
}

// Save 新建或覆盖销售地区, 仅管理员
// 货币必须是基准货币或已有汇率的货币
func (s *LocationService) Save(ctx context.Context, actor model.Actor, code string, req *dto.SaveLocationRequest) (*dto.LocationInfo, error) {
	if !actor.IsAdmin() {
		return nil, apperr.Permission("只有管理员可以维护销售地区")
	}
	code, err := normalizeCountry(code)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.CountryName)
	if name == "" {
		return nil, apperr.Validation("地区名称不能为空")
	}

	currency := strings.ToUpper(strings.TrimSpace(req.CurrencyCode))
	if currency == s.currency.Base() {
		currency = ""
	}
	if currency != "" {
		q, err := s.currency.Resolve(ctx, currency)
		if err != nil {
			return nil, err
		}
		if q.Code != currency {
			return nil, apperr.Validation("未知货币 %s, 请先设置汇率", currency)
		}
	}

	loc := &model.Location{CountryCode: code, CountryName: name, CurrencyCode: currency}
	if err := s.repo.Save(ctx, loc); err != nil {
		return nil, apperr.FromStore(err, "销售地区")
	}
	return s.Get(ctx, code)
}

// ==================== 地区标价 ====================

// SetProductPrice 设置商品在地区的标价与本地化文案
func (s *LocationService) SetProductPrice(ctx context.Context, actor model.Actor, productID int64, code string, req *dto.ProductPriceRequest) (*dto.ProductPriceInfo, error) {
	if !actor.CanManageCatalog() {
		return nil, apperr.Permission("无权维护地区价格")
	}
	if req.Price.IsNegative() {
		return nil, apperr.Validation("价格不能为负数")
	}
	loc, err := s.lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, apperr.FromStore(err, "商品")
	}

	pl := &model.ProductLocation{
		ProductID:    productID,
		LocationCode: loc.CountryCode,
		Name:         strings.TrimSpace(req.Name),
		Description:  strings.TrimSpace(req.Description),
		Price:        req.Price.Round(2),
	}
	if err := s.repo.SaveProductPrice(ctx, pl); err != nil {
		return nil, apperr.FromStore(err, "地区价格")
	}
	saved, err := s.repo.GetProductPrice(ctx, productID, loc.CountryCode)
	if err != nil {
		return nil, apperr.FromStore(err, "地区价格")
	}
	info := toProductPriceInfo(saved, s.currencyOf(loc))
	return &info, nil
}

// ListProductPrices 商品在各地区的标价
func (s *LocationService) ListProductPrices(ctx context.Context, productID int64) ([]dto.ProductPriceInfo, error) {
	list, err := s.repo.ListProductPrices(ctx, productID)
	if err != nil {
		return nil, apperr.FromStore(err, "地区价格")
	}
	locs, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.FromStore(err, "销售地区")
	}
	currencies := make(map[string]string, len(locs))
	for i := range locs {
		currencies[locs[i].CountryCode] = s.currencyOf(&locs[i])
	}

	out := make([]dto.ProductPriceInfo, len(list))
	for i := range list {
		out[i] = toProductPriceInfo(&list[i], currencies[list[i].LocationCode])
	}
	return out, nil
}

// SetItemDiscount 设置 SKU 在地区的折扣, 折扣在 [0, 100] 之间
func (s *LocationService) SetItemDiscount(ctx context.Context, actor model.Actor, itemID int64, code string, req *dto.ItemDiscountRequest) (*dto.ItemDiscountInfo, error) {
	if !actor.CanManageCatalog() {
		return nil, apperr.Permission("无权维护地区折扣")
	}
	if req.Discount.IsNegative() || req.Discount.GreaterThan(decimal100) {
		return nil, apperr.Validation("折扣必须在 0 到 100 之间")
	}
	if req.StartsAt != nil && req.EndsAt != nil && req.EndsAt.Before(*req.StartsAt) {
		return nil, apperr.Validation("折扣结束时间早于开始时间")
	}
	loc, err := s.lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	if _, err := s.products.GetItem(ctx, itemID); err != nil {
		return nil, apperr.FromStore(err, "SKU")
	}

	d := &model.ProductItemLocation{
		ProductItemID: itemID,
		LocationCode:  loc.CountryCode,
		Discount:      req.Discount.Round(2),
		StartsAt:      req.StartsAt,
		EndsAt:        req.EndsAt,
	}
	if err := s.repo.SaveItemDiscount(ctx, d); err != nil {
		return nil, apperr.FromStore(err, "地区折扣")
	}
	return &dto.ItemDiscountInfo{
		ItemID:   itemID,
		Location: loc.CountryCode,
		Discount: d.Discount,
		StartsAt: d.StartsAt,
		EndsAt:   d.EndsAt,
	}, nil
}

// ==================== 定价 ====================

// localPricing 商品在某地区的定价输入
// listing 为 nil 表示该地区没有单独标价, 按全局价格换算展示
type localPricing struct {
	location  string
	currency  string
	listing   *model.ProductLocation
	discounts map[int64]model.ProductItemLocation
	at        time.Time
}

// pricing 取出商品在地区的标价与各 SKU 折扣
func (s *LocationService) pricing(ctx context.Context, productID int64, itemIDs []int64, code string) (*localPricing, error) {
	loc, err := s.lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	lp := &localPricing{location: loc.CountryCode, currency: s.currencyOf(loc), at: s.now()}

	listing, err := s.repo.GetProductPrice(ctx, productID, loc.CountryCode)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return lp, nil
	}
	if err != nil {
		return nil, apperr.FromStore(err, "地区价格")
	}
	lp.listing = listing

	if lp.discounts, err = s.repo.ItemDiscounts(ctx, itemIDs, loc.CountryCode); err != nil {
		return nil, apperr.FromStore(err, "地区折扣")
	}
	return lp, nil
}

func (s *LocationService) toLocationInfo(loc *model.Location) dto.LocationInfo {
	return dto.LocationInfo{
		CountryCode:  loc.CountryCode,
		CountryName:  loc.CountryName,
		CurrencyCode: s.currencyOf(loc),
		UpdatedAt:    loc.UpdatedAt,
	}
}

func toProductPriceInfo(pl *model.ProductLocation, currency string) dto.ProductPriceInfo {
	return dto.ProductPriceInfo{
		ProductID:   pl.ProductID,
		Location:    pl.LocationCode,
		Name:        pl.Name,
		Description: pl.Description,
		Price:       pl.Price,
		Currency:    currency,
	}
}
