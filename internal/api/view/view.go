// Package view 按请求角色裁剪响应字段
// 纯函数: 输入完整 DTO 与角色, 输出对外结构, 不访问存储
package view

import (
	"time"

	"github.com/shopspring/decimal"

	"shop_catalog_v1/internal/api/dto"
	"shop_catalog_v1/internal/model"
)

// ==================== 对外结构 ====================

// PublicItem 顾客/游客可见的 SKU
type PublicItem struct {
	ID        int64             `json:"id"`
	SKU       string            `json:"sku"`
	Price     decimal.Decimal   `json:"price"`
	ListPrice *decimal.Decimal  `json:"list_price,omitempty"`
	Discount  *decimal.Decimal  `json:"discount,omitempty"`
	InStock   bool              `json:"in_stock"`
	Images    []string          `json:"images"`
	Variants  []dto.VariantInfo `json:"variants"`
}

// PublicProduct 顾客/游客可见的商品
type PublicProduct struct {
	ID            int64            `json:"id"`
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	Images        []string         `json:"images"`
	CategoryID    int64            `json:"category_id"`
	Featured      bool             `json:"featured"`
	MinPrice      *decimal.Decimal `json:"min_price"`
	MaxPrice      *decimal.Decimal `json:"max_price"`
	Currency      string           `json:"currency"`
	Location      string           `json:"location,omitempty"`
	MatchingItems []PublicItem     `json:"matching_items,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// PublicProductDetail 详情页
type PublicProductDetail struct {
	PublicProduct
	Category   *dto.BreadcrumbItem  `json:"category"`
	Breadcrumb []dto.BreadcrumbItem `json:"breadcrumb"`
	Items      []PublicItem         `json:"items"`
}

// ==================== 投影 ====================

// showsInternals admin/seller 看到库存数量、上下架状态与审计字段
func showsInternals(role model.UserRole) bool {
	return role == model.UserRoleAdmin || role == model.UserRoleSeller
}

// Item SKU 投影
func Item(item dto.ItemInfo, role model.UserRole) any {
	if showsInternals(role) {
		return item
	}
	return publicItem(item)
}

// Product 检索结果投影
func Product(s dto.ProductSummary, role model.UserRole) any {
	if showsInternals(role) {
		return s
	}
	return publicProduct(s)
}

// ProductDetail 详情投影
func ProductDetail(d *dto.ProductDetail, role model.UserRole) any {
	if showsInternals(role) {
		return d
	}
	return &PublicProductDetail{
		PublicProduct: publicProduct(d.ProductSummary),
		Category:      d.Category,
		Breadcrumb:    d.Breadcrumb,
		Items:         publicItems(d.Items),
	}
}

// ProductPage 分页结果投影, 分页信息不变
func ProductPage(p *dto.PageResult[dto.ProductSummary], role model.UserRole) *dto.PageResult[any] {
	return dto.MapPage(p, func(s dto.ProductSummary) any { return Product(s, role) })
}

// Items SKU 列表投影
func Items(items []dto.ItemInfo, role model.UserRole) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = Item(item, role)
	}
	return out
}

func publicProduct(s dto.ProductSummary) PublicProduct {
	return PublicProduct{
		ID:            s.ID,
		Name:          s.Name,
		Description:   s.Description,
		Images:        s.Images,
		CategoryID:    s.CategoryID,
		Featured:      s.Featured,
		MinPrice:      s.MinPrice,
		MaxPrice:      s.MaxPrice,
		Currency:      s.Currency,
		Location:      s.Location,
		MatchingItems: publicItems(s.MatchingItems),
		CreatedAt:     s.CreatedAt,
	}
}

func publicItem(item dto.ItemInfo) PublicItem {
	return PublicItem{
		ID:        item.ID,
		SKU:       item.SKU,
		Price:     item.Price,
		ListPrice: item.ListPrice,
		Discount:  item.Discount,
		InStock:   item.Stock > 0,
		Images:    item.Images,
		Variants:  item.Variants,
	}
}

func publicItems(items []dto.ItemInfo) []PublicItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]PublicItem, len(items))
	for i, item := range items {
		out[i] = publicItem(item)
	}
	return out
}
