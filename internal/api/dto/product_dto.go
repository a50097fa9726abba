package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ==================== 检索 ====================

// ProductSearchQuery 商品检索参数
//
//	GET /api/products?q=shoe&category=3&variant=color:red&variant=size:m&price_min=10&sort=price_asc
type ProductSearchQuery struct {
	Q             string   `form:"q"`
	Category      int64    `form:"category"`
	ExactCategory bool     `form:"exact_category"`
	PriceMin      string   `form:"price_min"`
	PriceMax      string   `form:"price_max"`
	Variants      []string `form:"variant"` // type:value, 可重复
	Colour        string   `form:"colour"`  // 等价于 variant=color:<值>
	Color         string   `form:"color"`
	Featured      bool     `form:"featured"`
	Sort          string   `form:"sort" binding:"omitempty,oneof=relevance newest price_asc price_desc featured name"`
	Page          int      `form:"page"`
	PageSize      int      `form:"page_size"`
	Currency      string   `form:"currency" binding:"omitempty,len=3"`
}

// ==================== 商品管理 ====================

// CreateProductRequest 创建商品
type CreateProductRequest struct {
	Name        string   `json:"name" binding:"required,max=255"`
	Description string   `json:"description"`
	CategoryID  int64    `json:"category_id" binding:"required,gt=0"`
	Featured    bool     `json:"featured"`
	Images      []string `json:"images" binding:"omitempty,dive,url"`
}

// UpdateProductRequest 更新商品
type UpdateProductRequest struct {
	Name        *string   `json:"name" binding:"omitempty,max=255"`
	Description *string   `json:"description"`
	CategoryID  *int64    `json:"category_id" binding:"omitempty,gt=0"`
	Featured    *bool     `json:"featured"`
	IsActive    *bool     `json:"is_active"`
	Images      *[]string `json:"images"`
}

// ==================== SKU ====================

// CreateItemRequest 创建 SKU, 可同时绑定规格
type CreateItemRequest struct {
	ProductID  int64           `json:"product_id" binding:"required,gt=0"`
	SKU        string          `json:"sku" binding:"required,max=100"`
	Stock      int             `json:"stock" binding:"min=0"`
	Price      decimal.Decimal `json:"price"`
	Images     []string        `json:"images"`
	VariantIDs []int64         `json:"variant_ids"`
}

// UpdateItemRequest 更新 SKU; VariantIDs 非空时整体替换规格
type UpdateItemRequest struct {
	Stock      *int             `json:"stock" binding:"omitempty,min=0"`
	Price      *decimal.Decimal `json:"price"`
	Images     *[]string        `json:"images"`
	IsActive   *bool            `json:"is_active"`
	VariantIDs *[]int64         `json:"variant_ids"`
}

// AttachVariantRequest 给 SKU 绑定一个规格值
type AttachVariantRequest struct {
	VariantID int64 `json:"variant_id" binding:"required,gt=0"`
}

// MatchItemRequest 按规格组合查找 SKU
type MatchItemRequest struct {
	VariantIDs []int64 `json:"variant_ids" binding:"required,min=1"`
}

// ==================== 响应 ====================

// VariantInfo 规格值
type VariantInfo struct {
	ID     int64  `json:"id"`
	Type   string `json:"type"`
	TypeID int64  `json:"type_id"`
	Value  string `json:"value"`
}

// ItemInfo SKU 全量信息, 对外输出前经过角色投影
type ItemInfo struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	SKU       string          `json:"sku"`
	Stock     int             `json:"stock"`
	Price     decimal.Decimal `json:"price"`
	Images    []string        `json:"images"`
	IsActive  bool            `json:"is_active"`
	Variants  []VariantInfo   `json:"variants"`

	// 地区定价且折扣生效时给出标价与折扣百分比
	ListPrice *decimal.Decimal `json:"list_price,omitempty"`
	Discount  *decimal.Decimal `json:"discount,omitempty"`
}

// ProductSummary 检索结果条目
type ProductSummary struct {
	ID            int64            `json:"id"`
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	Images        []string         `json:"images"`
	CategoryID    int64            `json:"category_id"`
	Featured      bool             `json:"featured"`
	IsActive      bool             `json:"is_active"`
	MinPrice      *decimal.Decimal `json:"min_price"`
	MaxPrice      *decimal.Decimal `json:"max_price"`
	Currency      string           `json:"currency"`
	Location      string           `json:"location,omitempty"`
	Rank          float64          `json:"rank"`
	MatchingItems []ItemInfo       `json:"matching_items"`
	CreatedBy     int64            `json:"created_by"`
	UpdatedBy     int64            `json:"updated_by"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// ProductDetail 商品详情
type ProductDetail struct {
	ProductSummary
	Category   *BreadcrumbItem  `json:"category"`
	Breadcrumb []BreadcrumbItem `json:"breadcrumb"`
	Items      []ItemInfo       `json:"items"`
}

// ImageUploadResult 图片上传结果
type ImageUploadResult struct {
	URLs []string `json:"urls"`
}
