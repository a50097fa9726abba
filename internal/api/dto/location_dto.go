package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ==================== 请求 ====================

// SaveLocationRequest 新建或修改销售地区, 国家代码取自路径
type SaveLocationRequest struct {
	CountryName  string `json:"country_name" binding:"required,max=100"`
	CurrencyCode string `json:"currency_code" binding:"omitempty,len=3"`
}

// ProductPriceRequest 商品在地区的标价
type ProductPriceRequest struct {
	Name        string          `json:"name" binding:"max=255"`
	Description string          `json:"description" binding:"max=255"`
	Price       decimal.Decimal `json:"price"`
}

// ItemDiscountRequest SKU 在地区的折扣百分比
type ItemDiscountRequest struct {
	Discount decimal.Decimal `json:"discount"`
	StartsAt *time.Time      `json:"starts_at"`
	EndsAt   *time.Time      `json:"ends_at"`
}

// PriceContext 价格展示参数
// Location 非空时使用该地区的标价与折扣; Currency 为空时按地区货币 (无地区时为基准货币) 展示
type PriceContext struct {
	Currency string `form:"currency"`
	Location string `form:"location"`
}

// ==================== 响应 ====================

// LocationInfo 销售地区
type LocationInfo struct {
	CountryCode  string    `json:"country_code"`
	CountryName  string    `json:"country_name"`
	CurrencyCode string    `json:"currency_code"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ProductPriceInfo 商品地区标价
type ProductPriceInfo struct {
	ProductID   int64           `json:"product_id"`
	Location    string          `json:"location"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
}

// ItemDiscountInfo SKU 地区折扣
type ItemDiscountInfo struct {
	ItemID   int64           `json:"item_id"`
	Location string          `json:"location"`
	Discount decimal.Decimal `json:"discount"`
	StartsAt *time.Time      `json:"starts_at"`
	EndsAt   *time.Time      `json:"ends_at"`
}
