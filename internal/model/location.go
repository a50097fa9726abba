package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ==================== 销售地区 ====================

// Location 销售地区, 以 ISO 3166-1 alpha-2 国家代码为主键 (大写)
// CurrencyCode 为空时该地区按基准货币标价
type Location struct {
	CountryCode  string    `gorm:"primaryKey;size:2" json:"country_code"`
	CountryName  string    `gorm:"size:100;not null" json:"country_name"`
	CurrencyCode string    `gorm:"size:3" json:"currency_code"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Location) TableName() string {
	return "locations"
}

// ProductLocation 商品在某地区的标价与本地化文案
// 同一商品下所有 SKU 共用此价格, 差异只体现在 SKU 折扣上
type ProductLocation struct {
	ID           int64           `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	ProductID    int64           `gorm:"not null;uniqueIndex:idx_product_location" json:"product_id"`
	Product      *Product        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	LocationCode string          `gorm:"size:2;not null;uniqueIndex:idx_product_location" json:"location"`
	Location     *Location       `gorm:"foreignKey:LocationCode;references:CountryCode;constraint:OnDelete:CASCADE;" json:"-"`
	Name         string          `gorm:"size:255" json:"name"`
	Description  string          `gorm:"size:255" json:"description"`
	Price        decimal.Decimal `gorm:"type:decimal(12,2);not null;check:chk_product_locations_price,price >= 0" json:"price"`
	CreatedAt    time.Time       `json:"-"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (ProductLocation) TableName() string {
	return "product_locations"
}

// ProductItemLocation SKU 在某地区的折扣百分比, 可限定生效时间窗
type ProductItemLocation struct {
	ID            int64           `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	ProductItemID int64           `gorm:"not null;uniqueIndex:idx_item_location" json:"product_item_id"`
	ProductItem   *ProductItem    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	LocationCode  string          `gorm:"size:2;not null;uniqueIndex:idx_item_location" json:"location"`
	Location      *Location       `gorm:"foreignKey:LocationCode;references:CountryCode;constraint:OnDelete:CASCADE;" json:"-"`
	Discount      decimal.Decimal `gorm:"type:decimal(5,2);not null;check:chk_item_locations_discount,discount >= 0 AND discount <= 100" json:"discount"`
	StartsAt      *time.Time      `json:"starts_at"`
	EndsAt        *time.Time      `json:"ends_at"`
	CreatedAt     time.Time       `json:"-"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (ProductItemLocation) TableName() string {
	return "product_item_locations"
}

// EffectiveDiscount now 落在时间窗内时返回折扣, 否则为 0
// 窗口两端都是闭区间, 未设置的一端不限
func (l *ProductItemLocation) EffectiveDiscount(now time.Time) decimal.Decimal {
	if l.StartsAt != nil && now.Before(*l.StartsAt) {
		return decimal.Zero
	}
	if l.EndsAt != nil && now.After(*l.EndsAt) {
		return decimal.Zero
	}
	return l.Discount
}

// DiscountedPrice 标价扣除折扣后的价格, 保留两位小数
func DiscountedPrice(list, discount decimal.Decimal) decimal.Decimal {
	if !discount.IsPositive() {
		return list
	}
	hundred := decimal.NewFromInt(100)
	return list.Mul(hundred.Sub(discount)).Div(hundred).Round(2)
}
