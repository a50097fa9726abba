package model

import (
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ==================== Product 商品 ====================

// Product 可售商品 (SPU)
type Product struct {
	BaseModel
	AuditMixin

	Name        string `gorm:"size:255;not null;index" json:"name"`
	Description string `gorm:"type:text" json:"description"`

	// 图片地址列表 (JSON)
	Images datatypes.JSONSlice[string] `json:"images"`

	CategoryID int64     `gorm:"index;not null" json:"category_id"`
	Category   *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`

	Featured bool `gorm:"default:false;index" json:"featured"`
	// 下架而非物理删除, 保留审计历史
	IsActive bool `gorm:"default:true;index" json:"is_active"`

	Items []ProductItem `gorm:"foreignKey:ProductID" json:"items,omitempty"`
}

func (Product) TableName() string {
	return "products"
}

// ==================== ProductItem 商品 SKU ====================

// ProductItem 具体可购买的规格 (SKU)
type ProductItem struct {
	BaseModel
	AuditMixin

	ProductID int64    `gorm:"index;not null" json:"product_id"`
	Product   *Product `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`

	SKU   string          `gorm:"column:sku;size:100;uniqueIndex;not null" json:"sku"`
	Stock int             `gorm:"not null;default:0;check:chk_product_items_stock,stock >= 0" json:"stock"`
	Price decimal.Decimal `gorm:"type:decimal(12,2);not null;check:chk_product_items_price,price > 0" json:"price"`

	Images   datatypes.JSONSlice[string] `json:"images"`
	IsActive bool                        `gorm:"default:true;index" json:"is_active"`

	Variants []Variant `gorm:"many2many:product_configs;joinForeignKey:ProductItemID;joinReferences:VariantID" json:"variants,omitempty"`
}

func (ProductItem) TableName() string {
	return "product_items"
}
