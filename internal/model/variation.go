package model

import "time"

// ==================== 规格维度 ====================

// VariationType 规格维度, 如 "Color"、"Size"
// IsGlobal 为 true 时对所有分类生效; 否则仅对 Categories 及其子孙分类生效
// 非全局维度的绑定全部失效后对任何分类都不可用, 不会退化为全局
type VariationType struct {
	BaseModel

	Name       string     `gorm:"size:100;not null;uniqueIndex" json:"name"`
	IsGlobal   bool       `gorm:"not null;default:false" json:"is_global"`
	Categories []Category `gorm:"many2many:category_variation_types;" json:"-"`
	Variants   []Variant  `gorm:"foreignKey:VariationTypeID" json:"variants,omitempty"`
}

func (VariationType) TableName() string {
	return "variation_types"
}

// Variant 规格取值, 如 Color=Red
type Variant struct {
	ID              int64          `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	CreatedAt       time.Time      `json:"-"`
	Value           string         `gorm:"size:255;not null;uniqueIndex:idx_variant_type_value" json:"value"`
	VariationTypeID int64          `gorm:"not null;index;uniqueIndex:idx_variant_type_value" json:"variation_type_id"`
	VariationType   *VariationType `gorm:"foreignKey:VariationTypeID" json:"variation_type,omitempty"`
}

func (Variant) TableName() string {
	return "variants"
}

// ProductConfig SKU × 规格取值 关联表
// (product_item_id, variant_id) 为联合主键, 并发重复写入由数据库拒绝
type ProductConfig struct {
	ProductItemID int64     `gorm:"primaryKey;autoIncrement:false" json:"product_item_id"`
	VariantID     int64     `gorm:"primaryKey;autoIncrement:false;index" json:"variant_id"`
	CreatedAt     time.Time `json:"created_at"`
}

func (ProductConfig) TableName() string {
	return "product_configs"
}
