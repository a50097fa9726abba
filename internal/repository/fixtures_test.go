package repository

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"shop_catalog_v1/internal/model"
)

func mustCreate(t *testing.T, db *gorm.DB, v interface{}) {
	t.Helper()
	if err := db.Create(v).Error; err != nil {
		t.Fatalf("创建测试数据失败: %v", err)
	}
}

func seedVariant(t *testing.T, db *gorm.DB, typeName, value string) *model.Variant {
	t.Helper()
	var vt model.VariationType
	if err := db.Where("name = ?", typeName).FirstOrCreate(&vt, model.VariationType{Name: typeName}).Error; err != nil {
		t.Fatalf("创建规格维度失败: %v", err)
	}
	v := &model.Variant{Value: value, VariationTypeID: vt.ID}
	mustCreate(t, db, v)
	return v
}

func seedItem(t *testing.T, db *gorm.DB, productID int64, sku string, price string, variants ...*model.Variant) *model.ProductItem {
	t.Helper()
	item := &model.ProductItem{
		ProductID: productID,
		SKU:       sku,
		Stock:     5,
		Price:     decimal.RequireFromString(price),
		IsActive:  true,
	}
	if err := db.Omit("Variants").Create(item).Error; err != nil {
		t.Fatalf("创建 SKU 失败: %v", err)
	}
	repo := NewVariationRepository(db)
	for _, v := range variants {
		if err := repo.AttachVariant(context.Background(), item.ID, v.ID); err != nil {
			t.Fatalf("绑定规格失败: %v", err)
		}
	}
	return item
}
