package repository

import (
	"context"

	"gorm.io/gorm"

	"shop_catalog_v1/internal/model"
)

// ==================== 接口定义 ====================

// VariationRepository 规格维度 / 规格值 / SKU 规格配置
type VariationRepository interface {
	// 规格维度
	CreateType(ctx context.Context, vt *model.VariationType, categoryIDs []int64) error
	GetType(ctx context.Context, id int64) (*model.VariationType, error)
	GetTypeByName(ctx context.Context, name string) (*model.VariationType, error)
	ListTypes(ctx context.Context) ([]model.VariationType, error)
	ListTypesForCategory(ctx context.Context, categoryID int64) ([]model.VariationType, error)
	TypeAppliesToCategory(ctx context.Context, typeID, categoryID int64) (bool, error)

	// 规格值
	CreateVariant(ctx context.Context, v *model.Variant) error
	GetVariant(ctx context.Context, id int64) (*model.Variant, error)
	GetVariantsByIDs(ctx context.Context, ids []int64) ([]model.Variant, error)
	FindVariant(ctx context.Context, typeID int64, value string) (*model.Variant, error)

	// SKU 规格配置
	AttachVariant(ctx context.Context, itemID, variantID int64) error
	ConfigExists(ctx context.Context, itemID, variantID int64) (bool, error)
	ItemHasVariantOfType(ctx context.Context, itemID, typeID int64) (bool, error)
	ListItemVariants(ctx context.Context, itemID int64) ([]model.Variant, error)
	DetachAll(ctx context.Context, itemID int64) error
	FindItemsByConfiguration(ctx context.Context, productID int64, variantIDs []int64) ([]int64, error)

	// 事务
	WithTx(tx *gorm.DB) VariationRepository
	Transaction(ctx context.Context, fn func(txRepo VariationRepository) error) error
}

// ==================== 仓储实现 ====================

type variationRepo struct {
	db *gorm.DB
}

// NewVariationRepository 创建规格仓储
func NewVariationRepository(db *gorm.DB) VariationRepository {
	return &variationRepo{db: db}
}

// CreateType categoryIDs 为空表示全局维度
func (r *variationRepo) CreateType(ctx context.Context, vt *model.VariationType, categoryIDs []int64) error {
	vt.IsGlobal = len(categoryIDs) == 0
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Categories", "Variants").Create(vt).Error; err != nil {
			return err
		}
		for _, cid := range categoryIDs {
			if err := tx.Exec("INSERT INTO category_variation_types (variation_type_id, category_id) VALUES (?, ?)",
				vt.ID, cid).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *variationRepo) GetType(ctx context.Context, id int64) (*model.VariationType, error) {
	var vt model.VariationType
	err := r.db.WithContext(ctx).
		Preload("Variants", orderByValue).
		First(&vt, id).Error
	if err != nil {
		return nil, err
	}
	return &vt, nil
}

// GetTypeByName 名称不区分大小写
func (r *variationRepo) GetTypeByName(ctx context.Context, name string) (*model.VariationType, error) {
	var vt model.VariationType
	err := r.db.WithContext(ctx).
		Where("LOWER(name) = LOWER(?)", name).
		First(&vt).Error
	if err != nil {
		return nil, err
	}
	return &vt, nil
}

func (r *variationRepo) ListTypes(ctx context.Context) ([]model.VariationType, error) {
	var list []model.VariationType
	err := r.db.WithContext(ctx).
		Preload("Variants", orderByValue).
		Order("name ASC").
		Find(&list).Error
	return list, err
}

// ListTypesForCategory 全局维度 + 绑定在该分类或其任一祖先上的维度
func (r *variationRepo) ListTypesForCategory(ctx context.Context, categoryID int64) ([]model.VariationType, error) {
	var list []model.VariationType
	err := r.applicable(ctx, categoryID).
		Preload("Variants", orderByValue).
		Order("variation_types.name ASC").
		Find(&list).Error
	return list, err
}

func (r *variationRepo) TypeAppliesToCategory(ctx context.Context, typeID, categoryID int64) (bool, error) {
	var count int64
	err := r.applicable(ctx, categoryID).
		Where("variation_types.id = ?", typeID).
		Count(&count).Error
	return count > 0, err
}

func (r *variationRepo) applicable(ctx context.Context, categoryID int64) *gorm.DB {
	db := r.db.WithContext(ctx)
	scoped := db.Table("category_variation_types AS s").
		Select("1").
		Joins("JOIN categories AS a ON a.id = s.category_id").
		Joins("JOIN categories AS n ON a.lft <= n.lft AND a.rgt >= n.rgt").
		Where("s.variation_type_id = variation_types.id AND n.id = ?", categoryID)

	return db.Model(&model.VariationType{}).
		Where("variation_types.is_global = ? OR EXISTS (?)", true, scoped)
}

func (r *variationRepo) CreateVariant(ctx context.Context, v *model.Variant) error {
	return r.db.WithContext(ctx).Omit("VariationType").Create(v).Error
}

func (r *variationRepo) GetVariant(ctx context.Context, id int64) (*model.Variant, error) {
	var v model.Variant
	err := r.db.WithContext(ctx).
		Preload("VariationType").
		First(&v, id).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *variationRepo) GetVariantsByIDs(ctx context.Context, ids []int64) ([]model.Variant, error) {
	var list []model.Variant
	if len(ids) == 0 {
		return list, nil
	}
	err := r.db.WithContext(ctx).
		Preload("VariationType").
		Where("id IN ?", ids).
		Find(&list).Error
	return list, err
}

// FindVariant 取值不区分大小写
func (r *variationRepo) FindVariant(ctx context.Context, typeID int64, value string) (*model.Variant, error) {
	var v model.Variant
	err := r.db.WithContext(ctx).
		Where("variation_type_id = ? AND LOWER(value) = LOWER(?)", typeID, value).
		First(&v).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ==================== SKU 规格配置 ====================

// AttachVariant 重复的 (item, variant) 由主键拒绝, 返回 gorm.ErrDuplicatedKey
func (r *variationRepo) AttachVariant(ctx context.Context, itemID, variantID int64) error {
	return r.db.WithContext(ctx).Create(&model.ProductConfig{
		ProductItemID: itemID,
		VariantID:     variantID,
	}).Error
}

func (r *variationRepo) ConfigExists(ctx context.Context, itemID, variantID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.ProductConfig{}).
		Where("product_item_id = ? AND variant_id = ?", itemID, variantID).
		Count(&count).Error
	return count > 0, err
}

func (r *variationRepo) ItemHasVariantOfType(ctx context.Context, itemID, typeID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("product_configs AS pc").
		Joins("JOIN variants AS v ON v.id = pc.variant_id").
		Where("pc.product_item_id = ? AND v.variation_type_id = ?", itemID, typeID).
		Count(&count).Error
	return count > 0, err
}

func (r *variationRepo) ListItemVariants(ctx context.Context, itemID int64) ([]model.Variant, error) {
	var list []model.Variant
	err := r.db.WithContext(ctx).
		Preload("VariationType").
		Joins("JOIN product_configs AS pc ON pc.variant_id = variants.id").
		Where("pc.product_item_id = ?", itemID).
		Order("variants.variation_type_id ASC, variants.id ASC").
		Find(&list).Error
	return list, err
}

func (r *variationRepo) DetachAll(ctx context.Context, itemID int64) error {
	return r.db.WithContext(ctx).
		Where("product_item_id = ?", itemID).
		Delete(&model.ProductConfig{}).Error
}

// FindItemsByConfiguration 规格集合与 variantIDs 完全相同的在售 SKU
func (r *variationRepo) FindItemsByConfiguration(ctx context.Context, productID int64, variantIDs []int64) ([]int64, error) {
	want := uniqueIDs(variantIDs)
	var ids []int64
	if len(want) == 0 {
		return ids, nil
	}
	err := r.db.WithContext(ctx).
		Table("product_items AS pi").
		Joins("JOIN product_configs AS pc ON pc.product_item_id = pi.id").
		Where("pi.product_id = ? AND pi.is_active = ? AND pi.deleted_at IS NULL", productID, true).
		Group("pi.id").
		Having("COUNT(*) = ? AND SUM(CASE WHEN pc.variant_id IN ? THEN 1 ELSE 0 END) = ?", len(want), want, len(want)).
		Order("pi.id ASC").
		Pluck("pi.id", &ids).Error
	return ids, err
}

// ==================== 事务 ====================

func (r *variationRepo) WithTx(tx *gorm.DB) VariationRepository {
	return &variationRepo{db: tx}
}

func (r *variationRepo) Transaction(ctx context.Context, fn func(txRepo VariationRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}

func orderByValue(db *gorm.DB) *gorm.DB {
	return db.Order("variants.value ASC")
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id > 0 && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
