package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shop_catalog_v1/internal/model"
)

// LocationRepository 销售地区与地区定价
type LocationRepository interface {
	List(ctx context.Context) ([]model.Location, error)
	Get(ctx context.Context, code string) (*model.Location, error)
	Save(ctx context.Context, loc *model.Location) error

	// 地区标价, 按 (product, location) 覆盖
	SaveProductPrice(ctx context.Context, pl *model.ProductLocation) error
	GetProductPrice(ctx context.Context, productID int64, code string) (*model.ProductLocation, error)
	ListProductPrices(ctx context.Context, productID int64) ([]model.ProductLocation, error)

	// SKU 折扣, 按 (item, location) 覆盖
	SaveItemDiscount(ctx context.Context, d *model.ProductItemLocation) error
	ItemDiscounts(ctx context.Context, itemIDs []int64, code string) (map[int64]model.ProductItemLocation, error)
}

type locationRepo struct {
	db *gorm.DB
}

// NewLocationRepository 创建地区仓储
func NewLocationRepository(db *gorm.DB) LocationRepository {
	return &locationRepo{db: db}
}

func (r *locationRepo) List(ctx context.Context) ([]model.Location, error) {
	var list []model.Location
	err := r.db.WithContext(ctx).Order("country_code ASC").Find(&list).Error
	return list, err
}

func (r *locationRepo) Get(ctx context.Context, code string) (*model.Location, error) {
	var loc model.Location
	if err := r.db.WithContext(ctx).Where("country_code = ?", code).First(&loc).Error; err != nil {
		return nil, err
	}
	return &loc, nil
}

func (r *locationRepo) Save(ctx context.Context, loc *model.Location) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "country_code"}},
		DoUpdates: clause.AssignmentColumns([]string{"country_name", "currency_code", "updated_at"}),
	}).Create(loc).Error
}

func (r *locationRepo) SaveProductPrice(ctx context.Context, pl *model.ProductLocation) error {
	return r.db.WithContext(ctx).Omit("Product", "Location").Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}, {Name: "location_code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "description", "price", "updated_at"}),
	}).Create(pl).Error
}

func (r *locationRepo) GetProductPrice(ctx context.Context, productID int64, code string) (*model.ProductLocation, error) {
	var pl model.ProductLocation
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND location_code = ?", productID, code).
		First(&pl).Error
	if err != nil {
		return nil, err
	}
	return &pl, nil
}

func (r *locationRepo) ListProductPrices(ctx context.Context, productID int64) ([]model.ProductLocation, error) {
	var list []model.ProductLocation
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("location_code ASC").
		Find(&list).Error
	return list, err
}

func (r *locationRepo) SaveItemDiscount(ctx context.Context, d *model.ProductItemLocation) error {
	return r.db.WithContext(ctx).Omit("ProductItem", "Location").Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_item_id"}, {Name: "location_code"}},
		DoUpdates: clause.AssignmentColumns([]string{"discount", "starts_at", "ends_at", "updated_at"}),
	}).Create(d).Error
}

// ItemDiscounts 一次取出多个 SKU 在同一地区的折扣, 按 SKU ID 索引
func (r *locationRepo) ItemDiscounts(ctx context.Context, itemIDs []int64, code string) (map[int64]model.ProductItemLocation, error) {
	out := make(map[int64]model.ProductItemLocation, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}
	var list []model.ProductItemLocation
	err := r.db.WithContext(ctx).
		Where("product_item_id IN ? AND location_code = ?", itemIDs, code).
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	for _, d := range list {
		out[d.ProductItemID] = d
	}
	return out, nil
}
