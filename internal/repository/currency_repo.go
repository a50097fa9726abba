package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shop_catalog_v1/internal/model"
)

// CurrencyRepository 汇率仓储
type CurrencyRepository interface {
	Upsert(ctx context.Context, code string, rate decimal.Decimal) error
	BatchUpsert(ctx context.Context, rates map[string]decimal.Decimal) error
	GetByCode(ctx context.Context, code string) (*model.CurrencyRate, error)
	List(ctx context.Context) ([]model.CurrencyRate, error)
}

type currencyRepo struct {
	db *gorm.DB
}

// NewCurrencyRepository 创建汇率仓储
func NewCurrencyRepository(db *gorm.DB) CurrencyRepository {
	return &currencyRepo{db: db}
}

func (r *currencyRepo) Upsert(ctx context.Context, code string, rate decimal.Decimal) error {
	return r.BatchUpsert(ctx, map[string]decimal.Decimal{code: rate})
}

// BatchUpsert 按 code 覆盖汇率
func (r *currencyRepo) BatchUpsert(ctx context.Context, rates map[string]decimal.Decimal) error {
	if len(rates) == 0 {
		return nil
	}
	now := time.Now()
	rows := make([]model.CurrencyRate, 0, len(rates))
	for code, rate := range rates {
		rows = append(rows, model.CurrencyRate{Code: code, Rate: rate, CreatedAt: now, UpdatedAt: now})
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"rate", "updated_at"}),
	}).Create(&rows).Error
}

func (r *currencyRepo) GetByCode(ctx context.Context, code string) (*model.CurrencyRate, error) {
	var rate model.CurrencyRate
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&rate).Error; err != nil {
		return nil, err
	}
	return &rate, nil
}

func (r *currencyRepo) List(ctx context.Context) ([]model.CurrencyRate, error) {
	var list []model.CurrencyRate
	err := r.db.WithContext(ctx).Order("code ASC").Find(&list).Error
	return list, err
}
