package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shop_catalog_v1/internal/model"
)

// ==================== 接口定义 ====================

// AddressRepository 地址 (只增不改) 与用户地址簿
type AddressRepository interface {
	// 地址
	GetOrCreate(ctx context.Context, addr *model.Address) (*model.Address, error)
	GetByID(ctx context.Context, id int64) (*model.Address, error)
	CountByHash(ctx context.Context, hash string) (int64, error)

	// 地址簿
	Link(ctx context.Context, link *model.UserAddress) error
	GetLink(ctx context.Context, id int64) (*model.UserAddress, error)
	FindLink(ctx context.Context, userID, addressID int64) (*model.UserAddress, error)
	ListLinks(ctx context.Context, userID int64) ([]model.UserAddress, error)
	Relink(ctx context.Context, linkID, addressID int64) error
	Unlink(ctx context.Context, linkID int64) error
	SetDefault(ctx context.Context, userID, linkID int64) error
	OldestLink(ctx context.Context, userID int64) (*model.UserAddress, error)
	CountDefaults(ctx context.Context, userID int64) (int64, error)

	// 事务
	WithTx(tx *gorm.DB) AddressRepository
	Transaction(ctx context.Context, fn func(txRepo AddressRepository) error) error
}

// ==================== 仓储实现 ====================

type addressRepo struct {
	db *gorm.DB
}

// NewAddressRepository 创建地址仓储
func NewAddressRepository(db *gorm.DB) AddressRepository {
	return &addressRepo{db: db}
}

// GetOrCreate 按 ContentHash 插入, 冲突则不做任何事, 再按哈希读回
// 并发创建相同内容的请求最终拿到同一条记录
func (r *addressRepo) GetOrCreate(ctx context.Context, addr *model.Address) (*model.Address, error) {
	db := r.db.WithContext(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "content_hash"}},
		DoNothing: true,
	}).Create(addr).Error
	if err != nil {
		return nil, err
	}

	var stored model.Address
	if err := db.Where("content_hash = ?", addr.ContentHash).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *addressRepo) GetByID(ctx context.Context, id int64) (*model.Address, error) {
	var addr model.Address
	if err := r.db.WithContext(ctx).First(&addr, id).Error; err != nil {
		return nil, err
	}
	return &addr, nil
}

func (r *addressRepo) CountByHash(ctx context.Context, hash string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Address{}).
		Where("content_hash = ?", hash).
		Count(&count).Error
	return count, err
}

// ==================== 地址簿 ====================

// Link 重复的 (user, address) 由唯一索引拒绝
func (r *addressRepo) Link(ctx context.Context, link *model.UserAddress) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(link).Error
}

func (r *addressRepo) GetLink(ctx context.Context, id int64) (*model.UserAddress, error) {
	var link model.UserAddress
	err := r.db.WithContext(ctx).Preload("Address").First(&link, id).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *addressRepo) FindLink(ctx context.Context, userID, addressID int64) (*model.UserAddress, error) {
	var link model.UserAddress
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND address_id = ?", userID, addressID).
		First(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// ListLinks 默认地址在前, 其余按添加顺序
func (r *addressRepo) ListLinks(ctx context.Context, userID int64) ([]model.UserAddress, error) {
	var list []model.UserAddress
	err := r.db.WithContext(ctx).
		Preload("Address").
		Where("user_id = ?", userID).
		Order("is_default DESC, created_at ASC, id ASC").
		Find(&list).Error
	return list, err
}

func (r *addressRepo) Relink(ctx context.Context, linkID, addressID int64) error {
	return r.db.WithContext(ctx).
		Model(&model.UserAddress{}).
		Where("id = ?", linkID).
		Update("address_id", addressID).Error
}

// Unlink 只删除关联, 地址记录保留
func (r *addressRepo) Unlink(ctx context.Context, linkID int64) error {
	return r.db.WithContext(ctx).Delete(&model.UserAddress{}, linkID).Error
}

// SetDefault 先锁用户行, 再清旧默认、设新默认
// 同一用户的并发切换在行锁上串行; 部分唯一索引兜底
func (r *addressRepo) SetDefault(ctx context.Context, userID, linkID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u model.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&u, userID).Error; err != nil {
			return err
		}

		if err := tx.Model(&model.UserAddress{}).
			Where("user_id = ? AND is_default = ? AND id <> ?", userID, true, linkID).
			Update("is_default", false).Error; err != nil {
			return err
		}

		res := tx.Model(&model.UserAddress{}).
			Where("id = ? AND user_id = ?", linkID, userID).
			Update("is_default", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *addressRepo) OldestLink(ctx context.Context, userID int64) (*model.UserAddress, error) {
	var link model.UserAddress
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		First(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *addressRepo) CountDefaults(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.UserAddress{}).
		Where("user_id = ? AND is_default = ?", userID, true).
		Count(&count).Error
	return count, err
}

// ==================== 事务 ====================

func (r *addressRepo) WithTx(tx *gorm.DB) AddressRepository {
	return &addressRepo{db: tx}
}

func (r *addressRepo) Transaction(ctx context.Context, fn func(txRepo AddressRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}
