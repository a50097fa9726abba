package model

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrAddressImmutable 地址记录只允许新增
var ErrAddressImmutable = errors.New("地址记录不可修改或删除")

// ==================== Address 地址 ====================

// Address 不可变的物理地址
// 内容相同 (规范化后) 的地址只保留一条, 以 ContentHash 去重;
// "修改地址" 永远是新建/复用另一条 Address 并重新关联
type Address struct {
	ID          int64     `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	AddressLine string    `gorm:"size:255;not null" json:"address_line"`
	City        string    `gorm:"size:100;not null" json:"city"`
	Postcode    string    `gorm:"size:10;not null" json:"postcode"`
	State       string    `gorm:"size:100;not null" json:"state"`
	Country     string    `gorm:"size:100;not null" json:"country"`
	ContentHash string    `gorm:"size:64;not null;uniqueIndex" json:"-"`
}

func (Address) TableName() string {
	return "addresses"
}

func (*Address) BeforeUpdate(*gorm.DB) error {
	return ErrAddressImmutable
}

func (*Address) BeforeDelete(*gorm.DB) error {
	return ErrAddressImmutable
}

// ==================== UserAddress 用户地址簿 ====================

// UserAddress 用户与地址的关联
// (user_id, address_id) 唯一; 每个用户最多一条 is_default = true (部分唯一索引兜底)
type UserAddress struct {
	ID        int64     `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID    int64    `gorm:"not null;uniqueIndex:idx_user_address_pair;uniqueIndex:idx_user_address_default,where:is_default = true" json:"user_id"`
	AddressID int64    `gorm:"not null;uniqueIndex:idx_user_address_pair;index" json:"address_id"`
	Address   *Address `gorm:"foreignKey:AddressID" json:"address,omitempty"`
	IsDefault bool     `gorm:"not null;default:false" json:"is_default"`
}

func (UserAddress) TableName() string {
	return "user_addresses"
}
