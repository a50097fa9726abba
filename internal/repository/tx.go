package repository

import (
	"context"

	"gorm.io/gorm"
)

// TxManager 跨仓储事务: 在 fn 内用 XxxRepository.WithTx(tx) 取得同一事务下的仓储
type TxManager struct {
	db *gorm.DB
}

func NewTxManager(db *gorm.DB) *TxManager {
	return &TxManager{db: db}
}

// Do fn 返回错误时整体回滚
func (m *TxManager) Do(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return m.db.WithContext(ctx).Transaction(fn)
}
