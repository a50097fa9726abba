package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CurrencyRate 基准货币 -> 目标货币汇率
// 1 基准货币 = Rate 目标货币
type CurrencyRate struct {
	ID        int64           `gorm:"primary_key;AUTO_INCREMENT" json:"-"`
	Code      string          `gorm:"size:3;uniqueIndex;not null" json:"code"`
	Rate      decimal.Decimal `gorm:"type:decimal(15,6);not null" json:"rate"`
	CreatedAt time.Time       `json:"-"`
	UpdatedAt time.Time       `gorm:"index" json:"updated_at"`
}

func (CurrencyRate) TableName() string {
	return "currency_rates"
}
