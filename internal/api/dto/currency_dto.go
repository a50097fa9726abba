package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CurrencyRateInfo 汇率
type CurrencyRateInfo struct {
	Code      string          `json:"code"`
	Rate      decimal.Decimal `json:"rate"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CurrencyListResponse 汇率列表
type CurrencyListResponse struct {
	Base  string             `json:"base"`
	Rates []CurrencyRateInfo `json:"rates"`
}

// UpdateRateRequest 手动设置汇率
type UpdateRateRequest struct {
	Rate decimal.Decimal `json:"rate"`
}
