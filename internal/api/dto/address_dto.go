package dto

import "time"

// AddressFields 地址内容
type AddressFields struct {
	AddressLine string `json:"address_line" binding:"required,max=255"`
	City        string `json:"city" binding:"required,max=100"`
	Postcode    string `json:"postcode" binding:"required,max=10"`
	State       string `json:"state" binding:"required,max=100"`
	Country     string `json:"country" binding:"required,max=100"`
}

// CreateAddressRequest 添加到地址簿
type CreateAddressRequest struct {
	AddressFields
	IsDefault bool `json:"is_default"`
}

// UpdateAddressRequest 修改地址簿条目 (内部为重新关联)
type UpdateAddressRequest struct {
	AddressFields
	IsDefault *bool `json:"is_default"`
}

// CheckoutAddressRequest 结算地址; 游客时 SaveToAddressBook 被忽略
type CheckoutAddressRequest struct {
	AddressFields
	SaveToAddressBook bool `json:"save_to_address_book"`
}

// AddressInfo 地址
type AddressInfo struct {
	ID          int64  `json:"id"`
	AddressLine string `json:"address_line"`
	City        string `json:"city"`
	Postcode    string `json:"postcode"`
	State       string `json:"state"`
	Country     string `json:"country"`
}

// UserAddressInfo 地址簿条目
type UserAddressInfo struct {
	ID        int64       `json:"id"`
	Address   AddressInfo `json:"address"`
	IsDefault bool        `json:"is_default"`
	CreatedAt time.Time   `json:"created_at"`
}

// CheckoutAddressResponse 结算地址结果
type CheckoutAddressResponse struct {
	Address AddressInfo `json:"address"`
	Saved   bool        `json:"saved"`
	LinkID  int64       `json:"link_id,omitempty"`
}
