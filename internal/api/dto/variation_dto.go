package dto

// CreateVariationTypeRequest 创建规格维度; CategoryIDs 为空表示全局
type CreateVariationTypeRequest struct {
	Name        string  `json:"name" binding:"required,max=100"`
	CategoryIDs []int64 `json:"category_ids" binding:"omitempty,dive,gt=0"`
}

// CreateVariantRequest 新增规格值
type CreateVariantRequest struct {
	Value string `json:"value" binding:"required,max=255"`
}

// VariationTypeInfo 规格维度及其取值
type VariationTypeInfo struct {
	ID       int64         `json:"id"`
	Name     string        `json:"name"`
	IsGlobal bool          `json:"is_global"`
	Variants []VariantInfo `json:"variants"`
}
