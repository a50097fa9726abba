package dto

// ==================== 请求 ====================

// CreateCategoryRequest 创建分类
type CreateCategoryRequest struct {
	Name        string `json:"name" binding:"required,max=255"`
	Slug        string `json:"slug" binding:"omitempty,max=255"` // 为空时由名称生成
	Description string `json:"description" binding:"omitempty,max=255"`
	ParentID    int64  `json:"parent_id" binding:"omitempty,min=0"`
}

// UpdateCategoryRequest 更新分类; ParentID 变化即结构性移动
type UpdateCategoryRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=255"`
	Slug        *string `json:"slug" binding:"omitempty,max=255"`
	Description *string `json:"description" binding:"omitempty,max=255"`
	ParentID    *int64  `json:"parent_id" binding:"omitempty,min=0"`
}

// ==================== 响应 ====================

// CategoryNode 树形列表节点 (不含描述)
type CategoryNode struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Slug     string          `json:"slug"`
	Depth    int             `json:"depth"`
	Children []*CategoryNode `json:"children"`
}

// BreadcrumbItem 面包屑
type BreadcrumbItem struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// CategoryInfo 分类详情
type CategoryInfo struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	Slug        string           `json:"slug"`
	Description string           `json:"description"`
	ParentID    int64            `json:"parent_id"`
	Depth       int              `json:"depth"`
	Breadcrumb  []BreadcrumbItem `json:"breadcrumb,omitempty"`
	Children    []BreadcrumbItem `json:"children,omitempty"`
}

// CategoryFlatItem 管理端平铺列表
type CategoryFlatItem struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	ParentID int64  `json:"parent_id"`
	Depth    int    `json:"depth"`
	Lft      int    `json:"lft"`
	Rgt      int    `json:"rgt"`
}

// RebuildResult 重建结果
type RebuildResult struct {
	Changed int `json:"changed"`
}
