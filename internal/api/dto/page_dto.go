package dto

// PageResult 分页结果
// 调用方无需额外查询即可判断是否有上一页/下一页
type PageResult[T any] struct {
	Items       []T   `json:"items"`
	Total       int64 `json:"total"`
	TotalPages  int   `json:"total_pages"`
	Page        int   `json:"page"`
	PageSize    int   `json:"page_size"`
	HasNext     bool  `json:"has_next"`
	HasPrevious bool  `json:"has_previous"`
}

// NewPageResult page/pageSize 应为已规范化的值
func NewPageResult[T any](items []T, total int64, page, pageSize int) *PageResult[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return &PageResult[T]{
		Items:       items,
		Total:       total,
		TotalPages:  totalPages,
		Page:        page,
		PageSize:    pageSize,
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
	}
}

// MapPage 转换条目类型, 分页信息不变
func MapPage[T, R any](p *PageResult[T], fn func(T) R) *PageResult[R] {
	out := make([]R, len(p.Items))
	for i, item := range p.Items {
		out[i] = fn(item)
	}
	return &PageResult[R]{
		Items:       out,
		Total:       p.Total,
		TotalPages:  p.TotalPages,
		Page:        p.Page,
		PageSize:    p.PageSize,
		HasNext:     p.HasNext,
		HasPrevious: p.HasPrevious,
	}
}
