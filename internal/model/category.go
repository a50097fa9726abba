package model

// ==================== Category 商品分类 ====================

// Category 分类树节点
// 采用嵌套集 (Nested Set) 存储: Lft/Rgt 为先序遍历的左右边界,
// 子树查询 = 一次区间扫描 (lft > node.lft AND rgt < node.rgt)
type Category struct {
	BaseModel
	AuditMixin

	Name        string `gorm:"size:255;not null" json:"name"`
	Slug        string `gorm:"size:255;not null;uniqueIndex:idx_category_parent_slug" json:"slug"`
	Description string `gorm:"size:255" json:"description"`

	// ParentID 为 0 表示根节点
	ParentID int64 `gorm:"not null;default:0;index;uniqueIndex:idx_category_parent_slug" json:"parent_id"`

	// --- 树路径元数据 (只允许 CategoryRepository 维护) ---
	Lft   int `gorm:"not null;default:0;index:idx_category_bounds" json:"-"`
	Rgt   int `gorm:"not null;default:0;index:idx_category_bounds" json:"-"`
	Depth int `gorm:"not null;default:0" json:"depth"`

	// 按需装配, 不落库
	Children []*Category `gorm:"-" json:"children,omitempty"`
}

func (Category) TableName() string {
	return "categories"
}

// IsRoot 是否根节点
func (c *Category) IsRoot() bool {
	return c.ParentID == 0
}

// IsAncestorOf 根据边界判断是否为 other 的祖先 (不含自身)
func (c *Category) IsAncestorOf(other *Category) bool {
	return c.Lft < other.Lft && c.Rgt > other.Rgt
}

// Width 子树占用的边界宽度
func (c *Category) Width() int {
	return c.Rgt - c.Lft + 1
}
