package model

// Actor 当前请求的身份上下文, 由鉴权中间件提供
// UserID 为 0 表示匿名访问
type Actor struct {
	UserID int64
	Role   UserRole
}

// Anonymous 匿名身份
func Anonymous() Actor {
	return Actor{}
}

func (a Actor) IsAnonymous() bool {
	return a.UserID == 0
}

// CanManageCatalog 只有 admin/seller 可以维护分类、商品、SKU
func (a Actor) CanManageCatalog() bool {
	return !a.IsAnonymous() && (a.Role == UserRoleAdmin || a.Role == UserRoleSeller)
}

func (a Actor) IsAdmin() bool {
	return !a.IsAnonymous() && a.Role == UserRoleAdmin
}
