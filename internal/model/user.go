package model

import "time"

// UserRole 系统角色
type UserRole string

const (
	UserRoleCustomer UserRole = "customer"
	UserRoleSeller   UserRole = "seller"
	UserRoleAdmin    UserRole = "admin"
)

// Valid 是否为已知角色
func (r UserRole) Valid() bool {
	switch r {
	case UserRoleCustomer, UserRoleSeller, UserRoleAdmin:
		return true
	}
	return false
}

// User 账号
type User struct {
	BaseModel

	Username  string `gorm:"size:255;uniqueIndex;not null" json:"username"`
	Email     string `gorm:"size:255;uniqueIndex;not null" json:"email"`
	FirstName string `gorm:"size:255" json:"first_name"`
	LastName  string `gorm:"size:255" json:"last_name"`
	Phone     string `gorm:"size:20" json:"phone"`

	Role UserRole `gorm:"size:10;not null;default:'customer'" json:"role"`

	// 凭证只存哈希, 不参与序列化
	PasswordHash     string `gorm:"size:255;not null" json:"-"`
	RefreshTokenHash string `gorm:"size:64;index" json:"-"`

	IsActive    bool       `gorm:"default:true" json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`

	Addresses []UserAddress `gorm:"foreignKey:UserID" json:"-"`
}

func (User) TableName() string {
	return "users"
}
