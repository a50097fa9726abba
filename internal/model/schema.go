package model

import "gorm.io/gorm"

// AllModels 需要自动建表的全部模型
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Category{},
		&Product{}, &ProductItem{},
		&VariationType{}, &Variant{}, &ProductConfig{},
		&Address{}, &UserAddress{},
		&CurrencyRate{},
		&Location{}, &ProductLocation{}, &ProductItemLocation{},
	}
}

// SetupJoinTables 自定义关联表必须在 AutoMigrate 之前注册
func SetupJoinTables(db *gorm.DB) error {
	return db.SetupJoinTable(&ProductItem{}, "Variants", &ProductConfig{})
}
